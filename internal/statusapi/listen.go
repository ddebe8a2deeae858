package statusapi

import (
	"fmt"
	"net"
)

func listen(port int) (net.Listener, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind status api listener: %w", err)
	}
	return listener, nil
}
