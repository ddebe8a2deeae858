package transport

import (
	"fmt"
	"net"
	"strings"
	"sync"
)

// Manager implements the TransportManager interface. The registrar always
// knows which transport a message arrived on or must go out on (from the
// socket it was read from, or from a response's top Via header), so unlike
// a general-purpose SIP stack it never has to guess a transport from
// message size or address type.
type Manager struct {
	udpTransport *UDPTransport
	tcpTransport *TCPTransport
	handler      MessageHandler
	running      bool
	mu           sync.RWMutex
}

// NewManager creates a new transport manager
func NewManager() *Manager {
	return &Manager{
		udpTransport: NewUDPTransport(),
		tcpTransport: NewTCPTransport(),
	}
}

// StartUDP starts the UDP transport on the specified port
func (m *Manager) StartUDP(port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handler != nil {
		m.udpTransport.RegisterHandler(m.handler)
	}

	err := m.udpTransport.Start(port)
	if err != nil {
		return fmt.Errorf("failed to start UDP transport: %w", err)
	}

	m.running = true
	return nil
}

// StartTCP starts the TCP transport on the specified port
func (m *Manager) StartTCP(port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handler != nil {
		m.tcpTransport.RegisterHandler(m.handler)
	}

	err := m.tcpTransport.Start(port)
	if err != nil {
		return fmt.Errorf("failed to start TCP transport: %w", err)
	}

	m.running = true
	return nil
}

// SendMessage sends a SIP message over the named transport ("UDP" or "TCP")
func (m *Manager) SendMessage(msg []byte, transportName string, addr net.Addr) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.running {
		return fmt.Errorf("transport manager not running")
	}

	switch strings.ToUpper(transportName) {
	case "UDP":
		if !m.udpTransport.IsRunning() {
			return fmt.Errorf("UDP transport not running")
		}
		return m.udpTransport.SendMessage(msg, addr)
	case "TCP":
		if !m.tcpTransport.IsRunning() {
			return fmt.Errorf("TCP transport not running")
		}
		return m.tcpTransport.SendMessage(msg, addr)
	default:
		return fmt.Errorf("unsupported transport: %s", transportName)
	}
}

// RegisterHandler registers a message handler for both transports
func (m *Manager) RegisterHandler(handler MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handler = handler

	if m.udpTransport.IsRunning() {
		m.udpTransport.RegisterHandler(handler)
	}
	if m.tcpTransport.IsRunning() {
		m.tcpTransport.RegisterHandler(handler)
	}
}

// Stop stops both UDP and TCP transports
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errors []string

	if m.udpTransport.IsRunning() {
		if err := m.udpTransport.Stop(); err != nil {
			errors = append(errors, fmt.Sprintf("UDP: %v", err))
		}
	}

	if m.tcpTransport.IsRunning() {
		if err := m.tcpTransport.Stop(); err != nil {
			errors = append(errors, fmt.Sprintf("TCP: %v", err))
		}
	}

	m.running = false

	if len(errors) > 0 {
		return fmt.Errorf("errors stopping transports: %s", strings.Join(errors, ", "))
	}

	return nil
}

// GetUDPLocalAddr returns the local address of the UDP transport
func (m *Manager) GetUDPLocalAddr() net.Addr {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.udpTransport.LocalAddr()
}

// GetTCPLocalAddr returns the local address of the TCP transport
func (m *Manager) GetTCPLocalAddr() net.Addr {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tcpTransport.LocalAddr()
}
