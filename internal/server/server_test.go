package server

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, dir string, extra string) string {
	configData := `
server:
  udp_port: 0
  tcp_port: 0
account:
  username: registrar
  domain: test.local
  authentication_enabled: false
authentication:
  realm: "test.local"
  nonce_expiry: 300
registrar:
  queue_capacity: 1000
  min_expires: 60
  default_max_expires: 3600
  worker_wait_seconds: 10
status_api:
  port: 0
  enabled: true
logging:
  level: "error"
  file: "` + filepath.Join(dir, "test.log") + `"
` + extra

	configFile := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configFile, []byte(configData), 0644); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}
	return configFile
}

func TestSIPServer_LoadConfig(t *testing.T) {
	tests := []struct {
		name        string
		configData  string
		expectError bool
	}{
		{
			name: "valid configuration",
			configData: `
server:
  udp_port: 5060
  tcp_port: 5060
account:
  username: registrar
  domain: test.local
  authentication_enabled: true
authentication:
  realm: "test.local"
  nonce_expiry: 300
registrar:
  queue_capacity: 1000
  min_expires: 60
  default_max_expires: 3600
  worker_wait_seconds: 10
logging:
  level: "info"
  file: "./test.log"
`,
			expectError: false,
		},
		{
			name: "invalid configuration - missing domain",
			configData: `
server:
  udp_port: 5060
  tcp_port: 5060
account:
  domain: ""
authentication:
  realm: "test.local"
  nonce_expiry: 300
registrar:
  queue_capacity: 1000
  min_expires: 60
  default_max_expires: 3600
  worker_wait_seconds: 10
`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configFile := filepath.Join(tmpDir, "config.yaml")
			if err := os.WriteFile(configFile, []byte(tt.configData), 0644); err != nil {
				t.Fatalf("failed to create test config file: %v", err)
			}

			server := NewSIPServer()
			err := server.LoadConfig(configFile)

			if tt.expectError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSIPServer_StartStop(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := writeTestConfig(t, tmpDir, "")

	server := NewSIPServer()
	if err := server.LoadConfig(configFile); err != nil {
		t.Fatalf("failed to load configuration: %v", err)
	}

	if err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if err := server.Stop(); err != nil {
		t.Fatalf("failed to stop server: %v", err)
	}
}

func TestSIPServer_StartWithoutConfig(t *testing.T) {
	server := NewSIPServer()
	if err := server.Start(); err == nil {
		t.Error("expected error when starting server without configuration")
	}
}

func TestSIPServer_RegisterRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := writeTestConfig(t, tmpDir, "")

	srv := NewSIPServer()
	if err := srv.LoadConfig(configFile); err != nil {
		t.Fatalf("failed to load configuration: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	defer srv.Stop()

	time.Sleep(50 * time.Millisecond)

	udpAddr := srv.transportManager.GetUDPLocalAddr()
	if udpAddr == nil {
		t.Fatal("expected a bound UDP local address")
	}

	conn, err := net.DialUDP("udp", nil, udpAddr.(*net.UDPAddr))
	if err != nil {
		t.Fatalf("failed to dial UDP listener: %v", err)
	}
	defer conn.Close()

	register := "REGISTER sip:test.local SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP " + conn.LocalAddr().String() + ";branch=z9hG4bK-test\r\n" +
		"From: <sip:34020000001320000001@test.local>;tag=fromtag\r\n" +
		"To: <sip:34020000001320000001@test.local>\r\n" +
		"Call-ID: server-roundtrip-1\r\n" +
		"CSeq: 1 REGISTER\r\n" +
		"Contact: <sip:34020000001320000001@192.0.2.10:5060>\r\n" +
		"Max-Forwards: 70\r\n" +
		"Expires: 3600\r\n" +
		"Content-Length: 0\r\n\r\n"

	if _, err := conn.Write([]byte(register)); err != nil {
		t.Fatalf("failed to send REGISTER: %v", err)
	}

	buf := make([]byte, 2048)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}

	response := string(buf[:n])
	if !strings.Contains(response, "200") {
		t.Errorf("expected a 200 OK response, got: %s", response)
	}
}
