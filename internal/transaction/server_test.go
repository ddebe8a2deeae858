package transaction

import (
	"testing"
	"time"

	"github.com/zurustar/gb28181registrar/internal/parser"
)

func TestServerTransactionProvisionalThenOK(t *testing.T) {
	sentMessages := []*parser.SIPMessage{}
	sendFunc := func(msg *parser.SIPMessage) error {
		sentMessages = append(sentMessages, msg)
		return nil
	}

	register := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest123",
		parser.HeaderCallID: "test-call-id",
	})

	st := NewServerTransaction(register, sendFunc)

	if st.GetState() != StateTrying {
		t.Errorf("Expected state Trying, got %v", st.GetState())
	}

	trying := parser.NewResponseMessage(100, "Trying")
	if err := st.SendResponse(trying); err != nil {
		t.Errorf("SendResponse failed: %v", err)
	}
	if st.GetState() != StateProceeding {
		t.Errorf("Expected state Proceeding, got %v", st.GetState())
	}

	ok := parser.NewResponseMessage(200, "OK")
	if err := st.SendResponse(ok); err != nil {
		t.Errorf("SendResponse failed: %v", err)
	}
	if st.GetState() != StateCompleted {
		t.Errorf("Expected state Completed, got %v", st.GetState())
	}

	if len(sentMessages) != 2 {
		t.Errorf("Expected 2 sent messages, got %d", len(sentMessages))
	}
}

func TestServerTransactionFinalResponseFromTrying(t *testing.T) {
	sendFunc := func(msg *parser.SIPMessage) error { return nil }

	register := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest456",
		parser.HeaderCallID: "test-call-id-2",
	})

	st := NewServerTransaction(register, sendFunc)

	forbidden := parser.NewResponseMessage(403, "Forbidden")
	if err := st.SendResponse(forbidden); err != nil {
		t.Errorf("SendResponse failed: %v", err)
	}

	if st.GetState() != StateCompleted {
		t.Errorf("Expected state Completed, got %v", st.GetState())
	}
}

func TestServerTransactionRetransmission(t *testing.T) {
	sentMessages := []*parser.SIPMessage{}
	sendFunc := func(msg *parser.SIPMessage) error {
		sentMessages = append(sentMessages, msg)
		return nil
	}

	register := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest123",
		parser.HeaderCallID: "test-call-id",
	})

	st := NewServerTransaction(register, sendFunc)

	trying := parser.NewResponseMessage(100, "Trying")
	if err := st.SendResponse(trying); err != nil {
		t.Errorf("SendResponse failed: %v", err)
	}

	initialCount := len(sentMessages)

	if err := st.ProcessMessage(register); err != nil {
		t.Errorf("ProcessMessage failed: %v", err)
	}

	if len(sentMessages) <= initialCount {
		t.Error("Expected response retransmission")
	}
}

func TestServerTransactionTimerJ(t *testing.T) {
	sendFunc := func(msg *parser.SIPMessage) error { return nil }

	register := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest123",
		parser.HeaderCallID: "test-call-id",
	})

	st := NewServerTransaction(register, sendFunc)

	ok := parser.NewResponseMessage(200, "OK")
	if err := st.SendResponse(ok); err != nil {
		t.Errorf("SendResponse failed: %v", err)
	}
	if st.GetState() != StateCompleted {
		t.Errorf("Expected state Completed, got %v", st.GetState())
	}

	st.startTimerJ(10*time.Millisecond, func() {
		if st.GetState() == StateCompleted {
			st.setState(StateTerminated)
		}
	})

	time.Sleep(20 * time.Millisecond)

	if st.GetState() != StateTerminated {
		t.Errorf("Expected state Terminated, got %v", st.GetState())
	}
}

func TestServerTransactionTCPTerminatesImmediately(t *testing.T) {
	sendFunc := func(msg *parser.SIPMessage) error { return nil }

	register := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/TCP 192.168.1.1:5060;branch=z9hG4bKtest789",
		parser.HeaderCallID: "test-call-id-3",
	})
	register.Transport = "TCP"

	st := NewServerTransaction(register, sendFunc)

	ok := parser.NewResponseMessage(200, "OK")
	if err := st.SendResponse(ok); err != nil {
		t.Errorf("SendResponse failed: %v", err)
	}

	if st.GetState() != StateTerminated {
		t.Errorf("Expected TCP transaction to terminate immediately, got %v", st.GetState())
	}
}

func TestServerTransactionSendRequestAsResponseFails(t *testing.T) {
	sendFunc := func(msg *parser.SIPMessage) error { return nil }

	register := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest123",
		parser.HeaderCallID: "test-call-id",
	})

	st := NewServerTransaction(register, sendFunc)

	request := createTestMessage(parser.MethodOPTIONS, nil)
	if err := st.SendResponse(request); err == nil {
		t.Error("Expected error when sending request as response")
	}
}

func TestServerTransactionProcessResponseFails(t *testing.T) {
	sendFunc := func(msg *parser.SIPMessage) error { return nil }

	register := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest123",
		parser.HeaderCallID: "test-call-id",
	})

	st := NewServerTransaction(register, sendFunc)

	response := parser.NewResponseMessage(200, "OK")
	if err := st.ProcessMessage(response); err == nil {
		t.Error("Expected error when processing response in server transaction")
	}
}

func TestServerTransactionIgnoresMessagesAfterTermination(t *testing.T) {
	sentMessages := []*parser.SIPMessage{}
	sendFunc := func(msg *parser.SIPMessage) error {
		sentMessages = append(sentMessages, msg)
		return nil
	}

	register := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest123",
		parser.HeaderCallID: "test-call-id",
	})

	st := NewServerTransaction(register, sendFunc)
	st.setState(StateTerminated)

	if err := st.ProcessMessage(register); err != nil {
		t.Errorf("ProcessMessage failed: %v", err)
	}
	if len(sentMessages) != 0 {
		t.Error("Terminated transaction should not retransmit")
	}
}
