package transaction

import (
	"testing"

	"github.com/zurustar/gb28181registrar/internal/parser"
)

func TestManagerCreateTransaction(t *testing.T) {
	sentMessages := []*parser.SIPMessage{}
	sendFunc := func(msg *parser.SIPMessage) error {
		sentMessages = append(sentMessages, msg)
		return nil
	}

	manager := NewManager(sendFunc)
	defer manager.Stop()

	register := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest123",
		parser.HeaderCallID: "test-call-id",
	})

	transaction := manager.CreateTransaction(register)
	if transaction == nil {
		t.Fatal("CreateTransaction returned nil")
	}

	if transaction.GetState() != StateTrying {
		t.Errorf("Expected state Trying, got %v", transaction.GetState())
	}

	found := manager.FindTransaction(register)
	if found == nil {
		t.Error("FindTransaction returned nil")
	}

	if found.GetID() != transaction.GetID() {
		t.Error("Found transaction ID doesn't match created transaction ID")
	}
}

func TestManagerFindTransaction(t *testing.T) {
	sendFunc := func(msg *parser.SIPMessage) error {
		return nil
	}

	manager := NewManager(sendFunc)
	defer manager.Stop()

	register := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest123",
		parser.HeaderCallID: "test-call-id",
	})

	found := manager.FindTransaction(register)
	if found != nil {
		t.Error("FindTransaction should return nil for non-existent transaction")
	}

	transaction := manager.CreateTransaction(register)
	if transaction == nil {
		t.Fatal("CreateTransaction returned nil")
	}

	found = manager.FindTransaction(register)
	if found == nil {
		t.Error("FindTransaction returned nil for existing transaction")
	}

	foundByID := manager.FindTransactionByID(transaction.GetID())
	if foundByID == nil {
		t.Error("FindTransactionByID returned nil")
	}

	if foundByID.GetID() != transaction.GetID() {
		t.Error("Found transaction ID doesn't match")
	}
}

func TestManagerProcessMessage(t *testing.T) {
	sentMessages := []*parser.SIPMessage{}
	sendFunc := func(msg *parser.SIPMessage) error {
		sentMessages = append(sentMessages, msg)
		return nil
	}

	manager := NewManager(sendFunc)
	defer manager.Stop()

	register := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest123",
		parser.HeaderCallID: "test-call-id",
	})

	err := manager.ProcessMessage(register)
	if err != nil {
		t.Errorf("ProcessMessage failed: %v", err)
	}

	transaction := manager.FindTransaction(register)
	if transaction == nil {
		t.Error("ProcessMessage should have created a server transaction")
	}
}

func TestManagerSendResponse(t *testing.T) {
	sentMessages := []*parser.SIPMessage{}
	sendFunc := func(msg *parser.SIPMessage) error {
		sentMessages = append(sentMessages, msg)
		return nil
	}

	manager := NewManager(sendFunc)
	defer manager.Stop()

	register := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest123",
		parser.HeaderCallID: "test-call-id",
	})

	transaction := manager.CreateTransaction(register)
	if transaction == nil {
		t.Fatal("CreateTransaction returned nil")
	}

	response := parser.NewResponseMessage(200, "OK")
	err := manager.SendResponse(response, transaction.GetID())
	if err != nil {
		t.Errorf("SendResponse failed: %v", err)
	}

	if len(sentMessages) == 0 {
		t.Error("SendResponse should have sent the response")
	}
}

func TestManagerRemoveTransaction(t *testing.T) {
	sendFunc := func(msg *parser.SIPMessage) error {
		return nil
	}

	manager := NewManager(sendFunc)
	defer manager.Stop()

	register := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest123",
		parser.HeaderCallID: "test-call-id",
	})

	transaction := manager.CreateTransaction(register)
	if transaction == nil {
		t.Fatal("CreateTransaction returned nil")
	}

	found := manager.FindTransaction(register)
	if found == nil {
		t.Error("Should be able to find transaction")
	}

	manager.RemoveTransaction(transaction.GetID())

	found = manager.FindTransaction(register)
	if found != nil {
		t.Error("Should not be able to find removed transaction")
	}
}

func TestManagerCleanupExpired(t *testing.T) {
	sendFunc := func(msg *parser.SIPMessage) error {
		return nil
	}

	manager := NewManager(sendFunc)
	defer manager.Stop()

	register := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest123",
		parser.HeaderCallID: "test-call-id",
	})

	transaction := manager.CreateTransaction(register)
	if transaction == nil {
		t.Fatal("CreateTransaction returned nil")
	}

	initialCount := manager.GetTransactionCount()
	if initialCount == 0 {
		t.Error("Should have at least one transaction")
	}

	if st, ok := transaction.(*ServerTransaction); ok {
		st.setState(StateTerminated)
	}

	manager.CleanupExpired()

	finalCount := manager.GetTransactionCount()
	if finalCount >= initialCount {
		t.Error("Cleanup should have removed terminated transaction")
	}
}

func TestManagerGetTransactionCount(t *testing.T) {
	sendFunc := func(msg *parser.SIPMessage) error {
		return nil
	}

	manager := NewManager(sendFunc)
	defer manager.Stop()

	if manager.GetTransactionCount() != 0 {
		t.Error("Should start with 0 transactions")
	}

	register := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest123",
		parser.HeaderCallID: "test-call-id",
	})

	manager.CreateTransaction(register)

	if manager.GetTransactionCount() != 1 {
		t.Error("Should have 1 transaction")
	}

	register2 := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest456",
		parser.HeaderCallID: "test-call-id-2",
	})

	manager.CreateTransaction(register2)

	if manager.GetTransactionCount() != 2 {
		t.Error("Should have 2 transactions")
	}
}

func TestManagerGetTransactions(t *testing.T) {
	sendFunc := func(msg *parser.SIPMessage) error {
		return nil
	}

	manager := NewManager(sendFunc)
	defer manager.Stop()

	register1 := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest123",
		parser.HeaderCallID: "test-call-id-1",
	})

	register2 := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest456",
		parser.HeaderCallID: "test-call-id-2",
	})

	t1 := manager.CreateTransaction(register1)
	t2 := manager.CreateTransaction(register2)

	transactions := manager.GetTransactions()
	if len(transactions) != 2 {
		t.Errorf("Expected 2 transactions, got %d", len(transactions))
	}

	found1 := false
	found2 := false
	for _, transaction := range transactions {
		if transaction.GetID() == t1.GetID() {
			found1 = true
		}
		if transaction.GetID() == t2.GetID() {
			found2 = true
		}
	}

	if !found1 || !found2 {
		t.Error("Not all transactions found in GetTransactions result")
	}
}

func TestManagerStop(t *testing.T) {
	sendFunc := func(msg *parser.SIPMessage) error {
		return nil
	}

	manager := NewManager(sendFunc)

	register := createTestMessage(parser.MethodREGISTER, map[string]string{
		parser.HeaderVia:    "SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bKtest123",
		parser.HeaderCallID: "test-call-id",
	})

	manager.CreateTransaction(register)

	if manager.GetTransactionCount() == 0 {
		t.Error("Should have transactions before stop")
	}

	manager.Stop()

	if manager.GetTransactionCount() != 0 {
		t.Error("Should have cleaned up all transactions after stop")
	}
}
