package transaction

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zurustar/gb28181registrar/internal/parser"
)

// Timer constants as defined in RFC3261 §17.2.2 for non-INVITE server
// transactions.
const (
	TimerT1 = 500 * time.Millisecond // RTT estimate
	TimerT4 = 5 * time.Second        // maximum duration a message remains in the network
)

// TimerJ is the only timer a non-INVITE server transaction needs: how long
// to keep absorbing retransmissions of the request after the final response
// has been sent.
type transactionTimer struct {
	timer *time.Timer
}

// BaseTransaction tracks the identity and lifecycle of one inbound request.
type BaseTransaction struct {
	id           string
	state        TransactionState
	method       string
	callID       string
	fromTag      string
	toTag        string
	cseq         uint32
	timerJ       *transactionTimer
	mutex        sync.RWMutex
	lastRequest  *parser.SIPMessage
	lastResponse *parser.SIPMessage
	transport    string
	created      time.Time
}

// NewBaseTransaction creates a new base transaction for an inbound request.
func NewBaseTransaction(msg *parser.SIPMessage) *BaseTransaction {
	bt := &BaseTransaction{
		id:      generateTransactionID(msg),
		created: time.Now(),
	}

	if msg.IsRequest() {
		bt.method = msg.GetMethod()
		bt.callID = msg.GetHeader(parser.HeaderCallID)
		bt.fromTag = extractTag(msg.GetHeader(parser.HeaderFrom))
		bt.toTag = extractTag(msg.GetHeader(parser.HeaderTo))
		bt.cseq = extractCSeq(msg.GetHeader(parser.HeaderCSeq))
		bt.lastRequest = msg.Clone()
	}

	bt.transport = msg.Transport

	return bt
}

// GetID returns the transaction ID
func (bt *BaseTransaction) GetID() string {
	bt.mutex.RLock()
	defer bt.mutex.RUnlock()
	return bt.id
}

// GetState returns the current transaction state
func (bt *BaseTransaction) GetState() TransactionState {
	bt.mutex.RLock()
	defer bt.mutex.RUnlock()
	return bt.state
}

// setState sets the transaction state
func (bt *BaseTransaction) setState(state TransactionState) {
	bt.mutex.Lock()
	defer bt.mutex.Unlock()
	bt.state = state
}

// startTimerJ arms the retransmission-absorption timer, replacing any timer
// already running.
func (bt *BaseTransaction) startTimerJ(duration time.Duration, callback func()) {
	bt.mutex.Lock()
	defer bt.mutex.Unlock()

	if bt.timerJ != nil {
		bt.timerJ.timer.Stop()
	}

	bt.timerJ = &transactionTimer{timer: time.AfterFunc(duration, callback)}
}

// cancelTimerJ stops the retransmission-absorption timer if one is running.
func (bt *BaseTransaction) cancelTimerJ() {
	bt.mutex.Lock()
	defer bt.mutex.Unlock()

	if bt.timerJ != nil {
		bt.timerJ.timer.Stop()
		bt.timerJ = nil
	}
}

// IsExpired checks if the transaction has outlived the non-INVITE server
// transaction lifetime of 64*T1 (RFC3261 §17.2.2).
func (bt *BaseTransaction) IsExpired() bool {
	bt.mutex.RLock()
	defer bt.mutex.RUnlock()

	return time.Since(bt.created) > 64*TimerT1
}

// generateTransactionID generates a unique transaction ID from the
// branch parameter, method, and Call-ID of a request.
func generateTransactionID(msg *parser.SIPMessage) string {
	branch := extractBranch(msg.GetHeader(parser.HeaderVia))
	method := msg.GetMethod()
	callID := msg.GetHeader(parser.HeaderCallID)

	if branch != "" && strings.HasPrefix(branch, "z9hG4bK") {
		return fmt.Sprintf("%s-%s-%s", branch, method, callID)
	}

	// Fallback for non-compliant branch parameters
	fromTag := extractTag(msg.GetHeader(parser.HeaderFrom))
	cseq := msg.GetHeader(parser.HeaderCSeq)
	return fmt.Sprintf("%s-%s-%s-%s", callID, fromTag, cseq, method)
}

// extractBranch extracts the branch parameter from Via header
func extractBranch(via string) string {
	if via == "" {
		return ""
	}

	parts := strings.Split(via, ";")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "branch=") {
			return strings.TrimPrefix(part, "branch=")
		}
	}

	return ""
}

// extractTag extracts the tag parameter from From/To header
func extractTag(header string) string {
	if header == "" {
		return ""
	}

	parts := strings.Split(header, ";")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "tag=") {
			return strings.TrimPrefix(part, "tag=")
		}
	}

	return ""
}

// extractCSeq extracts the sequence number from CSeq header
func extractCSeq(cseq string) uint32 {
	if cseq == "" {
		return 0
	}

	parts := strings.Fields(cseq)
	if len(parts) < 1 {
		return 0
	}

	var seq uint32
	fmt.Sscanf(parts[0], "%d", &seq)
	return seq
}
