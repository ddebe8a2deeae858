package transaction

import (
	"github.com/zurustar/gb28181registrar/internal/parser"
)

// TransactionState represents the state of a non-INVITE server transaction,
// per RFC3261 §17.2.2. The registrar never issues or receives INVITE, so the
// INVITE-only states (Calling, Confirmed) do not exist here.
type TransactionState int

const (
	StateTrying TransactionState = iota
	StateProceeding
	StateCompleted
	StateTerminated
)

// String returns the string representation of the transaction state
func (ts TransactionState) String() string {
	switch ts {
	case StateTrying:
		return "Trying"
	case StateProceeding:
		return "Proceeding"
	case StateCompleted:
		return "Completed"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Transaction is a single inbound request and its eventual response.
type Transaction interface {
	GetState() TransactionState
	ProcessMessage(msg *parser.SIPMessage) error
	SendResponse(response *parser.SIPMessage) error
	GetID() string
}

// TransactionManager tracks in-flight server transactions and de-duplicates
// retransmissions of the same request.
type TransactionManager interface {
	CreateTransaction(msg *parser.SIPMessage) Transaction
	FindTransaction(msg *parser.SIPMessage) Transaction
	CleanupExpired()
}
