package transaction

import (
	"fmt"

	"github.com/zurustar/gb28181registrar/internal/parser"
)

// ServerTransaction is a non-INVITE server transaction (RFC3261 §17.2.2):
// Trying -> Proceeding? -> Completed -> Terminated. The registrar only ever
// handles REGISTER and OPTIONS, neither of which is INVITE, so there is no
// Calling/Confirmed branch and no ACK handling to carry.
type ServerTransaction struct {
	*BaseTransaction
	sendMessage func(*parser.SIPMessage) error
}

// NewServerTransaction creates a new server transaction in the Trying state.
func NewServerTransaction(msg *parser.SIPMessage, sendFunc func(*parser.SIPMessage) error) *ServerTransaction {
	st := &ServerTransaction{
		BaseTransaction: NewBaseTransaction(msg),
		sendMessage:     sendFunc,
	}
	st.setState(StateTrying)
	return st
}

// ProcessMessage handles a retransmission of the original request by
// re-sending whatever response was last sent, per the state table in
// RFC3261 §17.2.2.
func (st *ServerTransaction) ProcessMessage(msg *parser.SIPMessage) error {
	if msg.IsResponse() {
		return fmt.Errorf("server transaction received response message")
	}

	switch st.GetState() {
	case StateTrying, StateProceeding, StateCompleted:
		if st.lastResponse != nil && st.sendMessage != nil {
			return st.sendMessage(st.lastResponse)
		}
	case StateTerminated:
		// Ignore all messages
	}

	return nil
}

// SendResponse sends a response for the server transaction and advances its
// state machine.
func (st *ServerTransaction) SendResponse(response *parser.SIPMessage) error {
	if !response.IsResponse() {
		return fmt.Errorf("cannot send request as response")
	}

	statusCode := response.GetStatusCode()
	st.lastResponse = response.Clone()

	if st.sendMessage != nil {
		if err := st.sendMessage(response); err != nil {
			return err
		}
	}

	switch st.GetState() {
	case StateTrying:
		if statusCode >= 100 && statusCode < 200 {
			st.setState(StateProceeding)
		} else if statusCode >= 200 {
			st.setState(StateCompleted)
			st.armTimerJ()
		}

	case StateProceeding:
		if statusCode >= 200 {
			st.setState(StateCompleted)
			st.armTimerJ()
		}
		// Additional 1xx responses are ignored; we stay in Proceeding.
	}

	return nil
}

// armTimerJ starts Timer J: how long to keep absorbing retransmissions of
// the request before discarding the transaction. Unreliable transports wait
// 64*T1; reliable transports can terminate immediately.
func (st *ServerTransaction) armTimerJ() {
	if st.transport != "UDP" {
		st.setState(StateTerminated)
		return
	}

	st.startTimerJ(64*TimerT1, func() {
		st.setState(StateTerminated)
	})
}

// GetState returns the current transaction state
func (st *ServerTransaction) GetState() TransactionState {
	return st.BaseTransaction.GetState()
}

// GetID returns the transaction ID
func (st *ServerTransaction) GetID() string {
	return st.BaseTransaction.GetID()
}
