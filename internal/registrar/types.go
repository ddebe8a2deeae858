// Package registrar implements the SIP REGISTER server core: an intake
// that validates and bounds-checks inbound REGISTER requests, a bounded
// work queue, a single cooperative worker that runs the registration
// state machine, and a response builder that preserves RFC3261 header
// semantics in every reply.
package registrar

import (
	"net"

	"github.com/zurustar/gb28181registrar/internal/parser"
	"github.com/zurustar/gb28181registrar/internal/transaction"
)

// Result is the outcome the worker reaches for one processed REGISTER
// transaction.
type Result int

const (
	Unknown Result = iota
	Trying
	Forbidden
	Authenticated
	AuthenticationRequired
	Failed
	Error
	RequestWithNoUser
	RemoveAllRegistrations
	DuplicateRequest
	AuthenticatedFromCache
	RequestWithNoContact
	NonRegisterMethod
	DomainNotServiced
	IntervalTooBrief
	SwitchboardPaymentRequired
)

// String renders the result for logging.
func (r Result) String() string {
	switch r {
	case Trying:
		return "Trying"
	case Forbidden:
		return "Forbidden"
	case Authenticated:
		return "Authenticated"
	case AuthenticationRequired:
		return "AuthenticationRequired"
	case Failed:
		return "Failed"
	case Error:
		return "Error"
	case RequestWithNoUser:
		return "RequestWithNoUser"
	case RemoveAllRegistrations:
		return "RemoveAllRegistrations"
	case DuplicateRequest:
		return "DuplicateRequest"
	case AuthenticatedFromCache:
		return "AuthenticatedFromCache"
	case RequestWithNoContact:
		return "RequestWithNoContact"
	case NonRegisterMethod:
		return "NonRegisterMethod"
	case DomainNotServiced:
		return "DomainNotServiced"
	case IntervalTooBrief:
		return "IntervalTooBrief"
	case SwitchboardPaymentRequired:
		return "SwitchboardPaymentRequired"
	default:
		return "Unknown"
	}
}

// CameraInfo is the shape of a registered device the worker publishes to
// the device cache on successful registration.
type CameraInfo struct {
	AOR        string
	Contact    string
	Domain     string
	UserAgent  string
	ExpiresAt  int64
	LocalAddr  net.Addr
	RemoteAddr net.Addr
}

// DeviceCache is the external collaborator that stores accepted
// registrations, keyed by the host part of the To URI. The registrar core treats it
// as opaque beyond this one operation.
type DeviceCache interface {
	PlaceIn(key string, camera CameraInfo)
}

// RegisterEvent is the payload handed to the post-registration hooks.
type RegisterEvent struct {
	AOR        string
	Domain     string
	Contact    string
	Result     Result
	RemoteAddr net.Addr
}

// RegisterHook fires after the worker reaches a result for a transaction.
// Implementations are the RPC-register and alarm-subscribe external
// collaborators; neither is allowed to block the worker loop for long.
type RegisterHook func(event RegisterEvent)

// PendingTransaction is one item on the register queue: the opaque SIP
// transaction plus the addressing and request data the worker needs to run
// the state machine. Holding the transaction rather than the transport
// avoids a cyclic reference between worker and transport.
type PendingTransaction struct {
	Txn     transaction.Transaction
	Local   net.Addr
	Remote  net.Addr
	Request *parser.SIPMessage
}
