package registrar

import (
	"net"

	"github.com/zurustar/gb28181registrar/internal/logging"
	"github.com/zurustar/gb28181registrar/internal/parser"
	"github.com/zurustar/gb28181registrar/internal/transaction"
)

// Intake is the synchronous fast path that validates an inbound REGISTER
// request, rejects malformed or over-frequent requests directly, and hands
// everything else to the worker via the queue.
type Intake struct {
	queue       *Queue
	txnManager  transaction.TransactionManager
	responses   *ResponseBuilder
	minExpires  int
	log         logging.Logger
	sendResponse func(local, remote net.Addr, response *parser.SIPMessage) error
}

// NewIntake creates an Intake. sendResponse is the transport's synchronous
// send primitive used for the rejection paths (steps 3-7 of the intake
// algorithm); none of those responses goes through a transaction, and only
// the queue-full rejection follows the creation of one.
func NewIntake(queue *Queue, txnManager transaction.TransactionManager, responses *ResponseBuilder, minExpires int, log logging.Logger, sendResponse func(local, remote net.Addr, response *parser.SIPMessage) error) *Intake {
	return &Intake{
		queue:        queue,
		txnManager:   txnManager,
		responses:    responses,
		minExpires:   minExpires,
		log:          log,
		sendResponse: sendResponse,
	}
}

// Handle runs the intake algorithm for one (local, remote, request) tuple.
// It returns true if the request was a REGISTER the intake took
// responsibility for (accepted, queued, or rejected); false means the
// caller should route the request elsewhere (not this component's
// responsibility).
func (i *Intake) Handle(local, remote net.Addr, request *parser.SIPMessage) bool {
	if request.GetMethod() != parser.MethodREGISTER {
		return false
	}

	toHeader := request.GetHeader(parser.HeaderTo)
	if toHeader == "" {
		i.reject(local, remote, request, i.responses.BadRequest(request, "Missing To header"))
		return true
	}

	if toURIUser(toHeader) == "" {
		i.reject(local, remote, request, i.responses.BadRequest(request, "Missing username on To header"))
		return true
	}

	contact := request.GetHeader(parser.HeaderContact)
	if contact == "" {
		i.reject(local, remote, request, i.responses.BadRequest(request, "Missing Contact header"))
		return true
	}

	expiry := requestedExpiry(request)
	if expiry > 0 && expiry < i.minExpires {
		i.reject(local, remote, request, i.responses.IntervalTooBrief(request, i.minExpires))
		return true
	}

	// TryEnqueue checks capacity and appends under one lock acquisition, so
	// two REGISTERs arriving on separate connections at the same instant
	// cannot both observe room and both get in. A transaction created for
	// a request that loses this race is left for the manager's own
	// expiry sweep rather than torn down here.
	txn := i.txnManager.CreateTransaction(request)
	queued := i.queue.TryEnqueue(&PendingTransaction{
		Txn:     txn,
		Local:   local,
		Remote:  remote,
		Request: request,
	})
	if !queued {
		i.log.Warn("register queue full, rejecting request",
			logging.IntField("queue_capacity", i.queue.Capacity()))
		i.reject(local, remote, request, i.responses.Overloaded(request))
		return true
	}

	return true
}

func (i *Intake) reject(local, remote net.Addr, request *parser.SIPMessage, response *parser.SIPMessage) {
	if i.sendResponse == nil {
		return
	}
	if err := i.sendResponse(local, remote, response); err != nil {
		i.log.Error("failed to send intake rejection", logging.ErrorField(err))
	}
}
