package registrar

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/zurustar/gb28181registrar/internal/auth"
	"github.com/zurustar/gb28181registrar/internal/logging"
	"github.com/zurustar/gb28181registrar/internal/parser"
	"github.com/zurustar/gb28181registrar/internal/sipaccount"
	"github.com/zurustar/gb28181registrar/internal/uapolicy"
)

// Worker is the single cooperative consumer that drains the register
// queue and runs the registration state machine against each transaction.
type Worker struct {
	queue         *Queue
	responses     *ResponseBuilder
	authenticator auth.Authenticator
	policy        *uapolicy.Table
	bindings      BindingStore
	deviceCache   DeviceCache
	accounts      sipaccount.Store
	localAccount  *sipaccount.LocalAccount

	minExpires        int
	defaultMaxExpires int
	waitTimeout       time.Duration

	rpcRegister    RegisterHook
	alarmSubscribe RegisterHook

	log logging.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewWorker creates a Worker. rpcRegister and alarmSubscribe may be nil;
// a nil hook is simply never invoked. accounts may be nil, meaning no
// persistent account store is configured and every REGISTER is checked
// against a freshly synthesized account record.
func NewWorker(
	queue *Queue,
	responses *ResponseBuilder,
	authenticator auth.Authenticator,
	policy *uapolicy.Table,
	bindings BindingStore,
	deviceCache DeviceCache,
	accounts sipaccount.Store,
	localAccount *sipaccount.LocalAccount,
	minExpires, defaultMaxExpires int,
	waitTimeout time.Duration,
	rpcRegister, alarmSubscribe RegisterHook,
	log logging.Logger,
) *Worker {
	return &Worker{
		queue:             queue,
		responses:         responses,
		authenticator:     authenticator,
		policy:            policy,
		bindings:          bindings,
		deviceCache:       deviceCache,
		accounts:          accounts,
		localAccount:      localAccount,
		minExpires:        minExpires,
		defaultMaxExpires: defaultMaxExpires,
		waitTimeout:       waitTimeout,
		rpcRegister:       rpcRegister,
		alarmSubscribe:    alarmSubscribe,
		log:               log,
		stopCh:            make(chan struct{}),
	}
}

// Stop requests the worker loop to finish its current transaction, if any,
// and exit. Safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func (w *Worker) stopped() bool {
	select {
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

// Run is the worker loop: wait on a signal with a bounded timeout, then
// drain the queue one transaction at a time, polling the stop flag between
// transactions. Intended to be run in its own goroutine.
func (w *Worker) Run() {
	for {
		if w.stopped() {
			return
		}

		select {
		case <-w.stopCh:
			return
		case <-w.queue.SignalChan():
		case <-time.After(w.waitTimeout):
		}

		for {
			item, ok := w.queue.Dequeue()
			if !ok {
				break
			}
			w.process(item)
			if w.stopped() {
				return
			}
		}
	}
}

// process runs the registration pipeline for one transaction, converting
// any uncaught failure into a 500 response rather than letting it escape
// the worker loop.
func (w *Worker) process(item *PendingTransaction) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("panic in register worker", logging.StringField("panic", fmt.Sprint(r)))
			w.finish(item, w.responses.InternalError(item.Request))
		}
	}()
	w.handle(item)
}

func (w *Worker) handle(item *PendingTransaction) Result {
	req := item.Request

	toHeader := req.GetHeader(parser.HeaderTo)
	domain := toURIHost(toHeader)
	if domain == "" {
		w.finish(item, w.responses.Forbidden(req, "Domain not serviced", ""))
		w.log.Warn("register rejected", logging.StringField("result", DomainNotServiced.String()))
		return DomainNotServiced
	}

	user := toURIUser(toHeader)
	account := w.lookupAccount(user, domain)
	aor := user + "@" + domain

	if !w.localAccount.AuthenticationEnabled {
		result := w.accept(item, aor, domain)
		if w.rpcRegister != nil {
			w.rpcRegister(RegisterEvent{
				AOR:        aor,
				Domain:     domain,
				Contact:    req.GetHeader(parser.HeaderContact),
				Result:     result,
				RemoteAddr: item.Remote,
			})
		}
		return result
	}

	authHeader := req.GetHeader(parser.HeaderAuthorization)
	decision, challenge, err := w.authenticator.Authenticate(authHeader, req.GetMethod(), account)
	if err != nil {
		w.log.Error("authenticator error", logging.ErrorField(err))
	}

	switch decision {
	case auth.Rejected:
		w.finish(item, w.responses.Forbidden(req, "Forbidden", challenge))
		w.log.Warn("register rejected", logging.StringField("result", Forbidden.String()))
		return Forbidden
	case auth.ChallengeRequired:
		w.finish(item, w.responses.Unauthorized(req, challenge))
		w.log.Warn("register rejected", logging.StringField("result", AuthenticationRequired.String()))
		return AuthenticationRequired
	default:
		return w.accept(item, aor, domain)
	}
}

// accept runs the success path: device-cache population, binding update
// (or removal, for an explicit expires=0 deregistration), and the final
// 200 OK. The alarm-subscribe hook fires here, and only here, matching a
// fire-on-success policy rather than firing after every processed
// transaction regardless of outcome.
func (w *Worker) accept(item *PendingTransaction, aor, domain string) Result {
	req := item.Request
	contact := req.GetHeader(parser.HeaderContact)
	ua := req.GetHeader(parser.HeaderUserAgent)

	if contact == "" {
		w.deviceCache.PlaceIn(domain, CameraInfo{AOR: aor, Domain: domain, UserAgent: ua, LocalAddr: item.Local, RemoteAddr: item.Remote})
		w.finish(item, w.responses.OK(req, nil))
		w.log.Info("RegisterSuccess", logging.StringField("aor", aor))
		w.fireAlarm(aor, domain, "", item.Remote, Authenticated)
		return Authenticated
	}

	expiry := requestedExpiry(req)
	if expiry == 0 {
		w.bindings.Remove(aor)
		w.deviceCache.PlaceIn(domain, CameraInfo{AOR: aor, Domain: domain, UserAgent: ua, LocalAddr: item.Local, RemoteAddr: item.Remote})
		w.finish(item, w.responses.OK(req, []string{formatContact(contact, 0)}))
		w.log.Info("RegisterSuccess", logging.StringField("aor", aor), logging.StringField("result", RemoveAllRegistrations.String()))
		w.fireAlarm(aor, domain, contact, item.Remote, RemoveAllRegistrations)
		return RemoveAllRegistrations
	}

	maxExpiry := int(w.policy.MaxExpiryFor(ua))
	resolved := resolveExpiry(expiry, w.defaultMaxExpires, maxExpiry)

	var responseContacts []string
	if err := w.bindings.Update(aor, contact, unixNow()+int64(resolved)); err != nil {
		w.log.Error("binding update failed", logging.ErrorField(err))
		responseContacts = []string{formatContact(contact, w.minExpires)}
	} else if w.policy.ContactListSupportedFor(ua) {
		if list, ok := w.bindings.Bindings(aor); ok && len(list) > 0 {
			responseContacts = list
		} else {
			responseContacts = []string{formatContact(contact, resolved)}
		}
	} else {
		responseContacts = []string{formatContact(contact, resolved)}
	}

	w.deviceCache.PlaceIn(domain, CameraInfo{
		AOR:        aor,
		Contact:    contact,
		Domain:     domain,
		UserAgent:  ua,
		ExpiresAt:  unixNow() + int64(resolved),
		LocalAddr:  item.Local,
		RemoteAddr: item.Remote,
	})

	w.log.Info("RegisterSuccess", logging.StringField("aor", aor))
	w.finish(item, w.responses.OK(req, responseContacts))
	w.fireAlarm(aor, domain, contact, item.Remote, Authenticated)

	return Authenticated
}

// lookupAccount consults the configured account store, if any, falling
// back to a synthesized record (empty password hash) when the store is
// absent or has no entry for this registrant.
func (w *Worker) lookupAccount(user, domain string) *sipaccount.Account {
	if w.accounts != nil {
		if account, ok := w.accounts.Lookup(user, domain); ok {
			return account
		}
	}
	return sipaccount.Synthesize(user, domain)
}

func (w *Worker) fireAlarm(aor, domain, contact string, remote net.Addr, result Result) {
	if w.alarmSubscribe == nil {
		return
	}
	w.alarmSubscribe(RegisterEvent{AOR: aor, Domain: domain, Contact: contact, Result: result, RemoteAddr: remote})
}

func (w *Worker) finish(item *PendingTransaction, response *parser.SIPMessage) {
	if err := item.Txn.SendResponse(response); err != nil {
		w.log.Error("failed to send final response", logging.ErrorField(err))
	}
}

// resolveExpiry applies the user-agent policy ceiling and the local
// default ceiling to a requested expiry, treating an unspecified or
// non-positive request as "use the ceiling".
func resolveExpiry(requested, defaultMaxExpires, uaMaxExpiry int) int {
	ceiling := defaultMaxExpires
	if uaMaxExpiry > 0 && uaMaxExpiry < ceiling {
		ceiling = uaMaxExpiry
	}
	if requested <= 0 {
		return ceiling
	}
	if requested > ceiling {
		return ceiling
	}
	return requested
}
