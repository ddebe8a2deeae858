package server

import (
	"github.com/zurustar/gb28181registrar/internal/auth"
	"github.com/zurustar/gb28181registrar/internal/config"
	"github.com/zurustar/gb28181registrar/internal/logging"
	"github.com/zurustar/gb28181registrar/internal/parser"
	"github.com/zurustar/gb28181registrar/internal/registrar"
	"github.com/zurustar/gb28181registrar/internal/sipaccount"
	"github.com/zurustar/gb28181registrar/internal/statusapi"
	"github.com/zurustar/gb28181registrar/internal/transaction"
	"github.com/zurustar/gb28181registrar/internal/transport"
	"github.com/zurustar/gb28181registrar/internal/uapolicy"
	"github.com/zurustar/gb28181registrar/internal/validation"
)

// SIPServer coordinates the transport, transaction, and registrar layers
// into a running GB28181 registrar process.
type SIPServer struct {
	config             *config.Config
	logger             logging.Logger
	transportManager   *transport.Manager
	messageParser      *parser.Parser
	transactionManager transaction.TransactionManager
	validator          *validation.MessageProcessor

	digestAuth    auth.DigestAuthenticator
	authenticator auth.Authenticator
	policy        *uapolicy.Table
	localAccount  *sipaccount.LocalAccount

	queue       *registrar.Queue
	responses   *registrar.ResponseBuilder
	deviceCache *registrar.MemoryDeviceCache
	bindings    *registrar.MemoryBindingStore
	intake      *registrar.Intake
	worker      *registrar.Worker
	statusAPI   *statusapi.Server
}

// Server is the interface the process entrypoint drives.
type Server interface {
	Start() error
	Stop() error
	LoadConfig(filename string) error
	RunWithSignalHandling() error
}
