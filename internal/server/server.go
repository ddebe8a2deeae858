package server

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

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

const serverAgent = "gb28181registrar/1.0"

// NewSIPServer creates a server with no configuration loaded yet.
func NewSIPServer() *SIPServer {
	return &SIPServer{}
}

// LoadConfig loads and validates the server configuration.
func (s *SIPServer) LoadConfig(filename string) error {
	configManager := config.NewManager()
	cfg, err := configManager.Load(filename)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := configManager.Validate(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	s.config = cfg
	return nil
}

// Start initializes every component and starts the transport listeners.
func (s *SIPServer) Start() error {
	if s.config == nil {
		return fmt.Errorf("configuration not loaded")
	}

	if err := s.initializeComponents(); err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}

	if err := s.startTransports(); err != nil {
		return fmt.Errorf("failed to start transports: %w", err)
	}

	go s.worker.Run()

	if s.config.StatusAPI.Enabled {
		if err := s.statusAPI.Start(s.config.StatusAPI.Port); err != nil {
			return fmt.Errorf("failed to start status api: %w", err)
		}
	}

	s.logger.Info("SIP server started",
		logging.IntField("udp_port", s.config.Server.UDPPort),
		logging.IntField("tcp_port", s.config.Server.TCPPort),
	)

	return nil
}

// Stop gracefully shuts down the server: the worker finishes its current
// transaction and exits, then transports stop accepting new traffic.
func (s *SIPServer) Stop() error {
	s.logger.Info("initiating server shutdown")

	s.worker.Stop()

	if s.statusAPI != nil {
		if err := s.statusAPI.Stop(); err != nil {
			s.logger.Error("error stopping status api", logging.ErrorField(err))
		}
	}

	if s.transportManager != nil {
		if err := s.transportManager.Stop(); err != nil {
			s.logger.Error("error stopping transport manager", logging.ErrorField(err))
		}
	}

	s.logger.Info("server shutdown completed")
	return nil
}

// RunWithSignalHandling starts the server and blocks until SIGINT/SIGTERM,
// then shuts down gracefully.
func (s *SIPServer) RunWithSignalHandling() error {
	if err := s.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	s.logger.Info("received shutdown signal", logging.StringField("signal", sig.String()))

	return s.Stop()
}

func (s *SIPServer) initializeComponents() error {
	var err error

	loggerConfig := logging.LoggerConfig{Level: s.config.Logging.Level, File: s.config.Logging.File}
	s.logger, err = logging.NewLoggerFromConfig(loggerConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	s.logger.Info("logger initialized")

	s.messageParser = parser.NewParser()

	s.transactionManager = transaction.NewManager(s.sendFinalResponse)
	s.logger.Info("transaction manager initialized")

	s.policy, err = uapolicy.LoadFile(s.config.UserAgentPolicy.File)
	if err != nil {
		return fmt.Errorf("failed to load user-agent policy table: %w", err)
	}
	s.logger.Info("user-agent policy table loaded", logging.IntField("entries", s.policy.Len()))

	s.localAccount = &sipaccount.LocalAccount{
		Username:              s.config.Account.Username,
		Domain:                s.config.Account.Domain,
		AuthenticationEnabled: s.config.Account.AuthenticationEnabled,
	}

	s.digestAuth = auth.NewSIPDigestAuthenticator(time.Duration(s.config.Authentication.NonceExpiry) * time.Second)
	s.authenticator = auth.NewRegistrarAuthenticator(s.digestAuth, s.config.Authentication.Realm)
	s.logger.Info("authenticator initialized", logging.StringField("realm", s.config.Authentication.Realm))

	s.queue = registrar.NewQueue(s.config.Registrar.QueueCapacity)
	s.responses = registrar.NewResponseBuilder(serverAgent)
	s.deviceCache = registrar.NewMemoryDeviceCache()
	s.bindings = registrar.NewMemoryBindingStore()

	accounts := sipaccount.NewMemoryStore()
	for _, rec := range s.config.Registrar.Accounts {
		accounts.Put(&sipaccount.Account{
			Username:     rec.Username,
			Domain:       rec.Domain,
			Realm:        rec.Domain,
			PasswordHash: rec.PasswordHash,
		})
	}
	s.logger.Info("account store provisioned", logging.IntField("accounts", len(s.config.Registrar.Accounts)))

	s.intake = registrar.NewIntake(s.queue, s.transactionManager, s.responses, s.config.Registrar.MinExpires, s.logger, s.sendDirectResponse)

	s.worker = registrar.NewWorker(
		s.queue,
		s.responses,
		s.authenticator,
		s.policy,
		s.bindings,
		s.deviceCache,
		accounts,
		s.localAccount,
		s.config.Registrar.MinExpires,
		s.config.Registrar.DefaultMaxExpires,
		time.Duration(s.config.Registrar.WorkerWaitSeconds)*time.Second,
		s.rpcDmsRegisterReceived,
		s.deviceAlarmSubscribe,
		s.logger,
	)
	s.logger.Info("registrar core initialized")

	s.statusAPI = statusapi.NewServer(s.deviceCache, s.queue, s.logger)

	s.validator = validation.NewMessageProcessor()

	s.transportManager = transport.NewManager()
	s.transportManager.RegisterHandler(s)
	s.logger.Info("transport manager initialized")

	return nil
}

func (s *SIPServer) startTransports() error {
	if err := s.transportManager.StartUDP(s.config.Server.UDPPort); err != nil {
		return fmt.Errorf("failed to start UDP transport: %w", err)
	}
	s.logger.Info("UDP transport started", logging.IntField("port", s.config.Server.UDPPort))

	if err := s.transportManager.StartTCP(s.config.Server.TCPPort); err != nil {
		return fmt.Errorf("failed to start TCP transport: %w", err)
	}
	s.logger.Info("TCP transport started", logging.IntField("port", s.config.Server.TCPPort))

	return nil
}

// HandleMessage implements transport.MessageHandler. It parses the datagram,
// runs it through the ambient syntax validation chain, and then hands every
// REGISTER request (retransmissions included) to intake. Any other request
// goes to a matching transaction in the transaction manager if one exists,
// and otherwise is answered with 400 "<METHOD> not supported".
func (s *SIPServer) HandleMessage(data []byte, transportName string, remote net.Addr) error {
	msg, err := s.messageParser.Parse(data)
	if err != nil {
		s.logger.Warn("failed to parse inbound message", logging.ErrorField(err), logging.AddressField("remote_addr", remoteAddrString(remote)))
		return nil
	}

	if !msg.IsRequest() {
		return nil
	}

	if errorResponse, err := s.validator.ProcessRequest(msg); err != nil {
		s.logger.Error("validation chain error", logging.ErrorField(err))
		return nil
	} else if errorResponse != nil {
		return s.sendDirectResponse(s.localAddrFor(transportName), remote, errorResponse)
	}

	local := s.localAddrFor(transportName)

	if s.intake.Handle(local, remote, msg) {
		return nil
	}

	if existing := s.transactionManager.FindTransaction(msg); existing != nil {
		return existing.ProcessMessage(msg)
	}

	resp := s.responses.BadRequest(msg, fmt.Sprintf("%s not supported", msg.GetMethod()))
	resp.SetHeader(parser.HeaderAllow, parser.MethodREGISTER)
	return s.sendDirectResponse(local, remote, resp)
}

func (s *SIPServer) localAddrFor(transportName string) net.Addr {
	if strings.EqualFold(transportName, "TCP") {
		return s.transportManager.GetTCPLocalAddr()
	}
	return s.transportManager.GetUDPLocalAddr()
}

// sendDirectResponse serializes and sends a response that never went
// through a SIP transaction (validation failures, unsupported methods).
func (s *SIPServer) sendDirectResponse(local, remote net.Addr, response *parser.SIPMessage) error {
	data, err := s.messageParser.Serialize(response)
	if err != nil {
		return fmt.Errorf("failed to serialize response: %w", err)
	}
	return s.transportManager.SendMessage(data, transportNameFor(remote), remote)
}

// sendFinalResponse is the transaction manager's send callback. A SIP
// response carries its own destination in its top Via header, so the
// transaction layer needs no per-transaction addressing state.
func (s *SIPServer) sendFinalResponse(response *parser.SIPMessage) error {
	data, err := s.messageParser.Serialize(response)
	if err != nil {
		return fmt.Errorf("failed to serialize response: %w", err)
	}

	transportName, addr, err := destinationFromVia(response.GetHeader(parser.HeaderVia))
	if err != nil {
		return fmt.Errorf("failed to resolve response destination: %w", err)
	}

	return s.transportManager.SendMessage(data, transportName, addr)
}

func (s *SIPServer) rpcDmsRegisterReceived(event registrar.RegisterEvent) {
	s.logger.Info("RPCDmsRegisterReceived",
		logging.StringField("aor", event.AOR),
		logging.StringField("result", event.Result.String()),
	)
}

func (s *SIPServer) deviceAlarmSubscribe(event registrar.RegisterEvent) {
	s.logger.Info("DeviceAlarmSubscribe",
		logging.StringField("aor", event.AOR),
		logging.StringField("result", event.Result.String()),
	)
}

// destinationFromVia resolves the transport and network address encoded in
// a response's top Via header, e.g. "SIP/2.0/UDP 192.168.1.10:5060;branch=z9hG4bK1".
func destinationFromVia(via string) (string, net.Addr, error) {
	if via == "" {
		return "", nil, fmt.Errorf("missing Via header")
	}

	fields := strings.Fields(via)
	if len(fields) < 2 {
		return "", nil, fmt.Errorf("malformed Via header: %q", via)
	}

	protoParts := strings.Split(fields[0], "/")
	transportName := "UDP"
	if len(protoParts) == 3 {
		transportName = strings.ToUpper(protoParts[2])
	}

	hostport := fields[1]
	if idx := strings.Index(hostport, ";"); idx != -1 {
		hostport = hostport[:idx]
	}

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return "", nil, fmt.Errorf("malformed Via host:port %q: %w", hostport, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", nil, fmt.Errorf("malformed Via port %q: %w", portStr, err)
	}

	if transportName == "TCP" {
		return transportName, &net.TCPAddr{IP: net.ParseIP(host), Port: port}, nil
	}
	return transportName, &net.UDPAddr{IP: net.ParseIP(host), Port: port}, nil
}

func transportNameFor(addr net.Addr) string {
	switch addr.(type) {
	case *net.TCPAddr:
		return "TCP"
	default:
		return "UDP"
	}
}

func remoteAddrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
