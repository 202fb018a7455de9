// Package remote holds the commands that run a node outside the server
// process, authenticating through the server's HTTP bridge.
package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	appcomm "github.com/alissayuxuan/OMNI-SYS/internal/application/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/auth"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/broker"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/cache"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/config"
	sharedConfig "github.com/alissayuxuan/OMNI-SYS/internal/shared/config"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/version"
)

// options are the connection flags shared by send and listen. Zero values
// fall back to the loaded configuration.
type options struct {
	serverURL  string
	brokerKind string
	brokerHost string
	brokerPort int
	authMode   string
	username   string
	password   string
}

func (o *options) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.serverURL, "server", "", "HTTP bridge base URL (default: server.base_url)")
	flags.StringVar(&o.brokerKind, "broker-kind", "", "Broker kind: mqtt or nats (default: broker.kind)")
	flags.StringVar(&o.brokerHost, "broker-host", "", "Broker host (default: broker.host)")
	flags.IntVar(&o.brokerPort, "broker-port", 0, "Broker port (default: broker.port)")
	flags.StringVar(&o.authMode, "broker-auth", "", "Broker auth mode: none or token (default: broker.auth_mode)")
	flags.StringVarP(&o.username, "username", "u", "", "Agent username")
	flags.StringVarP(&o.password, "password", "p", "", "Agent password")
}

// load reads the configuration, applies the flag overrides and sends logs to
// stderr so stdout stays reserved for command output.
func (o *options) load() (*config.Config, logger.Interface, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if o.serverURL != "" {
		cfg.Server.BaseURL = o.serverURL
	}
	if o.brokerKind != "" {
		cfg.Broker.Kind = o.brokerKind
	}
	if o.brokerHost != "" {
		cfg.Broker.Host = o.brokerHost
	}
	if o.brokerPort != 0 {
		cfg.Broker.Port = o.brokerPort
	}
	if o.authMode != "" {
		cfg.Broker.AuthMode = o.authMode
	}

	cfg.Logger.OutputPath = "stderr"
	if err := logger.Init(&cfg.Logger, "release"); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.NewLogger(), nil
}

// session is a bridge login plus a process-local node manager.
type session struct {
	cfg     *config.Config
	bridge  *auth.BridgeClient
	tokens  *comm.TokenPair
	manager *appcomm.Manager
	logger  logger.Interface
}

func (o *options) open(ctx context.Context, observer comm.Observer) (*session, error) {
	cfg, log, err := o.load()
	if err != nil {
		return nil, err
	}
	if o.username == "" {
		return nil, fmt.Errorf("--username is required")
	}

	bridge := auth.NewBridgeClient(cfg.Server.BaseURL, nil)
	tokens, err := bridge.Login(ctx, o.username, o.password)
	if err != nil {
		return nil, fmt.Errorf("failed to log in as %s: %w", o.username, err)
	}
	log.Infow("logged in", "username", o.username, "server", cfg.Server.BaseURL)

	if v, err := bridge.ServerVersion(ctx); err == nil && !version.Compatible(v) {
		log.Warnw("server runs a different major version", "server_version", v, "client_version", version.String())
	}

	transports, err := broker.NewTransportFactory(cfg.Broker, logger.WithComponent("broker"))
	if err != nil {
		return nil, err
	}

	builder := &appcomm.Builder{
		Config: appcomm.NodeConfig{
			RetryInterval:  cfg.Comm.RetryInterval,
			ConnectTimeout: cfg.Broker.ConnectTimeout,
			InboundQueue:   cfg.Comm.InboundQueue,
		},
		Transports: transports,
		Buffer:     cache.NewMemoryOutboundBuffer(),
		Codecs:     comm.DefaultCodecRegistry(),
		Observer:   observer,
		Logger:     logger.WithComponent("comm.node"),
	}
	if strings.EqualFold(cfg.Broker.AuthMode, sharedConfig.BrokerAuthToken) {
		builder.Issuer = bridge
		builder.DefaultCredentials = &appcomm.Credentials{Username: o.username, Password: o.password}
	}

	return &session{
		cfg:     cfg,
		bridge:  bridge,
		tokens:  tokens,
		manager: appcomm.NewManager(appcomm.ManagerConfig{}, builder, nil, nil, logger.WithComponent("comm.manager")),
		logger:  log,
	}, nil
}

// resolve maps a username to its identity through the bridge.
func (s *session) resolve(ctx context.Context, username string) (string, error) {
	ref, err := s.bridge.LookupAgent(ctx, s.tokens.Access, username)
	if err != nil {
		if auth.IsNotFound(err) {
			return "", fmt.Errorf("no agent named %q", username)
		}
		return "", fmt.Errorf("failed to look up %s: %w", username, err)
	}
	return ref.AgentID, nil
}

func (s *session) close() {
	s.manager.ShutdownAll()
	_ = logger.Sync()
}
