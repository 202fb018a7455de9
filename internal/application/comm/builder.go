package comm

import (
	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

// NodeBuilder assembles an unconnected node for an identity.
type NodeBuilder interface {
	Build(identity string, creds *Credentials) (*Node, error)
}

// Builder is the standard NodeBuilder. When Issuer is set every node gets an
// Authenticator, using the per-call credentials or DefaultCredentials.
type Builder struct {
	Config             NodeConfig
	Transports         comm.TransportFactory
	Buffer             comm.OutboundBuffer
	Codecs             *comm.CodecRegistry
	Observer           comm.Observer
	Metrics            comm.Metrics
	Logger             logger.Interface
	Issuer             comm.CredentialIssuer
	DefaultCredentials *Credentials
	AuthOptions        []AuthenticatorOption
}

func (b *Builder) Build(identity string, creds *Credentials) (*Node, error) {
	log := b.Logger
	if log == nil {
		log = logger.NewLogger()
	}

	var auth *Authenticator
	var credentials comm.CredentialsFunc
	if b.Issuer != nil {
		if creds == nil {
			creds = b.DefaultCredentials
		}
		if creds == nil {
			creds = &Credentials{Username: identity}
		}
		auth = NewAuthenticator(b.Issuer, *creds, log, b.AuthOptions...)
		credentials = auth.Credentials
	}

	cfg := b.Config
	cfg.Identity = identity

	return NewNode(cfg, NodeDeps{
		Transport:     b.Transports(identity, credentials),
		Buffer:        b.Buffer,
		Codecs:        b.Codecs,
		Observer:      b.Observer,
		Metrics:       b.Metrics,
		Logger:        log,
		Authenticator: auth,
	})
}
