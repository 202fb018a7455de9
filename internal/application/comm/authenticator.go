package comm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/biztime"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

const (
	DefaultRefreshSkew   = 30 * time.Second
	DefaultLoginAttempts = 3
)

// Credentials is a username/password pair used to obtain broker tokens.
type Credentials struct {
	Username string
	Password string
}

// AuthenticatorOption tunes an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithRefreshSkew sets how long before expiry a cached token is considered stale.
func WithRefreshSkew(d time.Duration) AuthenticatorOption {
	return func(a *Authenticator) { a.refreshSkew = d }
}

// WithLoginBackoff sets the retry schedule for full logins.
func WithLoginBackoff(initial time.Duration, attempts uint) AuthenticatorOption {
	return func(a *Authenticator) {
		a.initialBackoff = initial
		a.maxAttempts = attempts
	}
}

// Authenticator caches a TokenPair for one set of credentials. A cached access
// token is reused until it is near expiry; then the refresh token is tried, and
// if that is rejected a full login runs with exponential backoff.
type Authenticator struct {
	issuer comm.CredentialIssuer
	creds  Credentials
	logger logger.Interface

	refreshSkew    time.Duration
	initialBackoff time.Duration
	maxAttempts    uint

	mu     sync.Mutex
	tokens *comm.TokenPair
}

// NewAuthenticator creates an Authenticator for creds.
func NewAuthenticator(issuer comm.CredentialIssuer, creds Credentials, log logger.Interface, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		issuer:         issuer,
		creds:          creds,
		logger:         log.With("username", creds.Username),
		refreshSkew:    DefaultRefreshSkew,
		initialBackoff: 500 * time.Millisecond,
		maxAttempts:    DefaultLoginAttempts,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Credentials returns the username and a valid access token, in the shape the
// transports expect for reconnect-time credential lookup.
func (a *Authenticator) Credentials(ctx context.Context) (string, string, error) {
	token, err := a.AccessToken(ctx)
	if err != nil {
		return "", "", err
	}
	return a.creds.Username, token, nil
}

// AccessToken returns a valid access token.
func (a *Authenticator) AccessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tokens != nil && a.tokens.Access != "" &&
		biztime.NowUTC().Add(a.refreshSkew).Before(a.tokens.ExpiresAt) {
		return a.tokens.Access, nil
	}

	if a.tokens != nil && a.tokens.Refresh != "" {
		pair, err := a.issuer.Refresh(ctx, a.tokens.Refresh)
		if err == nil {
			a.keep(pair)
			a.logger.Debugw("access token refreshed", "expires_at", pair.ExpiresAt)
			return pair.Access, nil
		}
		a.logger.Warnw("token refresh failed, logging in again", "error", err)
	}

	pair, err := a.login(ctx)
	if err != nil {
		a.tokens = nil
		return "", fmt.Errorf("authenticate %s: %w", a.creds.Username, err)
	}
	a.tokens = pair
	a.logger.Infow("authenticated", "expires_at", pair.ExpiresAt)
	return pair.Access, nil
}

// keep stores pair, carrying over the previous refresh token when the issuer
// does not rotate it.
func (a *Authenticator) keep(pair *comm.TokenPair) {
	if pair.Refresh == "" && a.tokens != nil {
		pair.Refresh = a.tokens.Refresh
	}
	a.tokens = pair
}

// ExpireAccess forgets the access token but keeps the refresh token, so the
// next lookup refreshes instead of reusing a credential the broker may reject.
func (a *Authenticator) ExpireAccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tokens != nil {
		a.tokens.Access = ""
	}
}

func (a *Authenticator) login(ctx context.Context) (*comm.TokenPair, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.initialBackoff
	b.MaxInterval = 10 * a.initialBackoff

	attempt := 0
	operation := func() (*comm.TokenPair, error) {
		attempt++
		pair, err := a.issuer.Login(ctx, a.creds.Username, a.creds.Password)
		if err != nil {
			if errors.Is(err, comm.ErrCredentials) {
				return nil, backoff.Permanent(err)
			}
			a.logger.Warnw("login attempt failed", "attempt", attempt, "error", err)
			return nil, err
		}
		if pair == nil || pair.Access == "" {
			return nil, backoff.Permanent(fmt.Errorf("%w: issuer returned no access token", comm.ErrCredentials))
		}
		return pair, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(a.maxAttempts),
	)
}
