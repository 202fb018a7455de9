package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/biztime"
)

const defaultBridgeTimeout = 10 * time.Second

// AgentRef is the public lookup result for an agent.
type AgentRef struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

// BridgeClient talks to a remote server's HTTP bridge. It implements
// comm.CredentialIssuer for nodes that run outside the server process.
type BridgeClient struct {
	baseURL string
	client  *http.Client
}

func NewBridgeClient(baseURL string, client *http.Client) *BridgeClient {
	if client == nil {
		client = &http.Client{Timeout: defaultBridgeTimeout}
	}
	return &BridgeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type tokenResponse struct {
	Access    string `json:"access"`
	Refresh   string `json:"refresh"`
	ExpiresIn int64  `json:"expires_in"`
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *BridgeClient) Login(ctx context.Context, username, password string) (*comm.TokenPair, error) {
	body := map[string]string{"username": username, "password": password}
	return c.token(ctx, "/api/auth/token", body)
}

func (c *BridgeClient) Refresh(ctx context.Context, refreshToken string) (*comm.TokenPair, error) {
	body := map[string]string{"refresh": refreshToken}
	return c.token(ctx, "/api/auth/token/refresh", body)
}

func (c *BridgeClient) token(ctx context.Context, path string, body any) (*comm.TokenPair, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		return nil, err
	}
	if resp.Access == "" {
		return nil, fmt.Errorf("%w: bridge returned no access token", comm.ErrCredentials)
	}
	return &comm.TokenPair{
		Access:    resp.Access,
		Refresh:   resp.Refresh,
		ExpiresAt: biztime.NowUTC().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}

// LookupAgent resolves a username to its agent identity.
func (c *BridgeClient) LookupAgent(ctx context.Context, accessToken, username string) (*AgentRef, error) {
	var ref AgentRef
	path := "/api/agents/by-username/" + url.PathEscape(username)
	if err := c.do(ctx, http.MethodGet, path, accessToken, nil, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// ServerVersion returns the version the server reports on /health. A degraded
// server answers 503 and yields an error.
func (c *BridgeClient) ServerVersion(ctx context.Context) (string, error) {
	var health struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", "", nil, &health); err != nil {
		return "", err
	}
	return health.Version, nil
}

func (c *BridgeClient) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("bridge request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("bridge %s %s: status %d: undecodable response: %w", method, path, resp.StatusCode, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %s", comm.ErrCredentials, errorMessage(env, resp.Status))
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", errNotFound, errorMessage(env, resp.Status))
	}
	if resp.StatusCode >= 300 || !env.Success {
		return fmt.Errorf("bridge %s %s: %s", method, path, errorMessage(env, resp.Status))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode bridge response: %w", err)
	}
	return nil
}

var errNotFound = errors.New("not found")

// IsNotFound reports whether err is a 404 from the bridge.
func IsNotFound(err error) bool {
	return errors.Is(err, errNotFound)
}

func errorMessage(env apiEnvelope, status string) string {
	if env.Error != nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return status
}
