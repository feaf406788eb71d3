// Package drive is an asynchronous client for a Google Drive style file API.
//
// Every operation returns a response handle immediately; the work happens on
// a goroutine and completes by closing the handle's Finished channel.
package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/btouchard/scout/internal/metrics"
)

var (
	// ErrNotAuthenticated is returned for calls made without an access token.
	// Such calls never reach the network.
	ErrNotAuthenticated = errors.New("drive: not authenticated")
	// ErrNoRefreshToken is returned by Connect when no refresh token was
	// supplied and none is stored.
	ErrNoRefreshToken = errors.New("drive: no refresh token available")
	// ErrNotFound is returned by GetFile for unknown identifiers.
	ErrNotFound = errors.New("drive: file not found")
	// ErrPageLimit is returned by ListFiles when the configured page ceiling
	// is reached before the listing was exhausted.
	ErrPageLimit = errors.New("drive: page limit reached")
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 32 << 20

// APIError is a non-success HTTP response from the remote service.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("drive %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// State is the client's authentication state.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// TokenStore persists refresh tokens between runs.
type TokenStore interface {
	LoadRefreshToken(ctx context.Context, provider string) (string, error)
	SaveRefreshToken(ctx context.Context, provider, token string) error
}

// CredentialKey names the drive row in the TokenStore.
const CredentialKey = "drive"

// Config holds endpoints and credentials for a Client.
type Config struct {
	APIURL       string
	TokenURL     string
	ClientID     string
	ClientSecret string
	// PageSize is sent as maxResults on every list request.
	PageSize int
	// MaxPages bounds a single listing. Zero means unbounded.
	MaxPages int
	// RequestTimeout bounds each HTTP round trip. Zero disables it.
	RequestTimeout time.Duration
}

// Client talks to the remote file API. It is safe for concurrent use.
type Client struct {
	cfg   Config
	http  *http.Client
	store TokenStore

	// connectMu serializes token exchanges.
	connectMu sync.Mutex

	mu           sync.RWMutex
	state        State
	accessToken  string
	refreshToken string
	expiresAt    time.Time

	wg sync.WaitGroup
}

// NewClient creates a Client. httpClient and store may be nil.
func NewClient(cfg Config, httpClient *http.Client, store TokenStore) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	return &Client{
		cfg:   cfg,
		http:  httpClient,
		store: store,
	}
}

// State returns the current authentication state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsAuthenticated reports whether an access token is held.
func (c *Client) IsAuthenticated() bool {
	return c.AccessToken() != ""
}

// AccessToken returns the current access token, or "".
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// ExpiresAt returns when the current access token expires, if known.
func (c *Client) ExpiresAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiresAt
}

// Wait blocks until every in-flight call has finished.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Connect exchanges a refresh token for an access token. An empty
// refreshToken falls back to the last known or stored one.
func (c *Client) Connect(ctx context.Context, refreshToken string) *ConnectResponse {
	resp := &ConnectResponse{response: newResponse()}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		token, err := c.connect(ctx, refreshToken)
		resp.refreshToken = token
		resp.finish(err)
	}()
	return resp
}

func (c *Client) connect(ctx context.Context, supplied string) (string, error) {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	refresh := supplied
	if refresh == "" {
		refresh = c.knownRefreshToken(ctx)
	}
	if refresh == "" {
		return "", ErrNoRefreshToken
	}

	c.mu.Lock()
	prev := c.state
	c.state = StateAuthenticating
	c.mu.Unlock()

	tok, err := c.exchange(ctx, refresh)
	if err != nil {
		c.mu.Lock()
		// A failed exchange leaves any previous token untouched.
		if prev == StateAuthenticated && c.accessToken != "" {
			c.state = StateAuthenticated
		} else {
			c.state = StateUnauthenticated
		}
		c.mu.Unlock()
		slog.Warn("drive connect failed", "error", err)
		return "", err
	}

	c.apply(tok)
	c.persist(ctx, tok.RefreshToken)
	slog.Info("drive connected", "expires_at", tok.ExpiresAt)
	return tok.RefreshToken, nil
}

// reauthenticate refreshes the access token after stale was rejected.
// If another call already replaced stale, it returns at once.
func (c *Client) reauthenticate(ctx context.Context, stale string) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.RLock()
	current, refresh := c.accessToken, c.refreshToken
	c.mu.RUnlock()
	if current != stale && current != "" {
		return nil
	}
	if refresh == "" {
		return ErrNoRefreshToken
	}

	tok, err := c.exchange(ctx, refresh)
	if err != nil {
		return err
	}
	c.apply(tok)
	c.persist(ctx, tok.RefreshToken)
	slog.Debug("drive access token refreshed")
	return nil
}

func (c *Client) apply(tok *token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = tok.AccessToken
	c.refreshToken = tok.RefreshToken
	c.expiresAt = tok.ExpiresAt
	c.state = StateAuthenticated
}

func (c *Client) knownRefreshToken(ctx context.Context) string {
	c.mu.RLock()
	refresh := c.refreshToken
	c.mu.RUnlock()
	if refresh != "" || c.store == nil {
		return refresh
	}
	stored, err := c.store.LoadRefreshToken(ctx, CredentialKey)
	if err != nil {
		slog.Warn("loading stored refresh token", "error", err)
		return ""
	}
	return stored
}

func (c *Client) persist(ctx context.Context, refresh string) {
	if c.store == nil || refresh == "" {
		return
	}
	if err := c.store.SaveRefreshToken(ctx, CredentialKey, refresh); err != nil {
		slog.Warn("persisting refresh token", "error", err)
	}
}

// getJSON performs an authenticated GET and decodes a 200 body into out.
// A 401 triggers one token refresh and one retry.
func (c *Client) getJSON(ctx context.Context, op, endpoint string, out any) error {
	for attempt := 0; ; attempt++ {
		access := c.AccessToken()
		if access == "" {
			return ErrNotAuthenticated
		}

		status, body, err := c.do(ctx, op, endpoint, access)
		if err != nil {
			return err
		}

		switch {
		case status == http.StatusOK:
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decoding %s response: %w", op, err)
			}
			return nil
		case status == http.StatusUnauthorized && attempt == 0:
			if err := c.reauthenticate(ctx, access); err != nil {
				slog.Warn("drive token refresh after 401 failed", "op", op, "error", err)
				return &APIError{Op: op, StatusCode: status, Body: string(body)}
			}
			continue
		case status == http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, string(body))
		default:
			return &APIError{Op: op, StatusCode: status, Body: string(body)}
		}
	}
}

func (c *Client) do(ctx context.Context, op, endpoint, access string) (int, []byte, error) {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.DriveRequest(op, 0)
		return 0, nil, fmt.Errorf("drive %s request: %w", op, err)
	}
	defer resp.Body.Close()
	metrics.DriveRequest(op, resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, fmt.Errorf("reading %s response: %w", op, err)
	}
	return resp.StatusCode, body, nil
}
