package api

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"github.com/charmbracelet/log"

	apierrors "github.com/diogo/streamchat/internal/errors"
	"github.com/diogo/streamchat/internal/models"
)

// ClientInterface is the surface the commands and the TUI depend on
type ClientInterface interface {
	Init() error
	Close()
	IsClosed() bool
	GetModel() models.Model
	SetModel(model models.Model)
	Session() *Session
	OpenStream(ctx context.Context, path, prompt string) (io.ReadCloser, error)
	SupportedFileTypes(ctx context.Context) ([]string, error)
	Upload(ctx context.Context, path string) (string, error)
	Instruct(ctx context.Context, instruction string) (string, error)
	SessionCommand(ctx context.Context, action models.SessionAction) (string, error)
}

var _ ClientInterface = (*Client)(nil)

// Client talks to a streamchat server
type Client struct {
	httpClient tls_client.HttpClient
	baseURL    string
	signer     TokenSigner
	model      models.Model
	logger     *log.Logger
	now        func() time.Time

	mu      sync.RWMutex
	session *Session
	closed  bool
}

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithModel sets the model requested through the X-Model header
func WithModel(model models.Model) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithHTTPClient replaces the TLS client, mainly for tests
func WithHTTPClient(hc tls_client.HttpClient) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger for request events
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces the time source used for token expiry
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a client for the server at serverURL. Requests carry a
// token signed by signer once Init has been called.
func NewClient(serverURL string, signer TokenSigner, opts ...ClientOption) (*Client, error) {
	base, err := normalizeServerURL(serverURL)
	if err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, apierrors.ErrNoKey
	}

	client := &Client{
		baseURL: base,
		signer:  signer,
		model:   models.ModelUnspecified,
		logger:  log.New(io.Discard),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		// No client-level timeout: replies stream for as long as the model
		// writes. Deadlines come from the request context.
		options := []tls_client.HttpClientOption{
			tls_client.WithTimeoutSeconds(0),
			tls_client.WithClientProfile(profiles.Chrome_120),
			tls_client.WithNotFollowRedirects(),
		}
		hc, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		client.httpClient = hc
	}

	return client, nil
}

func normalizeServerURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: must be http(s)://host[:port]", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// Init starts a session and signs its first token, which also checks the key.
func (c *Client) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return apierrors.ErrClientClosed
	}
	if c.session != nil {
		return nil
	}

	session := newSession(c.signer, c.now)
	if _, err := session.Token(); err != nil {
		return err
	}
	c.session = session
	c.logger.Debug("session started", "session", session.ID(), "server", c.baseURL)
	return nil
}

// Close ends the session. Requests made afterwards fail with ErrClientClosed.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.session = nil
	c.httpClient.CloseIdleConnections()
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Session returns the active session, or nil before Init and after Close
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// GetModel returns the selected model
func (c *Client) GetModel() models.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// SetModel selects the model for later requests
func (c *Client) SetModel(model models.Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

// BaseURL returns the normalized server URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) activeSession() (*Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, apierrors.ErrClientClosed
	}
	if c.session == nil {
		return nil, fmt.Errorf("client not initialized: call Init first")
	}
	return c.session, nil
}
