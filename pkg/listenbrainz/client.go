package listenbrainz

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config holds client configuration.
type Config struct {
	Token      string       // Required for submissions: ListenBrainz user token
	BaseURL    string       // Optional: API root (defaults to DefaultBaseURL)
	HTTPClient *http.Client // Optional: HTTP client (defaults to one with DefaultTimeout)
	UserAgent  string       // Optional: User-Agent header
	Logger     Logger       // Optional: Logger interface for debug logging
}

// Logger is an optional interface for logging.
type Logger interface {
	// Debugf logs a debug message with format and arguments.
	Debugf(format string, args ...interface{})
}

// Client is the main entry point for ListenBrainz API operations.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	userAgent  string
	logger     Logger

	auth    *AuthService
	listens *ListenService
}

const (
	// DefaultBaseURL is the public ListenBrainz API root.
	DefaultBaseURL = "https://api.listenbrainz.org"

	// DefaultTimeout bounds a single API request.
	DefaultTimeout = 10 * time.Second

	defaultUserAgent = "lbscrobble/1.0"
)

// NewClient creates a new ListenBrainz API client.
//
// The token may be empty; operations that need it return ErrNoToken.
// Returns an error if BaseURL is set but not an http(s) URL.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("%w: base URL %q must start with http:// or https://", ErrInvalidConfig, cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	c := &Client{
		token:      cfg.Token,
		baseURL:    baseURL,
		httpClient: httpClient,
		userAgent:  userAgent,
		logger:     cfg.Logger,
	}

	c.auth = &AuthService{client: c}
	c.listens = &ListenService{client: c}

	return c, nil
}

// Auth returns the token validation service.
func (c *Client) Auth() *AuthService {
	return c.auth
}

// Listens returns the listen submission service.
func (c *Client) Listens() *ListenService {
	return c.listens
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HasToken reports whether a user token is configured.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// logDebugf logs a debug message if a logger is configured.
func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
