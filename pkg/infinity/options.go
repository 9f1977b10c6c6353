package infinity

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// ClientOption configures a Client.
type ClientOption func(*clientConfig) error

// clientConfig holds the configuration for a Client.
type clientConfig struct {
	baseURL     string
	httpClient  *http.Client
	logger      *zap.SugaredLogger
	sessionTTL  time.Duration
	settleDelay time.Duration
	retryWait   time.Duration
	retryCount  uint64
}

// defaultConfig returns the default client configuration.
func defaultConfig() *clientConfig {
	return &clientConfig{
		baseURL:     DefaultBaseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      nil,
		sessionTTL:  time.Hour,
		settleDelay: 3 * time.Second,
		retryWait:   500 * time.Millisecond,
		retryCount:  2,
	}
}

// WithBaseURL overrides the portal base URL.
// Default is DefaultBaseURL.
func WithBaseURL(rawURL string) ClientOption {
	return func(c *clientConfig) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return err
		}
		if u.Scheme == "" || u.Host == "" {
			return errors.New("base URL must include scheme and host")
		}
		c.baseURL = rawURL
		return nil
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *clientConfig) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithLogger sets a structured logger for debug and error logging.
// By default, no logging is performed.
func WithLogger(logger *zap.SugaredLogger) ClientOption {
	return func(c *clientConfig) error {
		c.logger = logger
		return nil
	}
}

// WithSessionTTL sets how long a login token is trusted before the client
// re-authenticates. The portal does not declare an expiry, so this is a
// conservative local policy. Default is 1 hour.
func WithSessionTTL(d time.Duration) ClientOption {
	return func(c *clientConfig) error {
		if d <= 0 {
			return errors.New("session TTL must be positive")
		}
		c.sessionTTL = d
		return nil
	}
}

// WithSettleDelay sets the wait between clearing and reasserting a hold.
// The thermostat needs this long to propagate the hold-off transition.
// Default is 3 seconds.
func WithSettleDelay(d time.Duration) ClientOption {
	return func(c *clientConfig) error {
		if d <= 0 {
			return errors.New("settle delay must be positive")
		}
		c.settleDelay = d
		return nil
	}
}

// WithRetryPolicy sets the constant wait and the number of retries applied
// to transient network failures. Default is 500ms and 2 retries.
func WithRetryPolicy(wait time.Duration, retries uint64) ClientOption {
	return func(c *clientConfig) error {
		if wait <= 0 {
			return errors.New("retry wait must be positive")
		}
		c.retryWait = wait
		c.retryCount = retries
		return nil
	}
}
