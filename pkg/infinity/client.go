package infinity

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the Carrier Infinity consumer portal endpoint.
const DefaultBaseURL = "https://www.app-api.ing.carrier.com"

// Consumer credentials the vendor's own portal applications use.
const (
	consumerKey    = "8j30j19aj103911h"
	consumerSecret = "0f5ur7d89sjv8d45"
)

// Client talks to the Carrier/Bryant Infinity cloud API for one account.
// A Client is not safe for concurrent use; run one Client per account and
// do not share it across goroutines.
type Client struct {
	username string
	password string

	baseURL     string
	httpClient  *http.Client
	signer      *Signer
	logger      *zap.SugaredLogger
	sessionTTL  time.Duration
	settleDelay time.Duration
	retryWait   time.Duration
	retryCount  uint64

	sess     session
	systems  []string
	profiles map[string][]ZoneProfile
}

// NewClient creates a client for the given account credentials.
// No network traffic happens until the first call; login is performed
// lazily and repeated when the session expires.
func NewClient(username, password string, opts ...ClientOption) (*Client, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("invalid option: %w", ErrMissingCredentials)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	return &Client{
		username:    username,
		password:    password,
		baseURL:     cfg.baseURL,
		httpClient:  cfg.httpClient,
		signer:      NewSigner(consumerKey, consumerSecret),
		logger:      cfg.logger,
		sessionTTL:  cfg.sessionTTL,
		settleDelay: cfg.settleDelay,
		retryWait:   cfg.retryWait,
		retryCount:  cfg.retryCount,
		profiles:    make(map[string][]ZoneProfile),
	}, nil
}
