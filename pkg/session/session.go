package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"gateio/internal/circuitbreaker"
	httpclient "gateio/internal/http"
	"gateio/internal/metrics"
	"gateio/internal/ratelimit"
	"gateio/pkg/core"
)

// State represents the lifecycle state of a Session.
type State int

const (
	// StateNew indicates a newly created session that has not yet been activated.
	StateNew State = iota
	// StateActive indicates a session that is ready to process requests.
	StateActive
	// StateClosed indicates a session that has been shut down and can no longer be used.
	StateClosed
)

// String returns the string representation of the State.
func (s State) String() string {
	return [...]string{"NEW", "ACTIVE", "CLOSED"}[s]
}

// Session executes REST operations for one protocol. It owns the HTTP
// client, rate limiter, circuit breaker and response cache.
// Sessions are safe for concurrent use.
type Session struct {
	mu             sync.RWMutex
	config         *core.Config
	protocol       core.Protocol
	http           *httpclient.Client
	credentials    *core.Credentials
	rateLimiter    *ratelimit.RateLimiter
	circuitBreaker *circuitbreaker.Breaker
	cache          *Cache
	logger         zerolog.Logger
	state          State
	createdAt      time.Time
	lastUsed       time.Time
}

// Cache provides a simple in-memory cache with TTL support.
// It is safe for concurrent use.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*cacheItem
	ttl   time.Duration
}

type cacheItem struct {
	value     any
	expiresAt time.Time
}

// NewCache creates a Cache whose entries default to ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		items: make(map[string]*cacheItem),
		ttl:   ttl,
	}
}

// Get returns the value under key, or nil if missing or expired.
func (c *Cache) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || time.Now().After(item.expiresAt) {
		return nil
	}
	return item.value
}

// Set stores value under key. A zero ttl uses the cache default.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl == 0 {
		ttl = c.ttl
	}
	c.items[key] = &cacheItem{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes all items from the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*cacheItem)
}

// New creates a Session from a validated config.
func New(config *core.Config) (*Session, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	client, err := httpclient.NewClient(&httpclient.Config{
		BaseURL: config.BaseURL,
		Timeout: config.Timeout,
		Headers: map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}

	rateLimiter := ratelimit.New(config.RateLimitRequests, config.RateLimitPeriod)
	if config.OrderRateLimitRequests > 0 {
		if err := rateLimiter.SetBucketLimit(BucketOrders, config.OrderRateLimitRequests, time.Second); err != nil {
			return nil, err
		}
	}

	var circuitBreaker *circuitbreaker.Breaker
	if config.CircuitBreakerEnabled {
		circuitBreaker = circuitbreaker.New(circuitbreaker.Config{
			FailThreshold:    config.CircuitBreakerFailThreshold,
			SuccessThreshold: config.CircuitBreakerSuccessThreshold,
			Timeout:          config.CircuitBreakerTimeout,
		})
	}

	var cache *Cache
	if config.CacheEnabled {
		cache = NewCache(config.CacheTTL)
	}

	s := &Session{
		config:         config,
		http:           client,
		credentials:    config.Credentials,
		rateLimiter:    rateLimiter,
		circuitBreaker: circuitBreaker,
		cache:          cache,
		logger:         zerolog.Nop(),
		state:          StateNew,
		createdAt:      time.Now(),
		lastUsed:       time.Now(),
	}

	if circuitBreaker != nil {
		circuitBreaker.OnStateChange(func(from, to circuitbreaker.State) {
			s.Logger().Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		})
	}

	return s, nil
}

// BucketOrders is the rate limit bucket of order placement and cancellation.
const BucketOrders = "orders"

// SetLogger sets the logger for the session and its HTTP client.
func (s *Session) SetLogger(logger zerolog.Logger) {
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
	s.http.SetLogger(logger)
}

func (s *Session) Logger() *zerolog.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logger := s.logger
	return &logger
}

// SetProtocol assigns the exchange protocol to the session.
// The session state transitions to Active if currently in New state.
func (s *Session) SetProtocol(protocol core.Protocol) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if protocol == nil {
		return fmt.Errorf("protocol is required")
	}
	if s.state == StateClosed {
		return core.ErrClientClosed
	}

	s.protocol = protocol

	if s.state == StateNew {
		s.state = StateActive
	}

	s.lastUsed = time.Now()

	return nil
}

// Do executes an operation. The steps run in order: build, credential check,
// cache lookup, circuit breaker, rate limit, sign, send, parse. Calls that
// need credentials fail before any network traffic when none are set.
// Nothing is retried.
func (s *Session) Do(ctx context.Context, op core.Operation, params core.Params) (any, error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil, core.ErrClientClosed
	}
	if s.protocol == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("protocol not set")
	}
	protocol := s.protocol
	creds := s.credentials
	s.lastUsed = time.Now()
	s.mu.Unlock()

	logger := s.Logger()

	req, err := protocol.BuildRequest(ctx, op, params)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if req.RequireAuth && creds == nil {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNoCredentials)
	}

	if req.CacheKey != "" && s.cache != nil {
		if cached := s.cache.Get(req.CacheKey); cached != nil {
			logger.Debug().Str("cache_key", req.CacheKey).Msg("cache hit")
			return cached, nil
		}
	}

	if s.circuitBreaker != nil && !s.circuitBreaker.Allow() {
		return nil, core.NewExchangeError(
			protocol.Name(),
			core.ErrorTypeServerError,
			503,
			"circuit breaker is open",
		).WithCode(core.ErrCodeCircuitBreaker).WithCause(core.ErrCircuitBreakerOpen)
	}

	if err := s.rateLimiter.Wait(ctx, req.Bucket); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	restyReq, err := s.buildRestyRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.RequireAuth {
		if err := protocol.SignRequest(restyReq, *creds); err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
	}

	started := time.Now()
	resp, err := s.http.Execute(restyReq)

	if s.circuitBreaker != nil {
		s.circuitBreaker.Record(err == nil && resp.StatusCode() < 500)
	}

	if err != nil {
		metrics.ObserveRest(op.String(), "network_error", started)
		return nil, s.transportError(protocol.Name(), err)
	}

	result, err := protocol.ParseResponse(op, resp)
	if err != nil {
		metrics.ObserveRest(op.String(), outcome(resp), started)
		var exErr *core.ExchangeError
		if errors.As(err, &exErr) {
			logger.Debug().Err(err).Str("operation", op.String()).Msg("api error")
			return nil, err
		}
		return nil, fmt.Errorf("parse response: %w", err)
	}
	metrics.ObserveRest(op.String(), "ok", started)

	if req.CacheKey != "" && s.cache != nil && result != nil {
		cacheTTL := req.CacheTTL
		if cacheTTL == 0 {
			cacheTTL = s.config.CacheTTL
		}
		s.cache.Set(req.CacheKey, result, cacheTTL)
	}

	return result, nil
}

func (s *Session) buildRestyRequest(ctx context.Context, req *core.Request) (*resty.Request, error) {
	var body []byte
	if req.Body != nil {
		var err error
		if body, err = sonic.Marshal(req.Body); err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
	}

	restyReq, err := s.http.NewRequest(ctx,
		httpclient.WithTarget(req.Method, req.Path),
		httpclient.WithHeaders(req.Headers),
		httpclient.WithQuery(req.QueryValues()),
		httpclient.WithJSONBody(body),
	)
	if err != nil {
		return nil, core.ErrClientClosed
	}
	return restyReq, nil
}

func (s *Session) transportError(exchange string, err error) error {
	errorType := core.ErrorTypeNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		errorType = core.ErrorTypeTimeout
	}
	return core.NewExchangeError(exchange, errorType, 0, err.Error()).WithCause(err)
}

func outcome(resp *resty.Response) string {
	switch code := resp.StatusCode(); {
	case code >= 500:
		return "server_error"
	case code >= 400:
		return "client_error"
	default:
		return "decode_error"
	}
}

// Close shuts down the session, clears the cache and closes the HTTP client.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	if s.cache != nil {
		s.cache.Clear()
	}
	s.state = StateClosed
	return s.http.Close()
}

// State returns the current lifecycle state of the session.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Protocol returns the exchange protocol assigned to the session.
func (s *Session) Protocol() core.Protocol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocol
}

// Config returns the configuration used to create the session.
func (s *Session) Config() *core.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// CreatedAt returns the timestamp when the session was created.
func (s *Session) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

// LastUsed returns the timestamp of the last request executed by the session.
func (s *Session) LastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsed
}

// SetCredentials updates the API credentials used for authenticated requests.
// Nil removes them.
func (s *Session) SetCredentials(creds *core.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials = creds
}

// Credentials returns the credentials in use, or nil.
func (s *Session) Credentials() *core.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credentials
}

// ClearCache removes all cached items. It does nothing when caching is off.
func (s *Session) ClearCache() {
	if s.cache != nil {
		s.cache.Clear()
	}
}
