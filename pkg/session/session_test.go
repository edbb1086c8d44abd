package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"resty.dev/v3"

	"gateio/pkg/core"
)

type MockProtocol struct {
	name              string
	buildRequestFunc  func(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error)
	parseResponseFunc func(op core.Operation, resp *resty.Response) (any, error)
	signRequestFunc   func(req *resty.Request, creds core.Credentials) error
	signed            atomic.Int32
}

func (m *MockProtocol) Name() string {
	return m.name
}

func (m *MockProtocol) Version() string {
	return "1"
}

func (m *MockProtocol) BuildRequest(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
	if m.buildRequestFunc != nil {
		return m.buildRequestFunc(ctx, op, params)
	}
	return core.NewRequest(http.MethodGet, "/test"), nil
}

func (m *MockProtocol) ParseResponse(op core.Operation, resp *resty.Response) (any, error) {
	if m.parseResponseFunc != nil {
		return m.parseResponseFunc(op, resp)
	}
	if resp.StatusCode() >= 400 {
		return nil, core.NewExchangeError(m.name, core.ErrorTypeForStatus(resp.StatusCode()), resp.StatusCode(), resp.String())
	}
	return resp.String(), nil
}

func (m *MockProtocol) SignRequest(req *resty.Request, creds core.Credentials) error {
	m.signed.Add(1)
	if m.signRequestFunc != nil {
		return m.signRequestFunc(req, creds)
	}
	req.SetHeader("KEY", creds.APIKey)
	return nil
}

func (m *MockProtocol) SupportedOperations() []core.Operation {
	return nil
}

func (m *MockProtocol) RateLimits() core.RateLimitConfig {
	return core.RateLimitConfig{}
}

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	hits := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server, hits
}

func newActiveSession(t *testing.T, baseURL string, protocol core.Protocol, configure func(*core.Config)) *Session {
	t.Helper()
	config := core.DefaultConfig().WithBaseURL(baseURL)
	if configure != nil {
		configure(config)
	}
	s, err := New(config)
	require.NoError(t, err)
	require.NoError(t, s.SetProtocol(protocol))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSession(t *testing.T) {
	tests := []struct {
		name    string
		config  *core.Config
		wantErr bool
	}{
		{
			name:   "valid config",
			config: core.DefaultConfig(),
		},
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name: "invalid config - empty exchange",
			config: &core.Config{
				Timeout:           10 * time.Second,
				RateLimitRequests: 900,
				RateLimitPeriod:   time.Second,
			},
			wantErr: true,
		},
		{
			name:    "credentials without secret",
			config:  core.DefaultConfig().WithCredentials(&core.Credentials{APIKey: "key"}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := New(tt.config)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, session)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, StateNew, session.State())
			assert.False(t, session.CreatedAt().IsZero())
			assert.False(t, session.LastUsed().IsZero())
		})
	}
}

func TestSession_SetProtocol(t *testing.T) {
	session, err := New(core.DefaultConfig())
	require.NoError(t, err)

	assert.Error(t, session.SetProtocol(nil))
	assert.Equal(t, StateNew, session.State())

	protocol := &MockProtocol{name: "mock"}
	require.NoError(t, session.SetProtocol(protocol))
	assert.Equal(t, StateActive, session.State())
	assert.Equal(t, protocol, session.Protocol())

	require.NoError(t, session.Close())
	assert.Equal(t, StateClosed, session.State())
	assert.ErrorIs(t, session.SetProtocol(protocol), core.ErrClientClosed)
}

func TestSession_Do_NoProtocol(t *testing.T) {
	session, err := New(core.DefaultConfig())
	require.NoError(t, err)

	_, err = session.Do(context.Background(), core.OpListTickers, nil)
	assert.ErrorContains(t, err, "protocol not set")
}

func TestSession_Do_BuildRequestError(t *testing.T) {
	_, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	protocol := &MockProtocol{
		name: "mock",
		buildRequestFunc: func(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
			return nil, errors.New("build error")
		},
	}
	session := newActiveSession(t, "http://127.0.0.1:1", protocol, nil)

	_, err := session.Do(context.Background(), core.OpListTickers, nil)
	assert.ErrorContains(t, err, "build request")
	assert.Equal(t, int32(0), hits.Load())
}

func TestSession_Do_SendsRequest(t *testing.T) {
	server, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v4/things", r.URL.Path)
		assert.Equal(t, "a=1&b=x", r.URL.RawQuery)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "key", r.Header.Get("KEY"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"currency":"USDT","amount":"1.5"}`, string(body))
		_, _ = w.Write([]byte(`ok`))
	})

	protocol := &MockProtocol{
		name: "mock",
		buildRequestFunc: func(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
			return core.NewRequest(http.MethodPost, "/api/v4/things").
				SetQuery("b", "x").
				SetQuery("a", 1).
				SetBody(map[string]string{"currency": "USDT", "amount": "1.5"}).
				SetRequireAuth(true), nil
		},
		signRequestFunc: func(req *resty.Request, creds core.Credentials) error {
			body, ok := req.Body.([]byte)
			require.True(t, ok, "body is marshalled before signing")
			assert.JSONEq(t, `{"currency":"USDT","amount":"1.5"}`, string(body))
			req.SetHeader("KEY", creds.APIKey)
			return nil
		},
	}
	session := newActiveSession(t, server.URL, protocol, func(c *core.Config) {
		c.WithCredentials(&core.Credentials{APIKey: "key", SecretKey: "secret"})
	})

	result, err := session.Do(context.Background(), core.OpCrossMarginRepay, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, int32(1), protocol.signed.Load())
}

func TestSession_Do_UnsignedWhenNotRequired(t *testing.T) {
	server, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("KEY"))
		_, _ = w.Write([]byte(`ok`))
	})
	protocol := &MockProtocol{name: "mock"}
	session := newActiveSession(t, server.URL, protocol, func(c *core.Config) {
		c.WithCredentials(&core.Credentials{APIKey: "key", SecretKey: "secret"})
	})

	_, err := session.Do(context.Background(), core.OpListTickers, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(0), protocol.signed.Load())
}

func TestSession_Do_NoCredentials(t *testing.T) {
	server, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	protocol := &MockProtocol{
		name: "mock",
		buildRequestFunc: func(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
			return core.NewRequest(http.MethodGet, "/private").SetRequireAuth(true), nil
		},
	}
	session := newActiveSession(t, server.URL, protocol, nil)

	_, err := session.Do(context.Background(), core.OpListSpotAccounts, nil)
	assert.ErrorIs(t, err, core.ErrNoCredentials)
	assert.Equal(t, int32(0), hits.Load())
	assert.Equal(t, int32(0), protocol.signed.Load())

	session.SetCredentials(&core.Credentials{APIKey: "key", SecretKey: "secret"})
	_, err = session.Do(context.Background(), core.OpListSpotAccounts, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSession_Do_SignError(t *testing.T) {
	server, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	protocol := &MockProtocol{
		name: "mock",
		buildRequestFunc: func(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
			return core.NewRequest(http.MethodGet, "/private").SetRequireAuth(true), nil
		},
		signRequestFunc: func(req *resty.Request, creds core.Credentials) error {
			return &core.SigningError{Err: core.ErrEmptySecret}
		},
	}
	session := newActiveSession(t, server.URL, protocol, func(c *core.Config) {
		c.WithCredentials(&core.Credentials{APIKey: "key", SecretKey: "secret"})
	})

	_, err := session.Do(context.Background(), core.OpListSpotAccounts, nil)
	assert.ErrorIs(t, err, core.ErrEmptySecret)
	assert.Equal(t, int32(0), hits.Load())
}

func TestSession_Do_Cache(t *testing.T) {
	server, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`fresh`))
	})
	protocol := &MockProtocol{
		name: "mock",
		buildRequestFunc: func(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
			return core.NewRequest(http.MethodGet, "/cached").SetCache("cached", time.Minute), nil
		},
	}
	session := newActiveSession(t, server.URL, protocol, func(c *core.Config) {
		c.WithCache(true, time.Second)
	})
	ctx := context.Background()

	for range 3 {
		result, err := session.Do(ctx, core.OpListCurrencyPairs, nil)
		require.NoError(t, err)
		assert.Equal(t, "fresh", result)
	}
	assert.Equal(t, int32(1), hits.Load())

	session.ClearCache()
	_, err := session.Do(ctx, core.OpListCurrencyPairs, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestSession_Do_CacheDisabled(t *testing.T) {
	server, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`fresh`))
	})
	protocol := &MockProtocol{
		name: "mock",
		buildRequestFunc: func(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
			return core.NewRequest(http.MethodGet, "/cached").SetCache("cached", time.Minute), nil
		},
	}
	session := newActiveSession(t, server.URL, protocol, nil)

	for range 2 {
		_, err := session.Do(context.Background(), core.OpListCurrencyPairs, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestSession_Do_CircuitBreaker(t *testing.T) {
	server, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	session := newActiveSession(t, server.URL, &MockProtocol{name: "mock"}, func(c *core.Config) {
		c.CircuitBreakerFailThreshold = 3
		c.CircuitBreakerTimeout = time.Minute
	})
	ctx := context.Background()

	for range 3 {
		_, err := session.Do(ctx, core.OpListTickers, nil)
		require.Error(t, err)
		assert.False(t, errors.Is(err, core.ErrCircuitBreakerOpen))
	}

	_, err := session.Do(ctx, core.OpListTickers, nil)
	assert.ErrorIs(t, err, core.ErrCircuitBreakerOpen)
	assert.True(t, core.IsErrorCode(err, core.ErrCodeCircuitBreaker))
	assert.Equal(t, int32(3), hits.Load())
}

func TestSession_Do_ClientErrorsDoNotTripBreaker(t *testing.T) {
	server, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	session := newActiveSession(t, server.URL, &MockProtocol{name: "mock"}, func(c *core.Config) {
		c.CircuitBreakerFailThreshold = 2
	})

	for range 4 {
		_, err := session.Do(context.Background(), core.OpListTickers, nil)
		var exErr *core.ExchangeError
		require.ErrorAs(t, err, &exErr)
		assert.Equal(t, core.ErrorTypeBadRequest, exErr.Type)
	}
	assert.Equal(t, int32(4), hits.Load())
}

func TestSession_Do_NetworkError(t *testing.T) {
	session := newActiveSession(t, "http://127.0.0.1:1", &MockProtocol{name: "mock"}, nil)

	_, err := session.Do(context.Background(), core.OpListTickers, nil)
	require.Error(t, err)
	assert.True(t, core.IsNetworkError(err))
}

func TestSession_Do_Timeout(t *testing.T) {
	server, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	session := newActiveSession(t, server.URL, &MockProtocol{name: "mock"}, func(c *core.Config) {
		c.WithTimeout(50 * time.Millisecond)
	})

	_, err := session.Do(context.Background(), core.OpListTickers, nil)
	require.Error(t, err)
	assert.True(t, core.IsTimeoutError(err))
}

func TestSession_Do_RateLimitContext(t *testing.T) {
	server, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	protocol := &MockProtocol{
		name: "mock",
		buildRequestFunc: func(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
			return core.NewRequest(http.MethodPost, "/orders").SetBucket(BucketOrders), nil
		},
	}
	session := newActiveSession(t, server.URL, protocol, func(c *core.Config) {
		c.OrderRateLimitRequests = 1
	})

	_, err := session.Do(context.Background(), core.OpCreateOrder, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = session.Do(ctx, core.OpCreateOrder, nil)
	assert.ErrorContains(t, err, "rate limit wait")
	assert.Equal(t, int32(1), hits.Load())
}

func TestSession_Closed(t *testing.T) {
	server, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	session := newActiveSession(t, server.URL, &MockProtocol{name: "mock"}, nil)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())

	_, err := session.Do(context.Background(), core.OpListTickers, nil)
	assert.ErrorIs(t, err, core.ErrClientClosed)
	assert.Equal(t, int32(0), hits.Load())
}

func TestCache(t *testing.T) {
	cache := NewCache(time.Second)

	cache.Set("key1", "value1", 0)
	cache.Set("key2", "value2", time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, "value1", cache.Get("key1"))
	assert.Nil(t, cache.Get("key2"), "expired")
	assert.Nil(t, cache.Get("missing"))

	cache.Delete("key1")
	assert.Nil(t, cache.Get("key1"))

	cache.Set("key3", "value3", 0)
	cache.Clear()
	assert.Nil(t, cache.Get("key3"))
}

func TestSession_Credentials(t *testing.T) {
	creds := &core.Credentials{APIKey: "test-key", SecretKey: "test-secret"}
	session, err := New(core.DefaultConfig().WithCredentials(creds))
	require.NoError(t, err)

	assert.Equal(t, creds, session.Credentials())
	session.SetCredentials(nil)
	assert.Nil(t, session.Credentials())
}

func TestSession_Config(t *testing.T) {
	config := core.DefaultConfig()
	session, err := New(config)
	require.NoError(t, err)

	assert.Equal(t, config, session.Config())
}
