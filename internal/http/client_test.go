package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"valid", &Config{BaseURL: "https://api.gateio.ws", Timeout: time.Second}, false},
		{"nil config", nil, true},
		{"missing base url", &Config{Timeout: time.Second}, true},
		{"bad base url", &Config{BaseURL: "not a url", Timeout: time.Second}, true},
		{"zero timeout", &Config{BaseURL: "https://api.gateio.ws"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, client.Close())
		})
	}
}

func TestClient_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v4/spot/orders", r.URL.Path)
		assert.Equal(t, "BTC_USDT", r.URL.Query().Get("currency_pair"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"amount":"1"}`, string(body))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}))
	defer server.Close()

	client, err := NewClient(&Config{
		BaseURL: server.URL,
		Timeout: time.Second,
		Headers: map[string]string{"Accept": "application/json"},
	})
	require.NoError(t, err)
	defer client.Close()

	req, err := client.NewRequest(context.Background(),
		WithTarget(http.MethodPost, "/api/v4/spot/orders"),
		WithQuery(url.Values{"currency_pair": {"BTC_USDT"}}),
		WithHeaders(map[string]string{"X-Test": "yes"}),
		WithJSONBody([]byte(`{"amount":"1"}`)),
	)
	require.NoError(t, err)

	resp, err := client.Execute(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode())
	assert.Equal(t, `{"id":"1"}`, resp.String())
}

func TestClient_NoBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		assert.Empty(t, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, err := NewClient(&Config{BaseURL: server.URL, Timeout: time.Second})
	require.NoError(t, err)
	defer client.Close()

	req, err := client.NewRequest(context.Background(), WithTarget(http.MethodDelete, "/x"), WithJSONBody(nil))
	require.NoError(t, err)

	resp, err := client.Execute(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
}

func TestClient_NoRetry(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(&Config{BaseURL: server.URL, Timeout: time.Second})
	require.NoError(t, err)
	defer client.Close()

	req, err := client.NewRequest(context.Background(), WithTarget(http.MethodGet, "/"))
	require.NoError(t, err)
	resp, err := client.Execute(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode())
	assert.Equal(t, 1, hits)
}

func TestClient_Logging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client, err := NewClient(&Config{BaseURL: server.URL, Timeout: time.Second})
	require.NoError(t, err)
	defer client.Close()

	var buf bytes.Buffer
	client.SetLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	req, err := client.NewRequest(context.Background(), WithTarget(http.MethodGet, "/api/v4/spot/time"))
	require.NoError(t, err)
	_, err = client.Execute(req)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"message":"http request"`)
	assert.Contains(t, buf.String(), `"message":"http response"`)
	assert.Contains(t, buf.String(), `"status":200`)
}

func TestClient_Closed(t *testing.T) {
	client, err := NewClient(&Config{BaseURL: "https://api.gateio.ws", Timeout: time.Second})
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	req, err := client.NewRequest(context.Background())
	assert.Error(t, err)
	assert.Nil(t, req)
}
