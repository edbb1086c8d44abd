package gateio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateio/pkg/core"
)

const emptyBodyHash = "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e"

func TestSign_KnownVector(t *testing.T) {
	sign, err := Sign("key", "The quick brown fox jumps over the lazy dog")
	require.NoError(t, err)
	assert.Equal(t, "b42af09057bac1e2d41708e48a902e09b5ff7f12ab428a4fe86653c73dd248fb82f948a549f7b791a5b41915ee4d1ec3935357e4e2317250d0372afa2ebeeb3a", sign)
}

func TestSign_Deterministic(t *testing.T) {
	a, err := Sign("secret", "message")
	require.NoError(t, err)
	b, err := Sign("secret", "message")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 128)
	assert.Regexp(t, "^[0-9a-f]{128}$", a)
}

func TestSign_EmptySecret(t *testing.T) {
	_, err := Sign("", "message")
	require.Error(t, err)

	var signErr *core.SigningError
	assert.ErrorAs(t, err, &signErr)
	assert.ErrorIs(t, err, core.ErrEmptySecret)
}

func TestHashBody(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want string
	}{
		{"nil body", nil, emptyBodyHash},
		{"empty body", []byte{}, emptyBodyHash},
		{
			"json body",
			[]byte(`{"currency_pair":"BTC_USDT","side":"buy"}`),
			"914b60741d3fd619ca0717b802608fc385ea8db8fd9bfcc9452bb9cf5a47e99bc7cf9e4d740c5204fb1bb54821220b3bf2ea968bb98264c8c040b641c70ec2a3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HashBody(tt.body))
		})
	}
}

func TestSignableRequest_CanonicalString(t *testing.T) {
	r := SignableRequest{
		Method: "get",
		Path:   "/api/v4/spot/accounts",
		Query:  "currency=BTC",
	}

	got := r.CanonicalString(time.Unix(1700000000, 999_000_000))
	want := "GET\n/api/v4/spot/accounts\ncurrency=BTC\n" + emptyBodyHash + "\n1700000000"
	assert.Equal(t, want, got)
}

func TestNewAuthHeaders(t *testing.T) {
	creds := &core.Credentials{APIKey: "my-key", SecretKey: "secret"}
	r := SignableRequest{
		Method: "GET",
		Path:   "/api/v4/spot/accounts",
		Query:  "currency=BTC",
	}

	headers, err := NewAuthHeaders(r, creds, time.Unix(1700000000, 500_000_000))
	require.NoError(t, err)

	assert.Equal(t, "my-key", headers.Key)
	assert.Equal(t, "1700000000", headers.Timestamp)
	assert.Equal(t, "59c0eda2722c94f4008352c0c8131280f8de6db782aee66762466e3e922cea7d411c56cf90d347566c3c150d01a6ff827475ad3705622a212e54c5fbc868bfd2", headers.Sign)

	assert.Equal(t, map[string]string{
		"KEY":       "my-key",
		"SIGN":      headers.Sign,
		"Timestamp": "1700000000",
	}, headers.Map())
}

func TestNewAuthHeaders_EachFieldChangesSignature(t *testing.T) {
	creds := &core.Credentials{APIKey: "k", SecretKey: "s"}
	ts := time.Unix(1700000000, 0)
	base := SignableRequest{Method: "POST", Path: "/api/v4/spot/orders", Query: "a=1", Body: []byte(`{}`)}

	baseHeaders, err := NewAuthHeaders(base, creds, ts)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(r *SignableRequest, ts *time.Time)
	}{
		{"method", func(r *SignableRequest, _ *time.Time) { r.Method = "DELETE" }},
		{"path", func(r *SignableRequest, _ *time.Time) { r.Path = "/api/v4/spot/open_orders" }},
		{"query", func(r *SignableRequest, _ *time.Time) { r.Query = "a=2" }},
		{"body", func(r *SignableRequest, _ *time.Time) { r.Body = []byte(`{"x":1}`) }},
		{"timestamp", func(_ *SignableRequest, ts *time.Time) { *ts = ts.Add(time.Second) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			when := ts
			tt.mutate(&r, &when)

			headers, err := NewAuthHeaders(r, creds, when)
			require.NoError(t, err)
			assert.NotEqual(t, baseHeaders.Sign, headers.Sign)
		})
	}
}

func TestNewAuthHeaders_Errors(t *testing.T) {
	r := SignableRequest{Method: "GET", Path: "/api/v4/spot/accounts"}

	_, err := NewAuthHeaders(r, nil, time.Now())
	assert.ErrorIs(t, err, core.ErrNoCredentials)

	_, err = NewAuthHeaders(r, &core.Credentials{APIKey: "k"}, time.Now())
	assert.ErrorIs(t, err, core.ErrEmptySecret)
}
