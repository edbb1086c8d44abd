package gateio

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"gateio/pkg/core"
)

// Header names for authenticated REST calls.
const (
	HeaderKey       = "KEY"
	HeaderSign      = "SIGN"
	HeaderTimestamp = "Timestamp"
)

// Sign returns the lowercase hex HMAC-SHA512 of message keyed by secret.
func Sign(secret, message string) (string, error) {
	if secret == "" {
		return "", &core.SigningError{Err: core.ErrEmptySecret}
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// HashBody returns the hex SHA-512 digest of body. A nil body hashes as empty input.
func HashBody(body []byte) string {
	sum := sha512.Sum512(body)
	return hex.EncodeToString(sum[:])
}

// SignableRequest holds the parts of a REST call that go into the signature.
type SignableRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// CanonicalString joins method, path, query, body digest and timestamp with newlines.
func (r SignableRequest) CanonicalString(ts time.Time) string {
	return strings.Join([]string{
		strings.ToUpper(r.Method),
		r.Path,
		r.Query,
		HashBody(r.Body),
		strconv.FormatInt(ts.Unix(), 10),
	}, "\n")
}

// AuthHeaders is the header set attached to an authenticated REST call.
type AuthHeaders struct {
	Key       string
	Sign      string
	Timestamp string
}

// Map returns the headers keyed by their wire names.
func (h AuthHeaders) Map() map[string]string {
	return map[string]string{
		HeaderKey:       h.Key,
		HeaderSign:      h.Sign,
		HeaderTimestamp: h.Timestamp,
	}
}

// NewAuthHeaders signs r at ts. The same truncated second is used in the
// canonical string and the Timestamp header.
func NewAuthHeaders(r SignableRequest, creds *core.Credentials, ts time.Time) (AuthHeaders, error) {
	if creds == nil {
		return AuthHeaders{}, core.ErrNoCredentials
	}
	sign, err := Sign(creds.SecretKey, r.CanonicalString(ts))
	if err != nil {
		return AuthHeaders{}, err
	}
	return AuthHeaders{
		Key:       creds.APIKey,
		Sign:      sign,
		Timestamp: strconv.FormatInt(ts.Unix(), 10),
	}, nil
}
