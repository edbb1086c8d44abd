package core

import (
	"fmt"
	"maps"
	"net/url"
	"time"
)

type Params map[string]any

// Request describes one REST call before it is bound to an HTTP client.
type Request struct {
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Query       Params            `json:"query,omitempty"`
	Body        any               `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Bucket      string            `json:"bucket,omitempty"`
	CacheKey    string            `json:"cache_key,omitempty"`
	CacheTTL    time.Duration     `json:"cache_ttl,omitempty"`
	RequireAuth bool              `json:"require_auth"`
}

func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Query:   make(Params),
		Headers: make(map[string]string),
	}
}

func (r *Request) SetQuery(key string, value any) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	r.Query[key] = value
	return r
}

// SetQueryIf sets key only when ok is true. Saves an if block per optional parameter.
func (r *Request) SetQueryIf(ok bool, key string, value any) *Request {
	if !ok {
		return r
	}
	return r.SetQuery(key, value)
}

func (r *Request) SetBody(body any) *Request {
	r.Body = body
	return r
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

// SetBucket routes the request through a named rate limit bucket.
func (r *Request) SetBucket(bucket string) *Request {
	r.Bucket = bucket
	return r
}

func (r *Request) SetCache(key string, ttl time.Duration) *Request {
	r.CacheKey = key
	r.CacheTTL = ttl
	return r
}

func (r *Request) SetRequireAuth(require bool) *Request {
	r.RequireAuth = require
	return r
}

func (r *Request) SetQueryParams(params Params) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	maps.Copy(r.Query, params)
	return r
}

// QueryValues converts Query to url.Values using the %v form of each value.
func (r *Request) QueryValues() url.Values {
	values := make(url.Values, len(r.Query))
	for k, v := range r.Query {
		values.Set(k, fmt.Sprint(v))
	}
	return values
}

// RawQuery returns the encoded query string, sorted by key. Empty when there is no query.
func (r *Request) RawQuery() string {
	if len(r.Query) == 0 {
		return ""
	}
	return r.QueryValues().Encode()
}
