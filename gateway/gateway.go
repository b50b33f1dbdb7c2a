package gateway

// go generate: mockery --name Gateway

import (
	"context"
	"encoding/json"
	"strings"
)

// Args are the named arguments of a remote procedure
type Args map[string]interface{}

// Filter is an equality filter on a table read
type Filter struct {
	Column string
	Value  string
}

// Query describes a read of a table-like resource
type Query struct {
	Table      string
	Columns    []string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Gateway is the only way the core talks to the backend. Both named procedures and
// table reads share the same result-or-error shape; out receives the decoded JSON body
// and may be nil when the caller does not need the payload.
type Gateway interface {
	Call(ctx context.Context, name string, args Args, out interface{}) error
	Select(ctx context.Context, q Query, out interface{}) error
}

type tokenKey struct{}

// WithAccessToken attaches the caller's bearer token to ctx so that calls made with it
// run under the caller's identity.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// AccessToken returns the bearer token attached with WithAccessToken.
func AccessToken(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}

// DecodeRow decodes a payload that may be a single object or a list of rows into out.
// It reports false when the payload carries no row.
func DecodeRow(raw json.RawMessage, out interface{}) (bool, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return false, nil
	}
	if s[0] == '[' {
		var rows []json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			return false, err
		}
		if len(rows) == 0 {
			return false, nil
		}
		raw = rows[0]
		if strings.TrimSpace(string(raw)) == "null" {
			return false, nil
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}
