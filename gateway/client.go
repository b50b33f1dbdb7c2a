package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/config"
	"github.com/linesmerrill/lcm-policing/models"
)

// Client is a Gateway over the backend's PostgREST-style HTTP interface
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	observe Observer
}

// Observer is told about every finished remote call
type Observer func(ctx context.Context, name string, d time.Duration, err error)

// Observe installs fn as the client's call observer.
func (c *Client) Observe(fn Observer) { c.observe = fn }

// NewClient uses the values from the config and returns a backend client
func NewClient(conf *config.Config) (*Client, error) {
	if conf.BackendURL == "" {
		return nil, errors.New("backend url is not set")
	}
	if _, err := url.Parse(conf.BackendURL); err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(conf.BackendURL, "/"),
		anonKey: conf.AnonKey,
		http:    &http.Client{},
	}, nil
}

// Ping checks that the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/v1/", nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(ctx, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return &models.Error{Kind: models.KindRemote, Message: "backend unavailable", Status: resp.StatusCode}
	}
	return nil
}

// Call invokes the named remote procedure.
func (c *Client) Call(ctx context.Context, name string, args Args, out interface{}) error {
	if args == nil {
		args = Args{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode %s args: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/v1/rpc/"+url.PathEscape(name), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, req, name, out)
}

// Select reads rows of a table-like resource.
func (c *Client) Select(ctx context.Context, q Query, out interface{}) error {
	v := url.Values{}
	if len(q.Columns) > 0 {
		v.Set("select", strings.Join(q.Columns, ","))
	}
	for _, f := range q.Filters {
		v.Add(f.Column, "eq."+f.Value)
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		v.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	u := c.baseURL + "/rest/v1/" + url.PathEscape(q.Table)
	if enc := v.Encode(); enc != "" {
		u += "?" + enc
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(ctx, req, q.Table, out)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("apikey", c.anonKey)
	token := AccessToken(req.Context())
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

func (c *Client) do(ctx context.Context, req *http.Request, name string, out interface{}) error {
	c.authorize(req)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	err := c.roundTrip(ctx, req, name, out)
	if c.observe != nil {
		c.observe(ctx, name, time.Since(start), err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, req *http.Request, name string, out interface{}) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		err = classifyTransport(ctx, err)
		zap.S().Warnw("remote call failed", "name", name, "duration", time.Since(start), "kind", models.KindOf(err))
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport(ctx, err)
	}
	zap.S().Debugw("remote call", "name", name, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeRemoteError(resp.StatusCode, payload)
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], payload...)
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &models.Error{Kind: models.KindRemote, Message: "unexpected response from " + name, Status: resp.StatusCode, Err: err}
	}
	return nil
}

type remoteErrorBody struct {
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
	Hint    json.RawMessage `json:"hint"`
}

func decodeRemoteError(status int, payload []byte) error {
	e := &models.Error{Kind: models.KindRemote, Status: status}
	var body remoteErrorBody
	if err := json.Unmarshal(payload, &body); err == nil {
		e.Message = body.Message
		e.Code = body.Code
		e.Details = rawText(body.Details)
		e.Hint = rawText(body.Hint)
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	if status == http.StatusNotFound && e.Code == "" {
		e.Kind = models.KindNotFound
	}
	return e
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &models.Error{Kind: models.KindTimeout, Message: "The backend did not respond in time.", Err: err}
	}
	return &models.Error{Kind: models.KindRemote, Message: err.Error(), Err: err}
}
