// Package odoo implements the remote authority over the school backend's
// JSON-RPC endpoints.
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pmaschool/authcore/internal/application/authority"
	"github.com/pmaschool/authcore/internal/shared/config"
	"github.com/pmaschool/authcore/internal/shared/logger"
	rpc "github.com/pmaschool/authcore/internal/shared/rpcprotocol"
)

// SessionTokenKey is where the remote session id is persisted.
const SessionTokenKey = "odoo_session_id"

const maxResponseSize = 4 << 20

// TokenStore persists the remote session id across processes.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Client talks to one backend database. It holds at most one session id.
type Client struct {
	httpClient *http.Client
	baseURL    string
	database   string
	tokens     TokenStore
	notifier   authority.UnauthorizedNotifier
	logger     logger.Interface

	requestID atomic.Int64

	mu        sync.Mutex
	sid       string
	sidLoaded bool
}

// NewClient builds a client. notifier may be nil and set later with
// SetNotifier, since the expiry monitor is usually built after it.
func NewClient(cfg config.AuthorityConfig, tokens TokenStore, notifier authority.UnauthorizedNotifier, logger logger.Interface) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		database:   cfg.Database,
		tokens:     tokens,
		notifier:   notifier,
		logger:     logger,
	}
}

var _ authority.RemoteAuthority = (*Client)(nil)

func (c *Client) SetNotifier(n authority.UnauthorizedNotifier) {
	c.mu.Lock()
	c.notifier = n
	c.mu.Unlock()
}

// SessionID returns the current remote session id, loading it from the
// token store on first use.
func (c *Client) SessionID(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sidLoaded {
		sid, _, err := c.tokens.Get(ctx, SessionTokenKey)
		if err != nil {
			c.logger.Warnw("failed to load session id", "error", err)
		}
		c.sid = sid
		c.sidLoaded = true
	}
	return c.sid
}

func (c *Client) setSessionID(ctx context.Context, sid string) {
	c.mu.Lock()
	c.sid = sid
	c.sidLoaded = true
	c.mu.Unlock()

	var err error
	if sid == "" {
		err = c.tokens.Delete(ctx, SessionTokenKey)
	} else {
		err = c.tokens.Set(ctx, SessionTokenKey, sid)
	}
	if err != nil {
		c.logger.Warnw("failed to persist session id", "error", err)
	}
}

func (c *Client) notifyUnauthorized() {
	c.mu.Lock()
	n := c.notifier
	c.mu.Unlock()
	if n != nil {
		n.Notify()
	}
}

// post sends one JSON-RPC call and decodes the result into out. With auth set
// the session id header is attached, and a session rejection is reported as
// authority.ErrUnauthorized after notifying.
func (c *Client) post(ctx context.Context, path string, params any, auth bool, out any) (*http.Response, error) {
	req, err := rpc.NewRequest(c.requestID.Add(1), params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	if auth {
		sid := c.SessionID(ctx)
		if sid == "" {
			return nil, fmt.Errorf("%w: no active session", authority.ErrUnauthorized)
		}
		httpReq.Header.Set(rpc.HeaderSessionID, sid)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authority.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return resp, fmt.Errorf("%w: status %d", authority.ErrUnreachable, resp.StatusCode)
	}

	var rpcResp rpc.Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&rpcResp); err != nil {
		return resp, fmt.Errorf("failed to decode response: %w", err)
	}

	if rpcResp.Error != nil {
		if auth && (rpcResp.Error.IsSessionExpired() || rpcResp.Error.IsAccessDenied()) {
			c.logger.Warnw("remote session rejected", "path", path, "message", rpcResp.Error.UserMessage())
			c.notifyUnauthorized()
			return resp, fmt.Errorf("%w: %s", authority.ErrUnauthorized, rpcResp.Error.UserMessage())
		}
		return resp, rpcResp.Error
	}

	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return resp, fmt.Errorf("failed to decode result: %w", err)
		}
	}
	return resp, nil
}

// callKW invokes a model method with keyword arguments.
func (c *Client) callKW(ctx context.Context, model, method string, args []any, kwargs any, out any) error {
	params := rpc.CallKWParams{Model: model, Method: method, Args: args}
	if params.Args == nil {
		params.Args = []any{}
	}
	if kwargs != nil {
		raw, err := json.Marshal(kwargs)
		if err != nil {
			return fmt.Errorf("failed to encode kwargs: %w", err)
		}
		params.Kwargs = raw
	}
	_, err := c.post(ctx, rpc.PathCallKW, params, true, out)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", model, method, err)
	}
	return nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func asRPCError(err error) *rpc.Error {
	var rpcErr *rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return nil
}
