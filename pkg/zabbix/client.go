// Package zabbix implements a client for the Zabbix JSON-RPC API.
package zabbix

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ClientConfig holds connection settings for one Zabbix server.
type ClientConfig struct {
	URL       string
	Token     string // static API token; takes precedence over User/Password
	User      string
	Password  string
	VerifySSL bool
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// Client talks to a single Zabbix server. Safe for concurrent use once
// constructed; the token is never mutated after NewClient returns.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
	nextID     atomic.Int64
}

// APIError is an application-level error payload returned by the Zabbix API,
// as opposed to a transport failure.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *APIError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("zabbix api error %d: %s: %s", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("zabbix api error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	Auth    string `json:"auth,omitempty"`
	ID      int64  `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *APIError       `json:"error"`
}

// NewClient validates the credential bundle and returns a ready client.
// When no static token is configured it performs a user.login call to
// obtain one, so construction can fail on bad credentials.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("zabbix: url is required")
	}
	if cfg.Token == "" && (cfg.User == "" || cfg.Password == "") {
		return nil, fmt.Errorf("zabbix: credentials incomplete, need either token or user and password")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	c := &Client{
		url:        strings.TrimSuffix(cfg.URL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		logger:     cfg.Logger.With().Str("component", "zabbix").Logger(),
	}

	if c.token == "" {
		if err := c.login(context.Background(), cfg.User, cfg.Password); err != nil {
			return nil, fmt.Errorf("zabbix login failed: %w", err)
		}
	}

	return c, nil
}

// login performs user.login and stores the returned session token. The
// "username" parameter name requires Zabbix 6.0 or later; servers running
// 5.x and older expect "user" and will reject this call.
func (c *Client) login(ctx context.Context, user, password string) error {
	raw, err := c.call(ctx, "user.login", map[string]string{
		"username": user,
		"password": password,
	}, false)
	if err != nil {
		return err
	}

	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return fmt.Errorf("unexpected user.login result: %w", err)
	}
	if token == "" {
		return fmt.Errorf("empty session token")
	}
	c.token = token
	return nil
}

// Get performs a generic API call and returns the raw result payload.
func (c *Client) Get(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.call(ctx, method, params, true)
}

func (c *Client) call(ctx context.Context, method string, params any, authed bool) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}
	if authed {
		if c.token == "" {
			return nil, fmt.Errorf("zabbix: no session token")
		}
		req.Auth = c.token
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json-rpc")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("zabbix request %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("zabbix request %s: unexpected status %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}

	if rpcResp.Error != nil {
		c.logger.Error().
			Str("method", method).
			Int("code", rpcResp.Error.Code).
			Str("data", rpcResp.Error.Data).
			Msg("Zabbix API returned an error")
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}
