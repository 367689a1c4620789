package zabbix

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
	Auth   string         `json:"auth"`
}

func rpcServer(t *testing.T, handler func(req recordedRequest) (any, *APIError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recordedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, apiErr := handler(req)
		resp := map[string]any{"jsonrpc": "2.0", "id": 1}
		if apiErr != nil {
			resp["error"] = apiErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestClientTokenAuth(t *testing.T) {
	var seen recordedRequest
	srv := rpcServer(t, func(req recordedRequest) (any, *APIError) {
		seen = req
		return []string{}, nil
	})
	defer srv.Close()

	c, err := NewClient(ClientConfig{URL: srv.URL, Token: "static-token", Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "host.get", map[string]any{"output": "extend"})
	require.NoError(t, err)
	assert.Equal(t, "host.get", seen.Method)
	assert.Equal(t, "static-token", seen.Auth, "token must ride in the auth field")
}

func TestClientPasswordLogin(t *testing.T) {
	var methods []string
	srv := rpcServer(t, func(req recordedRequest) (any, *APIError) {
		methods = append(methods, req.Method)
		if req.Method == "user.login" {
			assert.Empty(t, req.Auth)
			return "session-token", nil
		}
		assert.Equal(t, "session-token", req.Auth)
		return []string{}, nil
	})
	defer srv.Close()

	c, err := NewClient(ClientConfig{URL: srv.URL, User: "admin", Password: "secret", Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, []string{"user.login"}, methods, "construction performs the implicit login")

	_, err = c.Get(context.Background(), "item.get", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"user.login", "item.get"}, methods)
}

func TestClientLoginRejected(t *testing.T) {
	srv := rpcServer(t, func(req recordedRequest) (any, *APIError) {
		return nil, &APIError{Code: -32602, Message: "Invalid params.", Data: "Login name or password is incorrect."}
	})
	defer srv.Close()

	_, err := NewClient(ClientConfig{URL: srv.URL, User: "admin", Password: "wrong", Logger: zerolog.Nop()})
	require.Error(t, err)
}

func TestClientMissingCredentials(t *testing.T) {
	_, err := NewClient(ClientConfig{URL: "http://example"})
	require.Error(t, err)

	_, err = NewClient(ClientConfig{Token: "t"})
	require.Error(t, err, "url is mandatory")

	_, err = NewClient(ClientConfig{URL: "http://example", User: "admin"})
	require.Error(t, err, "password-based auth needs both user and password")
}

func TestClientAPIError(t *testing.T) {
	srv := rpcServer(t, func(req recordedRequest) (any, *APIError) {
		return nil, &APIError{Code: -32500, Message: "Application error.", Data: "No permissions."}
	})
	defer srv.Close()

	c, err := NewClient(ClientConfig{URL: srv.URL, Token: "t", Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "host.get", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, -32500, apiErr.Code)
	assert.Contains(t, apiErr.Error(), "No permissions.")
}

func TestClientTransportError(t *testing.T) {
	srv := rpcServer(t, func(req recordedRequest) (any, *APIError) { return nil, nil })
	srv.Close() // immediately, so the call fails at the transport level

	c, err := NewClient(ClientConfig{URL: srv.URL, Token: "t", Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "host.get", nil)
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr), "transport failures are not API errors")
}
