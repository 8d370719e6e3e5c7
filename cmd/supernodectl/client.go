package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"supernode/rpc"
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	var detail struct {
		Reason string `json:"reason"`
	}
	if len(e.Data) > 0 && json.Unmarshal(e.Data, &detail) == nil && detail.Reason != "" {
		return fmt.Sprintf("rpc error %d (%s): %s", e.Code, detail.Reason, e.Message)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// client speaks JSON-RPC 2.0 to a supernoded instance.
type client struct {
	endpoint string
	token    string
	jwt      string
	http     *http.Client
	nextID   atomic.Int64
}

func newClient(endpoint, token, jwt string, timeout time.Duration) *client {
	return &client{
		endpoint: strings.TrimSpace(endpoint),
		token:    strings.TrimSpace(token),
		jwt:      strings.TrimSpace(jwt),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// call invokes method with a single params object and decodes the result
// into out. A nil params sends an empty params list.
func (c *client) call(ctx context.Context, method string, params, out interface{}) error {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      c.nextID.Add(1),
		"method":  method,
		"params":  []interface{}{},
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.jwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.jwt)
	}
	if c.token != "" {
		req.Header.Set(rpc.TokenHeader, c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("%s: unexpected response (%s): %s", method, resp.Status, strings.TrimSpace(string(raw)))
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out == nil || len(decoded.Result) == 0 {
		return nil
	}
	return json.Unmarshal(decoded.Result, out)
}
