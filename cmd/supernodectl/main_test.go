package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"supernode/rpc"
)

type capturedRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	token  string
	bearer string
}

func newFakeNode(t *testing.T, result interface{}) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		captured.token = r.Header.Get(rpc.TokenHeader)
		captured.bearer = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": result})
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(viper.New())
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestDepositSendsParams(t *testing.T) {
	srv, captured := newFakeNode(t, map[string]interface{}{"address": "0x01", "minipools": 0})
	_, err := execute(t, "--endpoint", srv.URL, "deposit", "0xpool", "--provider", "0xabc", "--amount", "1000")
	require.NoError(t, err)
	require.Equal(t, "supernode_deposit", captured.Method)
	require.Len(t, captured.Params, 1)

	var params map[string]string
	require.NoError(t, json.Unmarshal(captured.Params[0], &params))
	require.Equal(t, map[string]string{"pool": "0xpool", "track": "native", "provider": "0xabc", "amount": "1000"}, params)
	require.Empty(t, captured.token)
}

func TestFeesConvertFractions(t *testing.T) {
	srv, captured := newFakeNode(t, map[string]bool{"ok": true})
	_, err := execute(t, "--endpoint", srv.URL, "pool", "fees", "0xpool", "--caller", "0xowner", "--pool-native", "0.05")
	require.NoError(t, err)

	var params map[string]string
	require.NoError(t, json.Unmarshal(captured.Params[0], &params))
	require.Equal(t, "50000000000000000", params["poolNative"])
	require.Equal(t, "0", params["operatorToken"])
}

func TestPrivilegedCommandsNeedToken(t *testing.T) {
	t.Setenv(tokenEnv, "")
	srv, captured := newFakeNode(t, map[string]string{"balance": "5"})

	_, err := execute(t, "--endpoint", srv.URL, "bank", "fund", "native", "0xabc", "5")
	require.Error(t, err)
	require.Empty(t, captured.Method)

	_, err = execute(t, "--endpoint", srv.URL, "--token", "secret", "--jwt", "gateway-jwt", "bank", "fund", "native", "0xabc", "5")
	require.NoError(t, err)
	require.Equal(t, "bank_fund", captured.Method)
	require.Equal(t, "secret", captured.token)
	require.Equal(t, "Bearer gateway-jwt", captured.bearer)
}

func TestEnvironmentOverridesFlags(t *testing.T) {
	srv, captured := newFakeNode(t, []string{})
	t.Setenv("SUPERNODECTL_ENDPOINT", srv.URL)
	out, err := execute(t, "pool", "list")
	require.NoError(t, err)
	require.Equal(t, "supernode_listPools", captured.Method)
	require.Equal(t, "(none)\n", out)
}

func TestJSONOutput(t *testing.T) {
	srv, _ := newFakeNode(t, map[string]string{"pending": "1234567"})
	out, err := execute(t, "--endpoint", srv.URL, "-o", "json", "pool", "pending", "0xpool")
	require.NoError(t, err)
	require.Contains(t, out, `"pending": "1234567"`)

	out, err = execute(t, "--endpoint", srv.URL, "pool", "pending", "0xpool")
	require.NoError(t, err)
	require.Equal(t, "pending  1,234,567\n", out)
}

func TestRPCErrorsSurfaceReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32010,"message":"supernode: exceeds capital limit","data":{"reason":"CapitalLimitExceeded"}}}`))
	}))
	defer srv.Close()
	_, err := execute(t, "--endpoint", srv.URL, "deposit", "0xpool", "--provider", "0xabc", "--amount", "1")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "CapitalLimitExceeded"), err.Error())
}

func TestFormatText(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, printResult(out, outputText, map[string]interface{}{
		"address": "0xAbC",
		"native":  map[string]string{"share": "1000000", "unclaimed": "0"},
		"actors":  []string{"0x01"},
	}))
	require.Equal(t, "actors:\n  - 0x01\naddress  0xAbC\nnative:\n  share      1,000,000\n  unclaimed  0\n", out.String())
}
