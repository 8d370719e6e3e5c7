package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"supernode/core/events"
	"supernode/journal"
	"supernode/native/supernode"
	"supernode/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	moduleName      = "supernode"

	// TokenHeader carries the static RPC token for privileged methods.
	TokenHeader = "X-Supernode-Token"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeNotFound       = -32004
	codeServerError    = -32000
	codeLedgerRejected = -32010
	codeTransferFailed = -32011
	codeModulePaused   = -32020
)

// Bank is the wallet view exposed over RPC.
type Bank interface {
	Balance(asset string, addr common.Address) (*big.Int, error)
	Credit(asset string, addr common.Address, amount *big.Int) error
}

// Digester hashes a pool's persisted state.
type Digester interface {
	SupernodePoolDigest(addr common.Address) ([32]byte, error)
}

// EventLog pages through journaled events.
type EventLog interface {
	List(ctx context.Context, filter journal.Filter) ([]journal.Record, error)
}

// Options carries the server's optional collaborators.
type Options struct {
	Bank      Bank
	Digester  Digester
	Journal   EventLog
	Stream    *events.Stream
	Logger    *slog.Logger
	AuthToken string
	// Identity resolves the caller's address for methods that act on behalf
	// of an account. Without it only the static token may call them.
	Identity IdentityFunc
}

type distributionKey struct {
	pool  common.Address
	track supernode.Track
}

// Server exposes the ledger engine over JSON-RPC 2.0.
type Server struct {
	engine    *supernode.Engine
	bank      Bank
	digester  Digester
	journal   EventLog
	stream    *events.Stream
	logger    *slog.Logger
	authToken string
	identity  IdentityFunc

	mu            sync.RWMutex
	distributions map[distributionKey]*supernode.Distribution
}

// NewServer constructs a server over engine.
func NewServer(engine *supernode.Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:        engine,
		bank:          opts.Bank,
		digester:      opts.Digester,
		journal:       opts.Journal,
		stream:        opts.Stream,
		logger:        logger.With("component", "rpc"),
		authToken:     strings.TrimSpace(opts.AuthToken),
		identity:      opts.Identity,
		distributions: make(map[distributionKey]*supernode.Distribution),
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

type handlerFunc func(s *Server, w http.ResponseWriter, r *http.Request, req *RPCRequest)

type route struct {
	handler handlerFunc
	auth    bool
}

// Staking-subsystem signals and the faucet require the static token. Methods
// that act for an account (owner, provider, seller) check the named address
// against the request identity in their handler; reads and distribute are open.
var routes = map[string]route{
	"supernode_create":            {handler: (*Server).handleCreate},
	"supernode_deposit":           {handler: (*Server).handleDeposit},
	"supernode_setLimit":          {handler: (*Server).handleSetLimit},
	"supernode_setOperatorLimit":  {handler: (*Server).handleSetOperatorLimit},
	"supernode_minipoolCreated":   {handler: (*Server).handleMinipoolCreated, auth: true},
	"supernode_minipoolDestroyed": {handler: (*Server).handleMinipoolDestroyed, auth: true},
	"supernode_setFees":           {handler: (*Server).handleSetFees},
	"supernode_setAverageNodeFee": {handler: (*Server).handleSetAverageNodeFee, auth: true},
	"supernode_setDistributor":    {handler: (*Server).handleSetDistributor, auth: true},
	"supernode_distribute":        {handler: (*Server).handleDistribute},
	"supernode_claim":             {handler: (*Server).handleClaim},
	"supernode_buyout":            {handler: (*Server).handleBuyout},
	"supernode_setBuyoutLimit":    {handler: (*Server).handleSetBuyoutLimit},
	"supernode_getPool":           {handler: (*Server).handleGetPool},
	"supernode_getAccount":        {handler: (*Server).handleGetAccount},
	"supernode_getActors":         {handler: (*Server).handleGetActors},
	"supernode_pending":           {handler: (*Server).handlePending},
	"supernode_listPools":         {handler: (*Server).handleListPools},
	"supernode_events":            {handler: (*Server).handleEvents},
	"supernode_lastDistribution":  {handler: (*Server).handleLastDistribution},
	"bank_balance":                {handler: (*Server).handleBankBalance},
	"bank_fund":                   {handler: (*Server).handleBankFund, auth: true},
}

// ServeHTTP decodes one JSON-RPC request and routes it to its handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	method := s.handle(sw, r)
	observability.ModuleMetrics().Observe(moduleName, method, sw.status, time.Since(start))
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) string {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return ""
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return ""
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return ""
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return req.Method
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return ""
	}

	rt, ok := routes[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method), nil)
		return "unknown"
	}
	if rt.auth {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return req.Method
		}
	}
	rt.handler(s, w, r, req)
	return req.Method
}

// requireAuth accepts the static token in X-Supernode-Token, or as a bearer
// token when no gateway JWT occupies the Authorization header.
func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	token := strings.TrimSpace(r.Header.Get(TokenHeader))
	if token == "" {
		header := r.Header.Get("Authorization")
		if header == "" {
			return &RPCError{Code: codeUnauthorized, Message: "missing RPC token"}
		}
		if !strings.HasPrefix(header, "Bearer ") {
			return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
		}
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

// LastDistribution returns the most recent applied distribution for pool and
// track since the server started.
func (s *Server) LastDistribution(pool common.Address, track supernode.Track) (*supernode.Distribution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.distributions[distributionKey{pool: pool, track: track}]
	return d, ok
}

func (s *Server) rememberDistribution(d *supernode.Distribution) {
	if d == nil || !d.Applied {
		return
	}
	s.mu.Lock()
	s.distributions[distributionKey{pool: d.Pool, track: d.Track}] = d
	s.mu.Unlock()
}
