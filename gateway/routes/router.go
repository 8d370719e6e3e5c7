package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"supernode/gateway/middleware"
	"supernode/integrations/exports"
	"supernode/native/supernode"
	"supernode/rpc"
)

// Rate-limit keys for the routes below.
const (
	LimitRPC     = "rpc"
	LimitExports = "exports"
)

// Ledger is the part of the RPC server the router mounts.
type Ledger interface {
	http.Handler
	ServeEvents(w http.ResponseWriter, r *http.Request)
	LastDistribution(pool common.Address, track supernode.Track) (*supernode.Distribution, bool)
}

var _ Ledger = (*rpc.Server)(nil)

type Config struct {
	Ledger        Ledger
	HealthCheck   func(ctx context.Context) error
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
}

// New builds the public HTTP surface: JSON-RPC, the event websocket,
// distribution exports, health and metrics.
func New(cfg Config) (http.Handler, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("routes: ledger handler required")
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.HealthCheck != nil {
			if err := cfg.HealthCheck(req.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.Observability != nil {
		r.Handle("/metrics", cfg.Observability.MetricsHandler())
	}

	mount := func(route, limitKey string, register func(chi.Router)) {
		r.Group(func(sr chi.Router) {
			if cfg.Observability != nil {
				sr.Use(cfg.Observability.Middleware(route))
			}
			if cfg.RateLimiter != nil && limitKey != "" {
				sr.Use(cfg.RateLimiter.Middleware(limitKey))
			}
			if cfg.Authenticator != nil {
				sr.Use(cfg.Authenticator.Middleware())
			}
			register(sr)
		})
	}

	mount("rpc", LimitRPC, func(sr chi.Router) {
		sr.Post("/rpc", cfg.Ledger.ServeHTTP)
	})
	mount("events", "", func(sr chi.Router) {
		sr.Get("/ws/events", cfg.Ledger.ServeEvents)
	})
	mount("exports", LimitExports, func(sr chi.Router) {
		sr.Get("/exports/{pool}/{format}", exportHandler(cfg.Ledger))
	})

	return r, nil
}

// exportHandler renders the last distribution of a pool's track. The track
// defaults to native.
func exportHandler(ledger Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawPool := chi.URLParam(r, "pool")
		if !common.IsHexAddress(rawPool) {
			http.Error(w, "invalid pool address", http.StatusBadRequest)
			return
		}
		track := supernode.TrackNative
		if raw := strings.TrimSpace(r.URL.Query().Get("track")); raw != "" {
			parsed, err := supernode.ParseTrack(raw)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			track = parsed
		}
		pool := common.HexToAddress(rawPool)
		d, ok := ledger.LastDistribution(pool, track)
		if !ok {
			http.Error(w, "no distribution recorded", http.StatusNotFound)
			return
		}
		format := strings.ToLower(chi.URLParam(r, "format"))
		data, checksum, contentType, err := exports.Export(format, d)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, exports.ErrUnknownFormat) {
				status = http.StatusBadRequest
			}
			http.Error(w, err.Error(), status)
			return
		}
		filename := fmt.Sprintf("%s-%s-%d.%s", strings.ToLower(pool.Hex()), track, d.Timestamp, format)
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.Header().Set("X-Checksum-SHA256", checksum)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
