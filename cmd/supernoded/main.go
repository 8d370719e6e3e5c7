package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"supernode/config"
	"supernode/core/events"
	"supernode/core/state"
	"supernode/gateway/middleware"
	"supernode/gateway/routes"
	"supernode/integrations/webhooks"
	"supernode/journal"
	"supernode/native/bank"
	"supernode/native/supernode"
	"supernode/observability"
	"supernode/observability/logging"
	telemetry "supernode/observability/otel"
	"supernode/rpc"
	"supernode/storage"
)

const serviceName = "supernoded"

func main() {
	var cfgPath string
	var envFile string
	flag.StringVar(&cfgPath, "config", "config.toml", "path to node configuration")
	flag.StringVar(&envFile, "env-file", ".env", "optional dotenv file with secrets")
	flag.Parse()

	boot := logging.Setup(serviceName, "")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		boot.Error("failed to load env file", "path", envFile, "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		boot.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	logger, logCloser := logging.SetupWithFile(serviceName, cfg.Environment, logging.ParseLevel(cfg.Logging.Level), logging.FileOptions{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer logCloser.Close()

	if err := run(cfg, cfgPath, logger); err != nil {
		logger.Error("supernoded exited", "error", err)
		_ = logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, cfgPath string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryCfg := telemetry.ConfigFromEnv(serviceName, cfg.Environment)
	telemetryCfg.Ledger = map[string]string{
		"storage_backend": cfg.StorageBackend,
		"journal":         strconv.FormatBool(strings.TrimSpace(cfg.JournalDSN) != ""),
	}
	shutdownTelemetry, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return err
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	db, err := storage.Open(cfg.StorageBackend, cfg.DataDir)
	if err != nil {
		return err
	}
	manager := state.NewManager(db)
	defer manager.Close()
	ledger := bank.NewLedger(manager)
	stream := events.NewStream()
	emitters := events.Multi{stream, observability.Events()}

	var eventLog rpc.EventLog
	if dsn := strings.TrimSpace(cfg.JournalDSN); dsn != "" {
		gdb, err := journal.Open(dsn)
		if err != nil {
			return err
		}
		store, err := journal.New(gdb, logger)
		if err != nil {
			return err
		}
		emitters = append(emitters, store)
		eventLog = store
		logger.Info("event journal enabled", logging.MaskField("dsn", dsn))
	}

	if url := strings.TrimSpace(cfg.Webhook.URL); url != "" {
		dispatcher, err := webhooks.NewDispatcher(url, []byte(config.Secret(cfg.Webhook.SecretEnv)),
			webhooks.WithEventTypes(cfg.Webhook.Events...),
			webhooks.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		defer dispatcher.Close()
		emitters = append(emitters, dispatcher)
		logger.Info("webhook dispatcher enabled", logging.MaskField("endpoint", url), "events", cfg.Webhook.Events)
	}

	engine := supernode.NewEngine()
	engine.SetState(manager)
	engine.SetBank(ledger)
	engine.SetPauses(cfg.Pauses)
	engine.SetProtocolRecipient(cfg.ProtocolRecipientAddress())
	engine.SetEmitter(emitters)

	if path := cfg.ResolveGenesisPath(cfgPath); path != "" {
		if err := applyGenesis(path, engine, ledger, logger); err != nil {
			return err
		}
	}

	authToken := config.Secret(cfg.RPC.AuthTokenEnv)
	if authToken == "" {
		logger.Warn("rpc auth token not set; staking signals and faucet are disabled", "env", cfg.RPC.AuthTokenEnv)
	} else {
		logger.Info("rpc auth token loaded", "env", cfg.RPC.AuthTokenEnv, "token", logging.MaskValue(authToken))
	}
	server := rpc.NewServer(engine, rpc.Options{
		Bank:      ledger,
		Digester:  manager,
		Journal:   eventLog,
		Stream:    stream,
		Logger:    logger,
		AuthToken: authToken,
		Identity:  rpc.SubjectIdentity(middleware.SubjectFrom),
	})

	jwtSecret := config.Secret(cfg.RPC.JWTSecretEnv)
	if jwtSecret == "" {
		logger.Warn("gateway JWT secret not set; account-bound methods accept only the static token", "env", cfg.RPC.JWTSecretEnv)
	}
	rateLimits := map[string]middleware.RateLimit{}
	if cfg.RPC.RateLimitPerSec > 0 {
		limit := middleware.RateLimit{RequestsPerSecond: cfg.RPC.RateLimitPerSec, Burst: cfg.RPC.RateLimitBurst}
		rateLimits[routes.LimitRPC] = limit
		rateLimits[routes.LimitExports] = limit
	}
	router, err := routes.New(routes.Config{
		Ledger: server,
		HealthCheck: func(context.Context) error {
			_, err := engine.Pools()
			return err
		},
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:        jwtSecret != "",
			AllowAnonymous: true,
			HMACSecret:     jwtSecret,
			Issuer:         cfg.RPC.JWTIssuer,
			Audience:       cfg.RPC.JWTAudience,
			OptionalPaths:  []string{"/healthz", "/metrics"},
		}, logger),
		RateLimiter:   middleware.NewRateLimiter(rateLimits, logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{ServiceName: serviceName, LogRequests: true}, logger),
		CORS:          middleware.CORSConfig{AllowedOrigins: cfg.RPC.AllowedOrigins},
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      router,
		ReadTimeout:  cfg.RPC.ReadTimeout.Duration,
		WriteTimeout: cfg.RPC.WriteTimeout.Duration,
	}
	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return err
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", listener.Addr().String(), "storage", cfg.StorageBackend)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RPC.ShutdownTimeout.Duration)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	logger.Info("stopped")
	return nil
}

func applyGenesis(path string, engine *supernode.Engine, ledger *bank.Ledger, logger *slog.Logger) error {
	genesis, err := config.LoadGenesis(path)
	if err != nil {
		return err
	}
	created, err := genesis.Apply(engine, ledger)
	if errors.Is(err, config.ErrGenesisApplied) {
		logger.Info("genesis skipped; ledger already initialised", "path", path)
		return nil
	}
	if err != nil {
		return err
	}
	for _, addr := range created {
		logger.Info("genesis pool created", "pool", addr.Hex())
	}
	return nil
}
