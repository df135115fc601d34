package main

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"receptionist-core/internal/audit"
	"receptionist-core/internal/auth"
	"receptionist-core/internal/config"
	"receptionist-core/internal/decision"
	"receptionist-core/internal/ingress"
	"receptionist-core/internal/routing"
	"receptionist-core/internal/signature"
	"receptionist-core/internal/speech"
	"receptionist-core/pkg/logger"
	"receptionist-core/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

const serviceName = "receptionist-core"

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, serviceName)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Service auth is optional: without a secret the /v1 group is open,
	// which is only acceptable on a private network.
	var authManager *auth.Manager
	if cfg.Auth.JWTSecret != "" {
		authManager, err = auth.NewManager(cfg.Auth)
		if err != nil {
			log.Error("auth init failed", "err", err)
			os.Exit(1)
		}
	} else {
		log.Warn("SERVICE_JWT_SECRET not set; /v1 endpoints are unauthenticated")
	}

	// Postgres backs the routing table only when selected as the source.
	var db *sql.DB
	if cfg.Routing.Source == "postgres" {
		db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	// Redis is optional: it shares call caps and utterance cancellation
	// across replicas. Single-replica deployments run without it.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.Redis.Addr})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	var source routing.Source
	switch cfg.Routing.Source {
	case "postgres":
		source = routing.NewPostgresSource(db)
	default:
		source = routing.NewFileSource(cfg.Routing.FilePath)
	}
	resolver := routing.NewResolver(source, log)

	verifier := signature.Verifier{
		Scheme:             signature.Scheme(cfg.Telephony.SignatureScheme),
		AuthToken:          cfg.Telephony.AuthToken,
		PublicKey:          ed25519.PublicKey(cfg.TelephonyPublicKey()),
		TimestampTolerance: cfg.Telephony.TimestampTolerance,
	}

	auditTrail := audit.NewService(audit.NewMemoryRepo())

	callCap := ingress.CallCap{RDB: rdb, Limit: cfg.Telephony.MaxConcurrentCalls}
	if callCap.Enabled() {
		log.Info("per-tenant call cap enabled", "limit", callCap.Limit)
	}

	var completions decision.CompletionProvider
	if cfg.LLM.APIKey != "" {
		completions = decision.NewOpenAIClient(cfg.LLM)
	} else {
		log.Warn("LLM_API_KEY not set; turn decisions use the deterministic fallback only")
	}
	engine := decision.NewEngine(completions, log)

	var cancels speech.CancelSet = speech.NewMemoryCancelSet()
	if rdb != nil {
		cancels = &speech.RedisCancelSet{RDB: rdb}
	}
	var synthesizer speech.Synthesizer
	if cfg.TTS.APIKey != "" {
		synthesizer = speech.NewElevenLabsClient(cfg.TTS)
	} else {
		log.Warn("ELEVENLABS_API_KEY not set; synthesis streams the fallback chunk only")
	}
	speechSvc := speech.NewService(synthesizer, cancels, log)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, apiDeps{
		authManager: authManager,
		db:          db,
		resolver:    resolver,
		verifier:    verifier,
		callCap:     callCap,
		audit:       auditTrail,
		engine:      engine,
		speech:      speechSvc,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
