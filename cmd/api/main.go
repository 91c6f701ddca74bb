// cmd/api/main.go
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clip-tracker/internal/config"
	"clip-tracker/internal/handler"
	"clip-tracker/internal/logging"
	"clip-tracker/internal/player"
	"clip-tracker/internal/service"
	"clip-tracker/internal/session"
	"clip-tracker/internal/storage"
	"clip-tracker/internal/submission"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.Init(logging.Config{})
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := logging.Init(logging.Config{
		Level:       cfg.LogLevel,
		Pretty:      cfg.LogPretty,
		ServiceName: "clip-tracker",
	})

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("clip tracker stopped")
	}
}

// run wires the service and blocks until a shutdown signal or a server error.
// Setup failures are returned so the deferred closes still run.
func run(cfg *config.Config, logger zerolog.Logger) error {
	// ── Submission sinks ──────────────────────────────────────────────────────
	// The log sink is always on; Postgres, Redis and export are added when configured.
	sinks := submission.Multi{&submission.LogSink{Logger: logging.WithComponent(logger, "submission")}}

	if cfg.DatabaseURL != "" {
		db, err := openDatabase(cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		pg := &submission.PostgresSink{DB: db}
		if err := pg.EnsureSchema(context.Background()); err != nil {
			return fmt.Errorf("database schema: %w", err)
		}
		sinks = append(sinks, pg)
	}

	if cfg.RedisAddr != "" {
		rdb, err := openRedis(cfg)
		if err != nil {
			return err
		}
		defer rdb.Close()

		sinks = append(sinks, &submission.RedisSink{Client: rdb, Channel: cfg.RedisChannel})
		logger.Info().Str("channel", cfg.RedisChannel).Msg("publishing submissions to redis")
	}

	// ── Export storage (swappable: local today → S3 when STORAGE_TYPE=s3) ─────
	exports, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("export storage: %w", err)
	}
	sinks = append(sinks, &submission.ExportSink{Storage: exports})
	logger.Info().Str("type", cfg.Storage.Type).Msg("exporting submissions")

	// ── Services & Handlers ───────────────────────────────────────────────────
	sessions := session.NewManager(session.Config{
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})
	defer sessions.CloseAll()

	sessionService := &service.SessionService{
		Sessions:  sessions,
		Sinks:     sinks,
		Downloads: &submission.Downloader{Logger: logging.WithComponent(logger, "download")},
		Logger:    logging.WithComponent(logger, "service"),
	}

	editorHandler := &handler.EditorHandler{
		Service: sessionService,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		WS: player.WSConfig{
			PingInterval:   cfg.WS.PingInterval,
			PongWait:       cfg.WS.PongWait,
			WriteWait:      cfg.WS.WriteWait,
			MaxMessageSize: cfg.WS.MaxMessageSize,
		},
	}

	// ── Router ────────────────────────────────────────────────────────────────
	r := mux.NewRouter()
	r.Use(logging.HTTPMiddleware(logger))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "ok",
			"sessions": sessions.Len(),
		})
	}).Methods("GET")

	editorHandler.Routes(r.PathPrefix("/api/v1").Subrouter())

	// Serve local exports — with S3 the bucket serves them directly
	if cfg.Storage.Type == "local" {
		r.PathPrefix("/exports/").Handler(
			http.StripPrefix("/exports/", http.FileServer(http.Dir(cfg.Storage.Dir))),
		)
	}

	// ── CORS — read from env, not hardcoded ────────────────────────────────────
	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID", "Authorization"}),
	)

	// ── HTTP Server with timeouts ──────────────────────────────────────────────
	// Hijacked WebSocket connections are not subject to these timeouts.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      cors(r),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ── Graceful Shutdown ──────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("clip tracker running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}
	logger.Info().Msg("shutdown signal received, draining requests")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return nil
	}
	logger.Info().Msg("server stopped cleanly")
	return nil
}

func openDatabase(dbURL string, logger zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Fail fast rather than accepting submissions we cannot store
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	var dbName string
	if err := db.QueryRowContext(pingCtx, "SELECT current_database()").Scan(&dbName); err != nil {
		logger.Warn().Err(err).Msg("could not read database name")
	}
	logger.Info().Str("database", dbName).Msg("connected to database")
	return db, nil
}

func openRedis(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	return rdb, nil
}

func openStorage(cfg config.StorageConfig) (storage.Storage, error) {
	if cfg.Type == "s3" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UsePathStyle:    cfg.UsePathStyle,
			PublicURL:       cfg.PublicURL,
		})
	}
	return storage.NewLocalStorage(cfg.Dir, cfg.BaseURL)
}

// originChecker accepts WebSocket upgrades from the CORS origins only.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
