package main

import (
	"context"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/example/comment-engine/internal/config"
	"github.com/example/comment-engine/internal/events"
	"github.com/example/comment-engine/internal/handlers"
	"github.com/example/comment-engine/internal/identity"
	"github.com/example/comment-engine/internal/platform/db"
	"github.com/example/comment-engine/internal/platform/httpserver"
	"github.com/example/comment-engine/internal/platform/logging"
	"github.com/example/comment-engine/internal/platform/run"
	"github.com/example/comment-engine/internal/store"
	"github.com/example/comment-engine/internal/tokens"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	st, ready, closeStore := initStore(cfg, log)
	if closeStore != nil {
		defer closeStore()
	}

	pub := events.New(nil, log)
	if cfg.NATSURL != "" {
		p, closeNATS, err := events.Connect(cfg.NATSURL, log)
		if err != nil {
			log.Warn("nats unavailable, events disabled", zap.Error(err))
		} else {
			pub = p
			defer closeNATS()
		}
	}

	apiHandlers := &handlers.API{
		Store:  st,
		Tokens: tokens.Service{Secret: []byte(cfg.SessionSecret)},
		Hasher: identity.New(cfg.HashSalt),
		Events: pub,
		Log:    log,
		Opts: handlers.Options{
			Moderated:       cfg.Moderation,
			OwnershipWindow: cfg.OwnershipWindow,
			LatestEnabled:   cfg.LatestEnabled,
		},
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: ready})
	apiHandlers.Routes(r)

	srv := httpserver.New(httpserver.Options{
		Addr:        cfg.HTTPAddr,
		ServiceName: cfg.ServiceName,
		Logger:      log,
		Router:      r,
	})

	// Age-based sweep of never-activated pending comments.
	sched := cron.New()
	_, err = sched.AddFunc(cfg.PurgeSchedule, func() {
		n, err := st.Purge(context.Background(), cfg.PurgeAfter)
		if err != nil {
			log.Error("purge sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			log.Info("purged stale pending comments", zap.Int("removed", n))
		}
	})
	if err != nil {
		log.Error("invalid purge schedule", zap.String("schedule", cfg.PurgeSchedule), zap.Error(err))
		run.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initStore selects the backend. Without DATABASE_URL the in-memory
// store is used, which only makes sense for development. The returned
// ready func backs /readyz.
func initStore(cfg config.Config, log *zap.Logger) (store.Store, func() error, func()) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store (development only)")
		return store.NewMemory(), nil, nil
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connect failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}

	pg := store.NewPostgres(pool)
	if err := pg.Init(ctx); err != nil {
		pool.Close()
		log.Error("schema init failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("store: postgres")
	ready := func() error { return pool.Ping(context.Background()) }
	return pg, ready, pool.Close
}
