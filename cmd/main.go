package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"reminder-agent/internal/badge"
	"reminder-agent/internal/config"
	"reminder-agent/internal/handlers"
	"reminder-agent/internal/logger"
	"reminder-agent/internal/manager"
	"reminder-agent/internal/mcptools"
	"reminder-agent/internal/notify"
	"reminder-agent/internal/scheduler"
	"reminder-agent/internal/storage"
	"reminder-agent/internal/timer"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", config.GetDefaultConfigPath(), "path to YAML config file")
	staticDir := flag.String("static", "", "directory to serve static files from (overrides http.static_dir)")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file (optional)")
	tlsKey := flag.String("tls-key", "", "path to TLS key file (optional)")
	storageType := flag.String("storage", "", "storage backend: memory, file, sqlite, postgres, mongo or redis (overrides storage.type)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *staticDir != "" {
		cfg.HTTP.StaticDir = *staticDir
	}
	if *tlsCert != "" {
		cfg.HTTP.TLSCert = *tlsCert
	}
	if *tlsKey != "" {
		cfg.HTTP.TLSKey = *tlsKey
	}
	if *storageType != "" {
		cfg.Storage.Type = *storageType
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error(ctx, "Reminder agent stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "Reminder agent stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	store, watch, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	coll := storage.NewCollection(store)
	defer coll.Close()

	var sched *scheduler.Scheduler
	timers := timer.NewLocal(func(name string) {
		sched.Post(scheduler.TimerFired{Name: name})
	})
	defer timers.Stop()

	local := notify.NewLocal()
	var notifiers notify.Multi
	if cfg.HasProvider(config.ProviderLocal) {
		notifiers = append(notifiers, local)
	}

	var telegram *notify.Telegram
	if cfg.HasProvider(config.ProviderTelegram) {
		tc := cfg.Notifications.Telegram
		telegram = notify.NewTelegram(tc.BotToken, tc.ChatID, tc.PollTimeout)
		notifiers = append(notifiers, telegram)
		logger.Info(ctx, "Telegram notifications enabled", "chat_id", tc.ChatID)
	}

	var kafka *notify.Kafka
	if cfg.HasProvider(config.ProviderKafka) {
		kc := cfg.Notifications.Kafka
		kafka = notify.NewKafka(kc.Brokers, kc.Topic, kc.ActionsTopic, kc.GroupID)
		defer kafka.Close()
		kafka.EnsureTopics(ctx, kc.Topic, kc.ActionsTopic)
		notifiers = append(notifiers, kafka)
		logger.Info(ctx, "Kafka notifications enabled", "brokers", kc.Brokers, "topic", kc.Topic)
	}

	indicator := badge.NewState()
	sched = scheduler.New(coll, timers, notifiers, indicator, nil, scheduler.Options{
		LeadTime:      cfg.Scheduler.LeadTime,
		Snooze:        cfg.Notifications.Snooze,
		Title:         cfg.Notifications.Title,
		HideZeroBadge: cfg.Badge.HideZero,
		DueColor:      cfg.Badge.DueColor,
		IdleColor:     cfg.Badge.IdleColor,
		UIURL:         cfg.HTTP.PublicURL,
	})
	mgr := manager.New(coll, notifiers, cfg.UI.YearsAhead)

	handlers.Manager = mgr
	handlers.Scheduler = sched
	handlers.Timers = timers
	handlers.Badge = indicator
	handlers.Notifications = local

	r := mux.NewRouter()
	handlers.RegisterRoutes(r)
	if cfg.MCP.Enabled {
		r.Handle(cfg.MCP.Path, mcptools.NewServer(mgr).HTTPHandler())
		logger.Info(ctx, "MCP tools enabled", "path", cfg.MCP.Path)
	}
	r.PathPrefix("/").Handler(staticHandler(cfg.HTTP.StaticDir))

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	interaction := func(in notify.Interaction) {
		sched.Post(scheduler.InteractionEvent(in))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(ctx)
	})
	if watch != nil {
		g.Go(func() error {
			return watch(ctx, coll.Changed)
		})
	}
	if telegram != nil {
		g.Go(func() error {
			return telegram.Poll(ctx, interaction)
		})
	}
	if kafka != nil {
		g.Go(func() error {
			return kafka.Consume(ctx, interaction)
		})
	}
	g.Go(func() error {
		tls := cfg.HTTP.TLSCert != "" && cfg.HTTP.TLSKey != ""
		logger.Info(ctx, "Starting reminder agent", "addr", cfg.HTTP.Addr, "tls", tls, "static_dir", cfg.HTTP.StaticDir, "storage", cfg.Storage.Type)
		var err error
		if tls {
			err = server.ListenAndServeTLS(cfg.HTTP.TLSCert, cfg.HTTP.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	sched.Post(scheduler.Startup{})
	return g.Wait()
}

// watchFunc feeds external storage writes back into the collection.
type watchFunc func(ctx context.Context, onChange func()) error

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, watchFunc, error) {
	sc := cfg.Storage
	switch sc.Type {
	case config.StorageMemory:
		logger.Info(ctx, "Using memory storage")
		return storage.NewMemoryStorage(), nil, nil
	case config.StorageFile:
		logger.Info(ctx, "Using file storage", "path", sc.File.Path, "watch", sc.File.Watch)
		fs := storage.NewFileStorage(sc.File.Path)
		if !sc.File.Watch {
			return fs, nil, nil
		}
		return fs, func(ctx context.Context, onChange func()) error {
			return storage.WatchFile(ctx, fs.Path(), onChange)
		}, nil
	case config.StorageSQLite:
		logger.Info(ctx, "Using SQLite storage", "path", sc.SQLite.Path)
		s, err := storage.NewSQLiteStorage(sc.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
		return s, nil, nil
	case config.StoragePostgres:
		logger.Info(ctx, "Using PostgreSQL storage")
		s, err := storage.NewPostgresStorage(sc.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize PostgreSQL storage: %w", err)
		}
		return s, nil, nil
	case config.StorageMongo:
		logger.Info(ctx, "Using MongoDB storage", "uri", sc.Mongo.URI, "database", sc.Mongo.Database)
		s, err := storage.NewMongoStorage(sc.Mongo.URI, sc.Mongo.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize MongoDB storage: %w", err)
		}
		return s, nil, nil
	case config.StorageRedis:
		logger.Info(ctx, "Using Redis storage", "url", sc.Redis.URL)
		s, err := storage.NewRedisStorage(sc.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Redis storage: %w", err)
		}
		return s, s.Watch, nil
	}
	return nil, nil, fmt.Errorf("invalid storage type: %s", sc.Type)
}

// staticHandler serves the management UI with explicit content types.
func staticHandler(dir string) http.Handler {
	staticFs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ext := filepath.Ext(req.URL.Path)
		if ext != "" {
			if ctype := mime.TypeByExtension(ext); ctype != "" {
				w.Header().Set("Content-Type", ctype)
			}
		}
		staticFs.ServeHTTP(w, req)
	})
}
