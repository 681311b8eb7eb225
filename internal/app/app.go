// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/songline/internal/config"
	"github.com/bissquit/songline/internal/lyrics"
	lyricspostgres "github.com/bissquit/songline/internal/lyrics/postgres"
	lyricsredis "github.com/bissquit/songline/internal/lyrics/redis"
	"github.com/bissquit/songline/internal/notifications"
	notificationspostgres "github.com/bissquit/songline/internal/notifications/postgres"
	"github.com/bissquit/songline/internal/notifications/telegram"
	"github.com/bissquit/songline/internal/notifications/webhook"
	"github.com/bissquit/songline/internal/pkg/ctxlog"
	"github.com/bissquit/songline/internal/pkg/httputil"
	"github.com/bissquit/songline/internal/pkg/metrics"
	"github.com/bissquit/songline/internal/pkg/postgres"
	pkgredis "github.com/bissquit/songline/internal/pkg/redis"
	"github.com/bissquit/songline/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	redisClient "github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsInterval = 15 * time.Second

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	redis         *redisClient.Client
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	queue         *notifications.Queue
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	if cfg.Database.MigrateOnStart {
		if err := postgres.Migrate(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	var rdb *redisClient.Client
	if cfg.Redis.Enabled {
		rdb, err = pkgredis.Connect(connectCtx, pkgredis.Config{
			URL:             cfg.Redis.URL,
			PoolSize:        cfg.Redis.PoolSize,
			ConnectAttempts: cfg.Redis.ConnectAttempts,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		redis:         rdb,
		metricsCancel: metricsCancel,
	}

	router, err := app.setupRouter()
	if err != nil {
		app.closeStores()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	go app.collectMetrics(metricsCtx)

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown stops accepting requests, drains the notification queue into
// the dead-letter sink and closes the stores.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	// The queue dead-letters into postgres, so it closes before the pool.
	if a.queue != nil {
		if err := a.queue.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close notification queue: %w", err))
		}
	}

	a.closeStores()

	return errors.Join(errs...)
}

func (a *App) closeStores() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	a.db.Close()
}

func (a *App) collectMetrics(ctx context.Context) {
	a.recordMetrics()

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.recordMetrics()
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) recordMetrics() {
	metrics.RecordDBPoolMetrics(a.db)
	if a.redis != nil {
		metrics.RecordRedisPoolMetrics(a.redis)
	}
	if a.queue != nil {
		notifications.RecordQueueStats(a.queue.Stats())
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Queue returns the notification queue. Returns nil if notifications are disabled.
func (a *App) Queue() *notifications.Queue {
	return a.queue
}

func (a *App) setupRouter() (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Songline API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`))
	})

	lyricsHandler := a.setupLyrics()

	notificationsHandler, err := a.setupNotifications()
	if err != nil {
		return nil, err
	}

	r.Route("/api/v1", func(r chi.Router) {
		lyricsHandler.RegisterRoutes(r)
		if notificationsHandler != nil {
			notificationsHandler.RegisterRoutes(r)
		}
	})

	return r, nil
}

func (a *App) setupLyrics() *lyrics.Handler {
	lc := a.config.Lyrics

	// A nil *Cache must not reach the service as a non-nil interface.
	var cache lyrics.SectionCache
	if a.redis != nil {
		cache = lyricsredis.NewCache(a.redis, lc.CacheTTL)
	}

	segmenter := lyrics.NewSegmenter(lyrics.Heuristics{
		ChorusKeywords:     lc.ChorusKeywords,
		RepetitionRatio:    lc.RepetitionRatio,
		RepetitionMinWords: lc.RepetitionMinWords,
		PreChorusMaxLength: lc.PreChorusMaxLength,
	})

	service := lyrics.NewService(lyricspostgres.NewRepository(a.db), cache, segmenter).
		WithWindowSize(lc.WindowSize)

	slog.Info("lyrics configured",
		"cache_enabled", cache != nil,
		"cache_ttl", lc.CacheTTL,
		"window_size", lc.WindowSize,
	)
	return lyrics.NewHandler(service)
}

func (a *App) setupNotifications() (*notifications.Handler, error) {
	nc := a.config.Notifications

	slog.Info("notifications configured",
		"enabled", nc.Enabled,
		"telegram_enabled", nc.Telegram.Enabled,
		"webhook_enabled", nc.Webhook.URL != "",
		"dead_letter_store", nc.DeadLetter.Store,
	)

	if !nc.Enabled {
		return nil, nil
	}

	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}

	telegramSender, err := telegram.NewSender(telegram.Config{
		Enabled:     nc.Telegram.Enabled,
		BotToken:    nc.Telegram.BotToken,
		RateLimit:   nc.Telegram.RateLimit,
		APIEndpoint: nc.Telegram.APIEndpoint,
		Timeout:     nc.Telegram.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram sender: %w", err)
	}

	webhookSender := webhook.NewSender(webhook.Config{
		URL:     nc.Webhook.URL,
		Token:   nc.Webhook.Token,
		Timeout: nc.Webhook.Timeout,
	})

	dispatcher := notifications.NewDispatcher(renderer, telegramSender, webhookSender)

	var deadLetters notifications.DeadLetterSink
	switch nc.DeadLetter.Store {
	case config.DeadLetterStoreMemory:
		deadLetters = notifications.NewMemoryDeadLetters(nc.DeadLetter.MemoryCapacity)
	default:
		deadLetters = notificationspostgres.NewDeadLetterRepository(a.db)
	}

	a.queue = notifications.NewQueue(notifications.QueueConfig{
		MaxRetries:          nc.Queue.MaxRetries,
		RetryDelays:         nc.Queue.RetryDelays,
		InterItemDelay:      nc.Queue.InterItemDelay,
		CircuitOpenPause:    nc.Queue.CircuitOpenPause,
		BreakerThreshold:    nc.CircuitBreaker.Threshold,
		BreakerResetTimeout: nc.CircuitBreaker.ResetTimeout,
	}, dispatcher, deadLetters)

	notifier := notifications.NewNotifier(a.queue)
	return notifications.NewHandler(notifier, a.queue), nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
			httputil.Text(w, http.StatusServiceUnavailable, "Redis unavailable")
			return
		}
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Info())
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
