package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-swap/internal/bot"
	"github.com/Proton-105/himera-swap/internal/database"
	"github.com/Proton-105/himera-swap/internal/health"
	"github.com/Proton-105/himera-swap/internal/i18n"
	"github.com/Proton-105/himera-swap/internal/idempotency"
	"github.com/Proton-105/himera-swap/internal/jobs"
	jobhandlers "github.com/Proton-105/himera-swap/internal/jobs/handlers"
	"github.com/Proton-105/himera-swap/internal/lifecycle"
	"github.com/Proton-105/himera-swap/internal/market"
	"github.com/Proton-105/himera-swap/internal/middleware"
	"github.com/Proton-105/himera-swap/internal/orders"
	"github.com/Proton-105/himera-swap/internal/ratelimit"
	"github.com/Proton-105/himera-swap/internal/render"
	"github.com/Proton-105/himera-swap/internal/repository"
	"github.com/Proton-105/himera-swap/internal/session"
	"github.com/Proton-105/himera-swap/internal/swap"
	"github.com/Proton-105/himera-swap/internal/trading"
	"github.com/Proton-105/himera-swap/internal/user"
	"github.com/Proton-105/himera-swap/internal/usercache"
	"github.com/Proton-105/himera-swap/pkg/config"
	"github.com/Proton-105/himera-swap/pkg/graceful"
	"github.com/Proton-105/himera-swap/pkg/logger"
	"github.com/Proton-105/himera-swap/pkg/metrics"
	"github.com/Proton-105/himera-swap/pkg/redis"
)

const (
	collectorInterval  = 30 * time.Second
	cleanerInterval    = 10 * time.Minute
	idempotencyMaxTTL  = 24 * time.Hour
	rateLimitMaxAge    = time.Hour
	shutdownHookBudget = 30 * time.Second
)

func (rt *runtime) newServeCommand() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot, the order monitor and the metrics endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return rt.serve(ctx, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before starting")
	return cmd
}

// infra holds the connections every component shares.
type infra struct {
	redis  *redis.Client
	db     *sqlx.DB
	market *market.Client
}

func (rt *runtime) connect(ctx context.Context, migrate bool) (*infra, error) {
	cfg := rt.cfg

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}

	if migrate {
		if _, err := database.NewMigrator(db.DB, rt.log).Apply(ctx); err != nil {
			_ = db.Close()
			_ = rc.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	mkt, err := market.Dial(ctx, cfg.Market, rt.log)
	if err != nil {
		_ = db.Close()
		_ = rc.Close()
		return nil, err
	}

	return &infra{redis: rc, db: db, market: mkt}, nil
}

func (in *infra) close() {
	in.market.Close()
	_ = in.db.Close()
	_ = in.redis.Close()
}

func (rt *runtime) serve(ctx context.Context, migrate bool) error {
	cfg, log := rt.cfg, rt.log

	log.Info("starting himera-swap",
		slog.String("env", cfg.AppEnv),
		slog.String("bot_mode", cfg.Bot.Mode),
		slog.String("scheduler", cfg.Orders.Scheduler),
	)

	in, err := rt.connect(ctx, migrate)
	if err != nil {
		return err
	}
	started := false
	defer func() {
		if !started {
			in.close()
		}
	}()

	tb, err := bot.NewAPI(cfg.Bot, log)
	if err != nil {
		return err
	}

	sessions := session.NewRedisStorage(in.redis.Client, cfg.Session.TTL, log)
	store := orders.NewPostgresStore(in.db)
	executor := swap.NewHTTPExecutor(cfg.Executor, log)
	transport := render.NewTelebotTransport(tb)
	renderer := render.NewRenderer(transport, sessions, cfg.Orders.StoreTimeout, log)
	idem := idempotency.NewManager(idempotency.NewRedisStore(in.redis.Client, log), log)

	translations, err := i18n.LoadFromDir(cfg.Bot.LocalesDir, cfg.Bot.DefaultLang)
	if err != nil {
		return err
	}

	memLimiter := ratelimit.NewMemoryLimiter(log)
	limiter := ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(in.redis.Client, log), memLimiter, log)
	rateLimit := middleware.NewRateLimitMiddleware(limiter, ratelimit.NewRules(cfg.RateLimit), log)

	controller := trading.NewController(trading.Deps{
		Sessions:    sessions,
		Wallets:     repository.NewWalletRepository(in.db),
		Market:      in.market,
		Orders:      store,
		Executor:    executor,
		Renderer:    renderer,
		Idempotency: idem,
		Limiter:     rateLimit,
		I18n:        translations,
	}, trading.Config{
		NativeSymbol:     cfg.Market.NativeSymbol,
		CallTimeout:      cfg.Orders.StoreTimeout,
		ExecutionTimeout: cfg.Orders.ExecutionTimeout,
		BalanceBudget:    cfg.Market.BalanceTimeout,
	}, log)

	users := user.NewService(repository.NewUserRepository(in.db, log), usercache.NewCache(in.redis.Client, usercache.DefaultTTL), log)

	// Handlers outlive ctx so in-flight updates can finish while intake stops.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	b, err := bot.New(tb, bot.Deps{
		Conversation:   controller,
		Users:          users,
		Idempotency:    idem,
		RateLimit:      rateLimit,
		Serial:         middleware.NewSerial(),
		HandlerTimeout: cfg.Bot.HandlerTimeout,
		SentryEnabled:  cfg.Sentry.Enabled,
		BaseContext:    workCtx,
	}, log)
	if err != nil {
		return err
	}

	monitor := orders.NewMonitor(store, in.market, executor, transport, orders.MonitorConfig{
		LimitInterval:    cfg.Orders.LimitInterval,
		DCAInterval:      cfg.Orders.DCAInterval,
		MarketTimeout:    cfg.Orders.MarketTimeout,
		ExecutionTimeout: cfg.Orders.ExecutionTimeout,
		StoreTimeout:     cfg.Orders.StoreTimeout,
	}, log)

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(in.db.DB))
	checker.AddCheck("redis", health.NewRedisChecker(in.redis.Client))
	checker.AddCheck("telegram", health.NewTelegramChecker(tb))
	probes := lifecycle.NewProbes(checker.Ready, log)

	config.Watch(rt.viper, func(next *config.Config) {
		rt.level.Set(logger.ParseLevel(next.Logger.Level))
		log.Info("configuration reloaded", slog.String("log_level", next.Logger.Level))
	}, func(err error) {
		log.Warn("ignoring invalid configuration", slog.Any("error", err))
	})

	var background sync.WaitGroup
	spawn := func(name string, fn func(context.Context)) {
		background.Add(1)
		go func() {
			defer background.Done()
			fn(workCtx)
			log.Debug("background task stopped", slog.String("task", name))
		}()
	}

	spawn("session-collector", metrics.NewSessionCollector(sessions, collectorInterval).Run)
	spawn("idempotency-cleaner", idempotency.NewCleaner(in.redis.Client, log, cleanerInterval, idempotencyMaxTTL).Run)
	spawn("ratelimit-cleaner", ratelimit.NewCleaner(in.redis.Client, memLimiter, rateLimitMaxAge, log, cleanerInterval).Run)

	stopScans, err := rt.startScans(workCtx, monitor, spawn)
	if err != nil {
		return err
	}

	server := graceful.NewServer(log, ":"+cfg.HTTP.Port, map[string]http.Handler{
		"/metrics": promhttp.Handler(),
		"/healthz": checker.Handler(),
		"/livez":   lifecycle.Handler(probes.Liveness),
		"/readyz":  lifecycle.Handler(probes.Readiness),
	}, cfg.HTTP.ShutdownTimeout, logger.Middleware, middleware.New(log))

	serverDone := make(chan error, 1)
	serverCtx, stopServer := context.WithCancel(context.WithoutCancel(ctx))
	defer stopServer()
	go func() { serverDone <- server.ListenAndServe(serverCtx) }()

	started = true
	go b.Start()
	log.Info("bot started", slog.String("username", username(tb)))

	select {
	case <-ctx.Done():
	case err := <-serverDone:
		if err != nil {
			log.Error("http server stopped", slog.Any("error", err))
		}
	}

	probes.Drain()

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register(lifecycle.StageIntake, "telegram", func(context.Context) error {
		b.Stop()
		return nil
	})
	shutdown.Register(lifecycle.StageWorkers, "scans", stopScans)
	shutdown.Register(lifecycle.StageWorkers, "background", func(hookCtx context.Context) error {
		cancelWork()
		return wait(hookCtx, &background)
	})
	shutdown.Register(lifecycle.StageWorkers, "http", func(context.Context) error {
		stopServer()
		return nil
	})
	shutdown.Register(lifecycle.StageStores, "market", func(context.Context) error {
		in.market.Close()
		return nil
	})
	shutdown.Register(lifecycle.StageStores, "postgres", func(context.Context) error {
		return in.db.Close()
	})
	shutdown.Register(lifecycle.StageStores, "redis", func(context.Context) error {
		return in.redis.Close()
	})

	hookCtx, cancel := context.WithTimeout(context.Background(), shutdownHookBudget)
	defer cancel()
	return shutdown.Execute(hookCtx)
}

// startScans runs the monitor either on in-process tickers or as asynq periodic tasks.
// The returned func stops whatever was started.
func (rt *runtime) startScans(ctx context.Context, monitor *orders.Monitor, spawn func(string, func(context.Context))) (func(context.Context) error, error) {
	cfg, log := rt.cfg, rt.log

	if cfg.Orders.Scheduler != "asynq" {
		spawn("order-monitor", monitor.Run)
		return func(context.Context) error { return nil }, nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	scheduler := jobs.NewScheduler(redisOpt, jobs.Intervals{Limit: cfg.Orders.LimitInterval, DCA: cfg.Orders.DCAInterval}, log)
	if err := scheduler.RegisterTasks(); err != nil {
		return nil, err
	}

	worker := jobs.NewWorker(redisOpt, jobs.Queues, jobs.WorkerOptions{ShutdownTimeout: cfg.HTTP.ShutdownTimeout}, log)
	if err := jobhandlers.Register(worker, monitor, log); err != nil {
		return nil, err
	}

	manager := jobs.NewManager(redisOpt, log)
	if err := jobs.EnqueueScans(ctx, manager); err != nil {
		log.Warn("initial scan not queued", slog.Any("error", err))
	}

	scheduler.Run()
	go func() {
		if err := worker.Run(); err != nil {
			log.Error("jobs worker stopped", slog.Any("error", err))
		}
	}()

	return func(context.Context) error {
		scheduler.Shutdown()
		worker.Shutdown()
		return manager.Close()
	}, nil
}

func wait(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("background tasks did not stop in time")
	}
}

func username(tb *telebot.Bot) string {
	if tb == nil || tb.Me == nil {
		return ""
	}
	return tb.Me.Username
}
