package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/Proton-105/budget-bot/internal/bot"
	"github.com/Proton-105/budget-bot/internal/budget"
	"github.com/Proton-105/budget-bot/internal/database"
	apperrors "github.com/Proton-105/budget-bot/internal/errors"
	"github.com/Proton-105/budget-bot/internal/health"
	"github.com/Proton-105/budget-bot/internal/i18n"
	"github.com/Proton-105/budget-bot/internal/idempotency"
	"github.com/Proton-105/budget-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/budget-bot/internal/jobs/handlers"
	"github.com/Proton-105/budget-bot/internal/lifecycle"
	"github.com/Proton-105/budget-bot/internal/middleware"
	"github.com/Proton-105/budget-bot/internal/ratelimit"
	"github.com/Proton-105/budget-bot/internal/repository"
	"github.com/Proton-105/budget-bot/internal/state"
	"github.com/Proton-105/budget-bot/internal/usercache"
	"github.com/Proton-105/budget-bot/pkg/config"
	"github.com/Proton-105/budget-bot/pkg/graceful"
	"github.com/Proton-105/budget-bot/pkg/logger"
	"github.com/Proton-105/budget-bot/pkg/metrics"
	redisclient "github.com/Proton-105/budget-bot/pkg/redis"
)

const (
	cleanupInterval       = 10 * time.Minute
	phaseCollectInterval  = time.Minute
	rateLimitCleanupEvery = time.Minute
)

// app holds the wired components of a running bot process.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	bot    *bot.Bot
	server *graceful.Server
	probes *lifecycle.Probes
	rules  *ratelimit.Rules

	shutdown *lifecycle.Shutdown
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		log:      log,
		shutdown: lifecycle.NewShutdown(log),
	}
	checker := health.NewChecker(log)

	db, err := a.openDatabase(ctx, checker)
	if err != nil {
		return a, err
	}

	var redisClient *goredis.Client
	if cfg.Redis.Enabled() {
		rc, err := redisclient.New(ctx, cfg.Redis)
		if err != nil {
			return a, err
		}
		redisClient = rc.Client
		checker.AddCheck("redis", health.NewRedisChecker(rc))
		a.shutdown.Register(lifecycle.PhaseClose, "redis", func(context.Context) error { return rc.Close() })
	}

	store := a.buildStore(db, redisClient)
	checker.AddCheck("store", store)

	var locker state.Locker = state.NewMemoryLocker(cfg.Lock.Wait)
	if redisClient != nil {
		locker = state.NewRedisLocker(redisClient, log, cfg.Lock.TTL, cfg.Lock.Wait)
	}

	service := budget.NewService(store, locker, log, budget.WithDefaultTimezone(cfg.Bot.DefaultTimezone))

	translations, err := i18n.Load(cfg.Bot.DefaultLanguage)
	if err != nil {
		return a, fmt.Errorf("load translations: %w", err)
	}

	b, err := bot.New(*cfg, log, bot.Dependencies{
		Service:      service,
		Translations: translations,
		Idempotency:  a.buildIdempotency(ctx, redisClient),
		RateLimit:    a.buildRateLimit(ctx, redisClient),
		ErrHandler:   apperrors.NewHandler(log, cfg.Sentry.Enabled),
	})
	if err != nil {
		return a, err
	}
	a.bot = b
	checker.AddCheck("telegram", health.NewTelegramChecker(b.Telebot()))
	a.shutdown.Register(lifecycle.PhaseDrain, "telegram", func(context.Context) error {
		b.Stop()
		return nil
	})

	if err := a.startStats(ctx, store, redisClient); err != nil {
		return a, err
	}

	a.probes = lifecycle.NewProbes(checker, log)
	a.server = graceful.NewServer(log, graceful.NewHTTPServer(cfg.Server.Addr(), a.routes()), cfg.Server.ShutdownTimeout)

	return a, nil
}

func (a *app) openDatabase(ctx context.Context, checker *health.Checker) (*sql.DB, error) {
	driver := database.Driver(a.cfg.Database.Driver)
	if !driver.IsSQL() {
		return nil, nil
	}

	db, err := database.Open(ctx, a.cfg.Database)
	if err != nil {
		return nil, err
	}
	a.shutdown.Register(lifecycle.PhaseClose, "database", func(context.Context) error { return db.Close() })

	if _, err := database.NewMigrator(db, driver, a.log).Up(ctx); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	checker.AddCheck("database", health.NewDBChecker(db))
	return db, nil
}

// buildStore layers the record store: durable backend, optional Redis
// read-through cache, then retries behind a circuit breaker.
func (a *app) buildStore(db *sql.DB, redisClient *goredis.Client) *repository.ResilientStore {
	var base budget.Store
	if db != nil {
		base = repository.NewRecordRepository(db, database.Driver(a.cfg.Database.Driver), a.log)
	} else {
		a.log.Warn("records are kept in memory and are lost on restart")
		base = repository.NewMemoryStore()
	}

	if redisClient != nil && a.cfg.Cache.TTL > 0 {
		base = repository.NewCachedStore(base, usercache.NewCache(redisClient, a.cfg.Cache.TTL), a.log)
	}

	breaker := repository.NewStoreBreaker(apperrors.WithStateChangeHook(func(from, to apperrors.State) {
		metrics.SetCircuitBreakerState(int(to))
		a.log.Warn("record store circuit breaker changed state",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}))

	return repository.NewResilientStore(base, breaker)
}

func (a *app) buildIdempotency(ctx context.Context, redisClient *goredis.Client) idempotency.Manager {
	var (
		store  idempotency.Store
		memory *idempotency.MemoryStore
	)
	if redisClient != nil {
		store = idempotency.NewRedisStore(redisClient, a.log)
	} else {
		memory = idempotency.NewMemoryStore()
		store = memory
	}

	go idempotency.NewCleaner(redisClient, memory, a.log, cleanupInterval, idempotency.DefaultTTL).Run(ctx)

	return idempotency.NewManager(store, a.log)
}

func (a *app) buildRateLimit(ctx context.Context, redisClient *goredis.Client) *middleware.RateLimitMiddleware {
	a.rules = ratelimit.NewRules(a.cfg.RateLimit)

	memory := ratelimit.NewMemoryLimiter(a.log)
	var limiter ratelimit.Limiter = memory
	if redisClient != nil {
		limiter = ratelimit.NewFailoverLimiter(ratelimit.NewRedisLimiter(redisClient, a.log), memory, a.log)
	}

	go ratelimit.NewCleaner(redisClient, memory, a.log, rateLimitCleanupEvery, a.rules.MaxWindow()).Run(ctx)

	return middleware.NewRateLimitMiddleware(limiter, a.rules, a.log)
}

// startStats keeps the per-phase record gauges current, through the
// asynq scheduler when jobs are enabled and an in-process ticker otherwise.
func (a *app) startStats(ctx context.Context, store *repository.ResilientStore, redisClient *goredis.Client) error {
	if !a.cfg.Jobs.Enabled || redisClient == nil {
		if a.cfg.Jobs.Enabled {
			a.log.Warn("background jobs need redis, falling back to in-process stats")
		}
		go metrics.NewPhaseCollector(store, phaseCollectInterval, a.log).Run(ctx)
		return nil
	}

	opts := redisClient.Options()
	redisOpt := asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}

	worker := jobs.NewWorker(redisOpt, jobs.Queues, a.log)
	worker.RegisterHandler(jobs.TaskTypeRecordsStats, jobhandlers.NewRecordsStatsHandler(store, a.log))
	if err := worker.Run(); err != nil {
		return fmt.Errorf("start jobs worker: %w", err)
	}

	scheduler := jobs.NewScheduler(redisOpt, a.log)
	if err := scheduler.RegisterTasks(a.cfg.Jobs.StatsCron); err != nil {
		worker.Shutdown()
		return fmt.Errorf("register jobs: %w", err)
	}
	scheduler.Run()

	manager := jobs.NewManager(redisOpt, a.log)
	if err := jobs.EnqueueRecordsStats(ctx, manager, time.Now()); err != nil {
		a.log.Warn("initial records stats run not queued", slog.Any("error", err))
	}

	a.shutdown.Register(lifecycle.PhaseDrain, "jobs", func(context.Context) error {
		scheduler.Shutdown()
		worker.Shutdown()
		return manager.Close()
	})

	return nil
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/healthz", a.probes.LivenessHandler())
	mux.Handle("/readyz", a.probes.ReadinessHandler())

	if webhook := a.bot.WebhookHandler(); webhook != nil {
		path := webhookPath(a.cfg.Bot.WebhookURL)
		mux.Handle(path, webhook)
		a.log.Info("telegram webhook mounted", slog.String("path", path))
	}

	return logger.Middleware(middleware.New(a.log)(mux))
}

// watchConfig applies log level and rate limit changes without a restart.
func (a *app) watchConfig(v *viper.Viper) {
	config.Watch(v, a.log, func(next *config.Config) {
		if err := logger.SetLevel(next.Logger.Level); err != nil {
			a.log.Warn("log level not changed", slog.Any("error", err))
		}
		if a.rules != nil {
			a.rules.Update(next.RateLimit)
		}
	})
}

// close releases connections of an app that never started serving.
func (a *app) close(ctx context.Context) {
	if err := a.shutdown.Run(ctx, lifecycle.PhaseClose); err != nil {
		a.log.Error("failed to release resources", slog.Any("error", err))
	}
}

func webhookPath(publicURL string) string {
	u, err := url.Parse(publicURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
