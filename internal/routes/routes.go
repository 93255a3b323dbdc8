package routes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/fundauth/internal/caller"
	"github.com/congo-pay/fundauth/internal/config"
	"github.com/congo-pay/fundauth/internal/custody"
	"github.com/congo-pay/fundauth/internal/events"
	"github.com/congo-pay/fundauth/internal/middleware"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		// plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	ctx := context.Background()

	var store custody.Store
	if d.DB != nil {
		store = custody.NewPostgresStore(d.DB)
	} else {
		d.Logger.Warn("DATABASE_URL not set, ledger state is kept in memory")
		store = custody.NewMemoryStore()
	}

	publishers := events.Fanout{events.NewLoggerPublisher(d.Logger)}
	if d.Cache != nil {
		publishers = append(publishers, events.NewRedisStreamPublisher(d.Cache, 0))
	}

	ledger, err := custody.New(ctx, store, d.Cfg.LedgerAddress, d.Cfg.OwnerAddress,
		custody.WithPublisher(publishers),
		custody.WithLogger(d.Logger),
	)
	if err != nil {
		return err
	}

	callers := caller.NewService(caller.NewMemoryRepository())
	if err := callers.Seed(ctx, d.Cfg.CallerCredentials); err != nil {
		return fmt.Errorf("seed caller credentials: %w", err)
	}
	if len(d.Cfg.CallerCredentials) == 0 {
		d.Logger.Warn("no CALLER_CREDENTIALS configured, mutating endpoints will reject every caller")
	}

	d.Logger.Info("ledger ready",
		slog.String("identity", ledger.Identity().Hex()),
		slog.String("owner", ledger.Owner().Hex()),
		slog.Int("callers", len(d.Cfg.CallerCredentials)))

	handler := custody.NewHandler(ledger, d.Cfg.UnitDecimals)

	api := app.Group("/api/v1")
	RegisterPingRoute(api)
	RegisterLedgerRoutes(api, handler, ledgerGuards{
		auth:        middleware.CallerAuth(callers),
		idempotency: idempotency(d),
		rateLimit:   middleware.CallerRateLimit(d.Cache, d.Cfg.TransferRateLimit, d.Logger),
	})

	return nil
}

func idempotency(d Deps) fiber.Handler {
	if d.Cache == nil {
		return nil
	}
	return middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
}
