package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/bankledger/internal/bank"
	"github.com/congo-pay/bankledger/internal/config"
	"github.com/congo-pay/bankledger/internal/ledger"
	"github.com/congo-pay/bankledger/internal/middleware"
	"github.com/congo-pay/bankledger/internal/notification"
	"github.com/congo-pay/bankledger/internal/relay"
	"github.com/congo-pay/bankledger/internal/token"
	"github.com/congo-pay/bankledger/internal/whitelist"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Ledgers are the services mounted by Setup.
type Ledgers struct {
	Bank   *bank.Service
	Token  *token.Service
	Worker *relay.Worker
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Ledgers, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	ledgers, err := buildLedgers(context.Background(), d)
	if err != nil {
		return nil, err
	}

	// Mutations authenticate the caller first; rate limiting and
	// idempotency are then scoped to that identity.
	callerMW := []fiber.Handler{middleware.Caller(d.Cfg.CallerSecret)}
	if d.Cache != nil {
		callerMW = append(callerMW,
			middleware.RateLimit(d.Cache, d.Cfg.RateLimit),
			middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
		)
	}

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	RegisterBankRoutes(api.Group("/bank"), ledgers.Bank, callerMW)
	RegisterTokenRoutes(api.Group("/token"), ledgers.Token, callerMW)

	return ledgers, nil
}

func buildLedgers(ctx context.Context, d Deps) (*Ledgers, error) {
	cfg := d.Cfg

	var notifier notification.Notifier = notification.NewLoggerNotifier(d.Logger)
	if d.Cache != nil {
		notifier = notification.Multi{notifier, notification.NewRedisNotifier(d.Cache, notification.DefaultChannel)}
	}

	bankGate, err := whitelist.NewGate(cfg.BankOwner, whitelistStore(d.Cache, cfg.BankID))
	if err != nil {
		return nil, fmt.Errorf("bank whitelist: %w", err)
	}
	tokenGate, err := whitelist.NewGate(cfg.TokenOwner, whitelistStore(d.Cache, cfg.TokenID))
	if err != nil {
		return nil, fmt.Errorf("token whitelist: %w", err)
	}

	var (
		outbox relay.Queue = relay.NewMemoryQueue()
		relays             = relay.NewMemoryStore()
	)
	if d.Cache != nil {
		outbox = relay.NewRedisQueue(d.Cache)
	}
	if d.DB != nil {
		relays = relay.NewPostgresStore(d.DB)
	}

	bankSvc, err := bank.New(bank.Options{
		ID:       cfg.BankID,
		Gate:     bankGate,
		Balances: balanceStore(d.DB, cfg.BankID),
		Relays:   relays,
		Outbox:   outbox,
		Notifier: notifier,
		Logger:   d.Logger,
	})
	if err != nil {
		return nil, err
	}

	tokenSvc, err := token.New(token.Options{
		ID:       cfg.TokenID,
		Gate:     tokenGate,
		Balances: balanceStore(d.DB, cfg.TokenID),
		Notifier: notifier,
		Logger:   d.Logger,
	})
	if err != nil {
		return nil, err
	}
	if err := tokenSvc.RegisterReceiver(ctx, bankSvc.ID(), bankSvc); err != nil {
		return nil, fmt.Errorf("register bank as token receiver: %w", err)
	}

	worker := relay.NewWorker(tokenSvc.ID(), outbox, tokenSvc, bankSvc, d.Logger.With(slog.String("component", "relay-worker")))
	return &Ledgers{Bank: bankSvc, Token: tokenSvc, Worker: worker}, nil
}

func balanceStore(db *pgxpool.Pool, ledgerName string) ledger.Store {
	if db == nil {
		return ledger.NewInMemory()
	}
	return ledger.NewPostgresStore(db, ledgerName)
}

func whitelistStore(cache *redis.Client, ledgerName string) whitelist.Store {
	if cache == nil {
		return whitelist.NewMemoryStore()
	}
	return whitelist.NewRedisStore(cache, ledgerName)
}
