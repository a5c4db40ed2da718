package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vouchpay/vouchpay/internal/catalog"
	"github.com/vouchpay/vouchpay/internal/config"
	"github.com/vouchpay/vouchpay/internal/dispute"
	"github.com/vouchpay/vouchpay/internal/escrow"
	"github.com/vouchpay/vouchpay/internal/ledger"
	"github.com/vouchpay/vouchpay/internal/middleware"
	"github.com/vouchpay/vouchpay/internal/notification"
	"github.com/vouchpay/vouchpay/internal/order"
	"github.com/vouchpay/vouchpay/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Wiring exposes the constructed services the process needs outside the
// HTTP surface, notably for the deadline sweeper.
type Wiring struct {
	Orders    *order.Service
	OrderRepo order.Repository
	Wallets   *wallet.Service
	Ledger    ledger.Store
	Catalog   catalog.Catalog
}

// Setup configures middlewares and all application routes. Without a
// database everything runs on in-memory backends, which is how the test
// and local-dev surfaces are built.
func Setup(app *fiber.App, d Deps) (Wiring, error) {
	app.Use(recover.New())
	app.Use(middleware.RequestID())

	RegisterHealthRoutes(app, d)

	var (
		ledgerStore ledger.Store
		walletRepo  wallet.Repository
		escrowRepo  escrow.Repository
		orderRepo   order.Repository
		disputeRepo dispute.Repository
		products    catalog.Catalog
	)
	if d.DB != nil {
		ledgerStore = ledger.NewPostgresStore(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		escrowRepo = escrow.NewPostgresRepository(d.DB)
		orderRepo = order.NewPostgresRepository(d.DB)
		disputeRepo = dispute.NewPostgresRepository(d.DB)
		products = catalog.NewPostgresCatalog(d.DB)
	} else {
		ledgerStore = ledger.NewInMemory()
		walletRepo = wallet.NewMemoryRepository()
		escrowRepo = escrow.NewMemoryRepository()
		orderRepo = order.NewMemoryRepository()
		disputeRepo = dispute.NewMemoryRepository()
		products = catalog.NewMemoryCatalog()
	}

	var notifier notification.Notifier
	if d.Cache != nil {
		notifier = notification.NewRedisNotifier(d.Cache, notification.DefaultChannel)
	} else {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	walletSvc := wallet.NewService(walletRepo, ledgerStore)
	escrowMgr := escrow.NewManager(escrowRepo)
	orderSvc := order.NewService(order.Config{
		Repository:         orderRepo,
		Wallets:            walletSvc,
		Escrow:             escrowMgr,
		Catalog:            products,
		Disputes:           disputeRepo,
		Notifier:           notifier,
		Logger:             d.Logger,
		ServiceFeeBPS:      d.Cfg.ServiceFeeBPS,
		VerificationWindow: d.Cfg.VerificationWindow,
	})

	walletHandler := wallet.NewHandler(walletSvc)
	orderHandler := order.NewHandler(orderSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	protected := api.Group("", middleware.Authenticate(d.Cfg.IdentitySecret), middleware.Audit(d.Logger))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterWalletRoutes(protected, walletHandler)
	RegisterOrderRoutes(protected, orderHandler, middleware.PlacementRateLimit(d.Cache, d.Cfg.PlacementPerMin))
	RegisterDisputeRoutes(protected, orderHandler)

	return Wiring{
		Orders:    orderSvc,
		OrderRepo: orderRepo,
		Wallets:   walletSvc,
		Ledger:    ledgerStore,
		Catalog:   products,
	}, nil
}
