// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/rueidis"

	router "wallet-ledger/internal/api"
	"wallet-ledger/internal/api/handler"
	"wallet-ledger/internal/catalog"
	"wallet-ledger/internal/config"
	"wallet-ledger/internal/fraud"
	"wallet-ledger/internal/gateway"
	"wallet-ledger/internal/metrics"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/repository/memory"
	"wallet-ledger/internal/repository/postgres"
	"wallet-ledger/internal/resilience"
	"wallet-ledger/internal/service"
	"wallet-ledger/internal/util"
	"wallet-ledger/internal/worker"
	"wallet-ledger/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB
	Redis  rueidis.Client
	AMQP   *amqp.Connection

	// Repositories
	AccountRepository     repository.AccountRepository
	TransactionRepository repository.TransactionRepository
	TransferRepository    repository.TransferRepository
	TopUpRepository       repository.TopUpRepository
	ReservationRepository repository.ReservationRepository
	Catalog               catalog.StockCatalog

	// Services
	Mutator      *service.BalanceMutator
	Engine       *service.TransactionEngine
	Accounts     *service.AccountService
	Transfers    *service.TransferCoordinator
	TopUps       *service.TopUpService
	Reservations *service.ReservationManager
	Purchases    *service.PurchaseService

	// Background workers. Consumer is nil when AMQP is not configured.
	Sweeper  *worker.ReservationSweeper
	Consumer *gateway.Consumer

	Metrics *metrics.PrometheusCollector

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{Logger: util.GetLogger()}
}

// storage is the storage-dependent part of the wiring.
type storage struct {
	beginner db.DBTxBeginner
	executor repository.DBExecutor
	beginTx  db.BeginTxFunc
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger(cfg.LogLevel)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.", "storage", cfg.Storage, "transfer_mode", cfg.Ledger.TransferMode)

	// 3. Metrics
	app.Metrics = metrics.NewPrometheusCollector(cfg.MetricsNamespace)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := app.Metrics.Register(registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// 4. Storage and repositories
	st, err := app.initStorage(ctx)
	if err != nil {
		return err
	}
	app.Logger.Info("Repositories initialized.")

	// 5. External collaborators
	scorer, err := app.initScorer(ctx)
	if err != nil {
		return err
	}
	var gatewayClient gateway.Client
	if cfg.Gateway.BaseURL != "" {
		breakerCfg := resilience.DefaultConfig()
		breakerCfg.Timeout = cfg.Gateway.Timeout
		gatewayClient = gateway.NewHTTPClient(
			cfg.Gateway.BaseURL,
			cfg.Gateway.APIKey,
			&http.Client{Timeout: cfg.Gateway.Timeout},
			resilience.NewBreaker("payment_gateway", breakerCfg, app.Metrics, app.Logger),
		)
	}

	// 6. Initialize Services
	app.Mutator = service.NewBalanceMutator(
		st.beginner,
		app.AccountRepository,
		service.NewAccountLocks(cfg.Ledger.AccountLockStripes),
		st.beginTx,
		db.CommitTx,
		db.RollbackTx,
	)
	app.Engine = service.NewTransactionEngine(
		st.executor,
		app.AccountRepository,
		app.TransactionRepository,
		app.Mutator,
		scorer,
		nil,
		service.EngineConfig{
			CodeMaxAttempts:     cfg.Ledger.CodeMaxAttempts,
			AuditFailedAttempts: cfg.Ledger.AuditFailedAttempts,
			FraudReviewAmount:   cfg.Fraud.ReviewAmount,
		},
		app.Metrics,
		app.Logger,
	)
	app.Accounts = service.NewAccountService(st.executor, app.AccountRepository, app.Mutator, app.Logger)
	app.Transfers = service.NewTransferCoordinator(
		st.executor,
		app.AccountRepository,
		app.TransferRepository,
		app.Engine,
		service.ParseTransferMode(cfg.Ledger.TransferMode),
		nil,
		cfg.Ledger.CodeMaxAttempts,
		app.Metrics,
		app.Logger,
	)
	app.TopUps = service.NewTopUpService(
		st.executor,
		app.AccountRepository,
		app.TopUpRepository,
		app.Engine,
		gatewayClient,
		nil,
		cfg.Ledger.CodeMaxAttempts,
		app.Metrics,
		app.Logger,
	)
	app.Reservations = service.NewReservationManager(
		app.ReservationRepository,
		app.Catalog,
		cfg.Reservation.DefaultTTL,
		nil,
		app.Metrics,
		app.Logger,
	)
	app.Purchases = service.NewPurchaseService(app.Reservations, app.Engine, app.Logger)
	app.Logger.Info("Services initialized.")

	// 7. Background workers
	app.Sweeper = worker.NewReservationSweeper(app.Reservations, cfg.Reservation.SweepInterval, app.Logger)
	if cfg.AMQP.URL != "" {
		conn, err := gateway.Dial(cfg.AMQP.URL)
		if err != nil {
			return err
		}
		app.AMQP = conn
		app.Consumer = gateway.NewConsumer(conn, cfg.AMQP.Queue, cfg.AMQP.Prefetch, app.TopUps, app.Metrics, app.Logger)
	}

	// 8. Initialize HTTP Handlers and Router
	app.HTTPHandler = router.NewRouter(router.Handlers{
		Accounts:     handler.NewAccountHandler(app.Accounts, app.Engine, app.Logger),
		Transfers:    handler.NewTransferHandler(app.Transfers, app.Logger),
		TopUps:       handler.NewTopUpHandler(app.TopUps, app.Logger),
		Reservations: handler.NewReservationHandler(app.Reservations, app.Purchases, app.Logger),
		Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

func (app *Application) initStorage(ctx context.Context) (storage, error) {
	if app.Config.Storage == config.StorageMemory {
		store := memory.NewStore()
		app.AccountRepository = store
		app.TransactionRepository = store
		app.TransferRepository = store
		app.TopUpRepository = store
		app.ReservationRepository = memory.NewReservationStore()
		app.Catalog = catalog.NewStaticCatalog(app.Config.Reservation.SeedStock)
		app.Logger.Warn("Using in-memory storage; data is lost on restart.")
		return storage{executor: store, beginTx: memory.BeginTx}, nil
	}

	database, err := db.NewPostgresDB(ctx, app.Config.DB)
	if err != nil {
		return storage{}, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	if app.Config.AutoMigrate {
		if err := postgres.ApplySchema(ctx, database); err != nil {
			return storage{}, err
		}
		app.Logger.Info("Database schema applied.")
	}

	app.AccountRepository = postgres.NewAccountRepository()
	app.TransactionRepository = postgres.NewTransactionRepository()
	app.TransferRepository = postgres.NewTransferRepository()
	app.TopUpRepository = postgres.NewTopUpRepository()
	app.ReservationRepository = postgres.NewReservationRepository(database)
	app.Catalog = catalog.NewPostgresCatalog(database)
	return storage{beginner: database, executor: database, beginTx: db.BeginTx}, nil
}

// initScorer returns nil when fraud scoring is disabled. Postgres deployments
// count velocity in Redis; memory deployments count in-process.
func (app *Application) initScorer(ctx context.Context) (fraud.Scorer, error) {
	cfg := app.Config
	if !cfg.Fraud.Enabled {
		return nil, nil
	}

	var counter fraud.VelocityCounter = fraud.NewMemoryVelocityCounter()
	if cfg.Storage == config.StoragePostgres {
		client, err := fraud.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		app.Redis = client
		counter = fraud.NewRedisVelocityCounter(client, "ledger:velocity:")
	}

	breakerCfg := resilience.DefaultConfig()
	breakerCfg.Timeout = cfg.Fraud.Timeout
	return fraud.NewGuardedScorer(
		fraud.NewVelocityScorer(counter, fraud.Thresholds{
			VerifyAmount: cfg.Fraud.VerifyAmount,
			ReviewAmount: cfg.Fraud.ReviewAmount,
			BlockAmount:  cfg.Fraud.BlockAmount,
			Window:       cfg.Fraud.Window,
			MaxPerWindow: cfg.Fraud.MaxPerWindow,
		}),
		resilience.NewBreaker("fraud_scorer", breakerCfg, app.Metrics, app.Logger),
	), nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.AMQP != nil {
		if err := app.AMQP.Close(); err != nil {
			app.Logger.Warn("Failed to close AMQP connection", "error", err)
		}
	}
	if app.Redis != nil {
		app.Redis.Close()
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
