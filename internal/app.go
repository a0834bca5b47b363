// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	router "tapcash-pos/internal/api"
	"tapcash-pos/internal/api/handler"
	"tapcash-pos/internal/config"
	"tapcash-pos/internal/events"
	"tapcash-pos/internal/provider"
	"tapcash-pos/internal/repository"
	"tapcash-pos/internal/repository/postgres"
	"tapcash-pos/internal/service"
	"tapcash-pos/internal/util"
	"tapcash-pos/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB

	// Repositories
	ProductRepository   repository.ProductRepository
	WalletRepository    repository.WalletRepository
	IntentRepository    repository.IntentRepository
	ChallengeRepository repository.ChallengeRepository
	SaleRepository      repository.SaleRepository

	// Event publishing
	SalePublisher events.SalePublisher

	// Services
	StockGate            service.StockGate
	AuthorizationService service.AuthorizationService
	SettlementService    service.SettlementService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
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
	util.InitLogger()
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Run Migrations and Connect to Database
	if app.Config.MigrationsPath != "" {
		if err := db.RunMigrations(app.Config.DB, app.Config.MigrationsPath); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		app.Logger.Info("Database migrations applied.")
	}
	database, err := db.NewPostgresDB(app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	// 4. Initialize Repositories
	app.ProductRepository = postgres.NewProductRepository(app.DB)
	app.WalletRepository = postgres.NewWalletRepository(app.DB)
	app.IntentRepository = postgres.NewIntentRepository(app.DB)
	app.ChallengeRepository = postgres.NewChallengeRepository(app.DB)
	app.SaleRepository = postgres.NewSaleRepository(app.DB)
	app.Logger.Info("Repositories initialized.")

	// 5. External providers and event publisher
	pinVerifier := provider.NewHTTPPinVerifier(app.Config.CardAPIBaseURL)
	smsDispatcher := provider.NewHTTPSMSDispatcher(app.Config.SMSAPIBaseURL)
	momoClient := provider.NewHTTPMobileMoneyClient(app.Config.MomoAPIBaseURL)

	if len(app.Config.KafkaBrokers) > 0 {
		app.SalePublisher = events.NewKafkaPublisher(app.Config.KafkaBrokers, app.Config.KafkaSaleTopic, app.Logger)
		app.Logger.Info("Kafka sale publisher initialized.", "topic", app.Config.KafkaSaleTopic)
	} else {
		app.SalePublisher = events.NoopPublisher{}
		app.Logger.Info("No Kafka brokers configured; sale events disabled.")
	}

	// 6. Initialize Services
	// Pass the concrete db.BeginTx, db.CommitTx, db.RollbackTx functions from pkg/db
	app.StockGate = service.NewStockGate(app.DB, app.ProductRepository)
	app.AuthorizationService = service.NewAuthorizationService(
		app.DB, // This is the DBTxBeginner
		app.DB, // This is the DBExecutor
		app.IntentRepository,
		app.ChallengeRepository,
		pinVerifier,
		smsDispatcher,
		momoClient,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Config.PushTimeout,
		app.Config.PushPollInterval,
		app.Logger,
	)
	app.SettlementService = service.NewSettlementService(
		app.DB,
		app.DB,
		app.IntentRepository,
		app.WalletRepository,
		app.SaleRepository,
		app.StockGate,
		app.SalePublisher,
		app.Config.RewardShare,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger,
	)
	app.Logger.Info("Services initialized.")

	// 7. Initialize HTTP Handlers and Router
	checkoutHandler := handler.NewCheckoutHandler(app.AuthorizationService, app.DB, app.ProductRepository, app.Logger)
	salesHandler := handler.NewSalesHandler(app.SettlementService, app.StockGate, app.DB, app.ProductRepository, app.Logger)
	app.HTTPHandler = router.NewRouter(checkoutHandler, salesHandler, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.SalePublisher != nil {
		if err := app.SalePublisher.Close(); err != nil {
			app.Logger.Error("Failed to close sale publisher", "error", err)
		}
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
