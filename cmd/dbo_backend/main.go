package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"github.com/motormate/dealer_backoffice/internal/core/services"
	"github.com/motormate/dealer_backoffice/internal/handlers"
	"github.com/motormate/dealer_backoffice/internal/middleware"
	"github.com/motormate/dealer_backoffice/internal/repositories/database/pgsql"
	"github.com/motormate/dealer_backoffice/pkg/config"
	"github.com/motormate/dealer_backoffice/pkg/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize database connection pool (for application use)
	dbPool, err := database.NewPgxPool(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()
	logger.Info("Database connection pool established.")

	if err := runMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Error("Failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	rateLimiter := limiter.New(memorystore.NewStore(), limiter.Rate{
		Period: cfg.RateLimitPeriod,
		Limit:  cfg.RateLimitCount,
	})

	// Global middleware (logging, recovery, cors, rate limiting)
	r.Use(
		middleware.StructuredLoggingMiddleware(logger),
		gin.Recovery(),
		cors.Default(),
		middleware.RateLimit(rateLimiter),
	)

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	setupAPIV1Routes(r, dbPool)

	logger.Info("Server starting", slog.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Server failed to run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// runMigrations applies all available "up" migrations against the database.
func runMigrations(databaseURL string, logger *slog.Logger) error {
	logger.Info("Running database migrations...")

	// Temporary standard sql.DB connection for migrations, using the
	// pgx/v5/stdlib driver to stay compatible with the main pool.
	migrationDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()
	if err := migrationDB.Ping(); err != nil {
		return err
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return err
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}

	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		return sourceErr
	}
	if dbErr != nil {
		return dbErr
	}

	if err == migrate.ErrNoChange {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}

func setupAPIV1Routes(r *gin.Engine, dbPool *pgxpool.Pool) {
	v1 := r.Group("/api/v1")

	ledgerRepo := pgsql.NewLedgerRepository(dbPool)
	ledgerService := services.NewLedgerService(ledgerRepo)
	ledgerHandler := handlers.NewLedgerHandler(ledgerService)
	settlementHandler := handlers.NewSettlementHandler()

	ledger := v1.Group("/ledger")
	{
		ledger.POST("/deal-created", ledgerHandler.RecordDealCreated)
		ledger.POST("/deal-deleted", ledgerHandler.RecordDealDeleted)
		ledger.POST("/deal-cancelled", ledgerHandler.RecordDealCancelled)
		ledger.POST("/receipt-created", ledgerHandler.RecordReceiptCreated)
		ledger.POST("/receipt-deleted", ledgerHandler.RecordReceiptDeleted)
		ledger.POST("/bank-transfer-order-created", ledgerHandler.RecordBankTransferOrderCreated)
		ledger.POST("/bank-transfer-order-deleted", ledgerHandler.RecordBankTransferOrderDeleted)
		ledger.POST("/exchange-credit", ledgerHandler.RecordExchangeCarCredit)
		ledger.GET("/orphaned-deals", ledgerHandler.ListOrphanedDealRows)
	}

	customers := v1.Group("/customers")
	{
		customers.GET("/:customerID/balance", ledgerHandler.GetCustomerBalance)
		customers.GET("/:customerID/transactions", ledgerHandler.ListCustomerTransactions)
		customers.POST("/balances", ledgerHandler.GetCustomerBalances)
	}

	v1.POST("/settlement", settlementHandler.ComputeSettlement)
}
