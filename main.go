package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/stdworks-inc/stdworks-engine/pkg/auth"
	"github.com/stdworks-inc/stdworks-engine/pkg/config"
	"github.com/stdworks-inc/stdworks-engine/pkg/database"
	"github.com/stdworks-inc/stdworks-engine/pkg/handlers"
	"github.com/stdworks-inc/stdworks-engine/pkg/logging"
	"github.com/stdworks-inc/stdworks-engine/pkg/middleware"
	"github.com/stdworks-inc/stdworks-engine/pkg/repositories"
	"github.com/stdworks-inc/stdworks-engine/pkg/retry"
	"github.com/stdworks-inc/stdworks-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck // stdout sync failure at exit is harmless

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database_host", cfg.Database.Host),
		zap.String("database_name", cfg.Database.Database))

	ctx := context.Background()
	connString := cfg.Database.ConnectionString()

	// Migrations run over database/sql; the pgx stdlib driver shares the
	// same connection settings as the pool.
	sqlDB, err := sql.Open("pgx", connString)
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	// Postgres may still be starting when the engine comes up.
	var db *database.DB
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		var connErr error
		db, connErr = database.NewConnection(ctx, &database.Config{
			URL:             connString,
			MaxConnections:  cfg.Database.MaxConnections,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		return connErr
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	releaseRepo := repositories.NewReleaseRepository(db)
	nodeRepo := repositories.NewNodeRepository(db)
	batchRepo := repositories.NewBatchRepository(db)
	linkRepo := repositories.NewLinkRepository(db)
	lockRepo := repositories.NewLockRepository(db)
	userRepo := repositories.NewUserRepository(db)

	// Services
	releaseService := services.NewReleaseService(releaseRepo, logger)
	treeService := services.NewTreeService(releaseRepo, nodeRepo, logger)
	batchService := services.NewBatchService(batchRepo, logger)
	linkService := services.NewLinkService(releaseRepo, nodeRepo, batchRepo, linkRepo, logger)
	lockService := services.NewLockService(lockRepo, logger)
	spreadsheetService, err := services.NewSpreadsheetService(cfg.Upload.MappingsPath, logger)
	if err != nil {
		logger.Fatal("Failed to load spreadsheet mapping profiles", zap.Error(err))
	}

	// Auth
	authService := auth.NewAuthService(cfg.Auth.TokenSecret, cfg.Auth.EnableVerification)
	authMiddleware := auth.NewMiddleware(authService, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewReleasesHandler(releaseService, treeService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewNodesHandler(treeService, lockService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewWMSHandler(batchService, spreadsheetService, cfg.Upload.MaxBytes, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewLinksHandler(linkService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewLocksHandler(lockService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewUsersHandler(userRepo, logger).RegisterRoutes(mux, authMiddleware)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting stdworks-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
