package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/omc-erp/approval-engine/internal/application/dispatcher"
	appworkflow "github.com/omc-erp/approval-engine/internal/application/workflow"
	"github.com/omc-erp/approval-engine/internal/config"
	"github.com/omc-erp/approval-engine/internal/export"
	"github.com/omc-erp/approval-engine/internal/infrastructure/gateway"
	"github.com/omc-erp/approval-engine/internal/infrastructure/persistence/repository"
	"github.com/omc-erp/approval-engine/internal/infrastructure/persistence/sqlite"
	httpiface "github.com/omc-erp/approval-engine/internal/interfaces/http"
	"github.com/omc-erp/approval-engine/internal/worker"
	"github.com/omc-erp/approval-engine/pkg/database"
	"github.com/omc-erp/approval-engine/pkg/utils"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting approval workflow engine",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories and transaction manager
	txManager := sqlite.NewDB(db.DB, logger)
	definitionRepo := repository.NewDefinitionRepository(db.DB, logger)
	instanceRepo := repository.NewInstanceRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)

	// Gateways to collaborating services
	documentGateway := gateway.NewDocumentGateway(cfg.Gateways.DocumentServiceURL, cfg.Gateways.Timeout, logger)
	notificationGateway := gateway.NewNotificationGateway(cfg.Gateways.NotificationServiceURL, cfg.Gateways.Timeout, logger)

	// Event dispatcher
	eventDispatcher := dispatcher.New(dispatcher.WithLogger(utils.NewZapAdapter(logger.Named("dispatcher"))))
	defer eventDispatcher.Close()

	// Approval engine
	engine := appworkflow.NewEngine(
		definitionRepo,
		instanceRepo,
		historyRepo,
		txManager,
		documentGateway,
		notificationGateway,
		logger,
		appworkflow.WithDispatcher(eventDispatcher),
		appworkflow.WithDefaultSLA(cfg.Workflow.DefaultSLAHours),
	)

	reporter := export.NewAuditReporter(engine, logger)

	// Background workers
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerManager := worker.NewManager(logger)
	if cfg.Sweeper.Enabled {
		workerManager.Register(worker.NewEscalationSweeper(engine, cfg.Sweeper.Schedule, logger))
	}
	if err := workerManager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}
	defer workerManager.StopAll()

	// HTTP server
	server := httpiface.NewServer(httpiface.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, engine, reporter, utils.NewZapAdapter(logger.Named("http")))

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server exited with error", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
