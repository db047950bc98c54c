package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tillbook/tillbook/internal/accounting"
	"github.com/tillbook/tillbook/internal/app"
	"github.com/tillbook/tillbook/internal/inventory"
	"github.com/tillbook/tillbook/internal/ledger"
	"github.com/tillbook/tillbook/internal/masterdata/customers"
	"github.com/tillbook/tillbook/internal/masterdata/suppliers"
	"github.com/tillbook/tillbook/internal/payments"
	"github.com/tillbook/tillbook/internal/platform/cache"
	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/procurement"
	"github.com/tillbook/tillbook/internal/sales"
	"github.com/tillbook/tillbook/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	store := db.NewPoolStore(pool)
	uow := db.NewManager(store, logger).WithDefaults(cfg.UOWTimeout, cfg.UOWMaxRetries)
	uow.SetCapabilities(db.ProbeCapabilities(ctx, store))

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
		redisClient = nil
	}

	ledgerRepo := ledger.NewRepository(store)
	ledgerService := ledger.NewService(ledgerRepo, uow, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	inventoryRepo := inventory.NewRepository(store)
	inventoryService := inventory.NewService(inventoryRepo, logger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	customersRepo := customers.NewRepository(store)
	customersService := customers.NewService(customersRepo, ledgerRepo, uow, logger)
	customersHandler := customers.NewHandler(logger, customersService)

	suppliersRepo := suppliers.NewRepository(store)
	suppliersService := suppliers.NewService(suppliersRepo, ledgerRepo, uow, logger)
	suppliersHandler := suppliers.NewHandler(logger, suppliersService)

	paymentsRepo := payments.NewRepository(store)
	paymentsService := payments.NewService(paymentsRepo, ledgerRepo, uow, logger)
	paymentsHandler := payments.NewHandler(logger, paymentsService)

	salesRepo := sales.NewRepository(store)
	salesService := sales.NewService(salesRepo, inventoryService, ledgerRepo, paymentsRepo, uow, logger)
	salesHandler := sales.NewHandler(logger, salesService)

	procurementRepo := procurement.NewRepository(store)
	procurementService := procurement.NewService(procurementRepo, inventoryService, ledgerRepo, uow, logger)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	reportCache := accounting.NewReportCache(redisClient, cfg.ReportCacheTTL)
	accountingRepo := accounting.NewRepository(store)
	accountingService := accounting.NewService(accountingRepo, uow, reportCache, logger)
	accountingHandler := accounting.NewHandler(logger, accountingService)

	var jobsHandler *jobs.Handler
	if redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobsClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init jobs client", slog.Any("error", err))
			os.Exit(1)
		}
		defer jobsClient.Close()
		jobsHandler = jobs.NewHandler(asynq.NewInspector(redisOpts), jobsClient, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		CustomersHandler:   customersHandler,
		SuppliersHandler:   suppliersHandler,
		LedgerHandler:      ledgerHandler,
		InventoryHandler:   inventoryHandler,
		SalesHandler:       salesHandler,
		PaymentsHandler:    paymentsHandler,
		ProcurementHandler: procurementHandler,
		AccountingHandler:  accountingHandler,
		JobsHandler:        jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
