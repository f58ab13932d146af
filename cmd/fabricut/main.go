package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/piwi3910/FabriCut/internal/client"
	"github.com/piwi3910/FabriCut/internal/config"
	"github.com/piwi3910/FabriCut/internal/database"
	"github.com/piwi3910/FabriCut/internal/engine"
	"github.com/piwi3910/FabriCut/internal/handler"
	"github.com/piwi3910/FabriCut/internal/logger"
	"github.com/piwi3910/FabriCut/internal/repository"
	"github.com/piwi3910/FabriCut/internal/risk"
	"github.com/piwi3910/FabriCut/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting FabriCut cutting planning service")

	settings, err := config.LoadSettings(cfg.Planning.SettingsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Planning.SettingsPath).Msg("Failed to load planning settings")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		HealthCheck: cfg.Database.HealthCheck,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	if cfg.Database.Migrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply schema")
		}
		log.Info().Msg("Database schema applied")
	}

	// Initialize repositories
	planRepo := repository.NewPlanRepository(db)
	sheetRepo := repository.NewSheetRepository(db)
	layPlanRepo := repository.NewLayPlanRepository(db)
	bundleRepo := repository.NewBundleRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	var orders client.OrderSource = orderRepo
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Address).Msg("Redis unreachable, order cache will fall through")
		}
		orders = client.NewCachedOrderLookup(orderRepo, rdb, cfg.Redis.OrderTTL, log.Logger)
		log.Info().Str("addr", cfg.Redis.Address).Dur("ttl", cfg.Redis.OrderTTL).Msg("Order cache enabled")
	}

	// Audit sinks
	sinks := []client.AuditSink{auditRepo}
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(cfg.Service.Name))
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.NATS.URL).Msg("Failed to connect to NATS")
		}
		publisher := client.NewAuditPublisher(nc, cfg.NATS.SubjectPrefix, log.Logger)
		defer publisher.Close()
		sinks = append(sinks, publisher)
		log.Info().Str("url", cfg.NATS.URL).Str("prefix", cfg.NATS.SubjectPrefix).Msg("Audit publisher connected")
	}
	audit := client.NewAuditDispatcher(log.Logger, 5*time.Second, sinks...)

	// Risk evaluation
	gate := risk.NewGate(nil)
	var evaluator risk.Evaluator = gate
	if cfg.Risk.RemoteAddr != "" {
		riskClient, err := risk.NewGRPCClient(cfg.Risk.RemoteAddr)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create risk gRPC client")
		}
		defer riskClient.Close()
		evaluator = riskClient.WithTimeout(cfg.Risk.Timeout)
		log.Info().Str("risk_grpc", cfg.Risk.RemoteAddr).Msg("Using remote risk assessment")
	}

	// Initialize services
	planService := service.NewCuttingPlanService(planRepo, orders, evaluator, audit, settings, log)
	sheetService := service.NewCuttingSheetService(sheetRepo, planRepo, evaluator, audit, log)
	layPlanService := service.NewLayPlanService(
		layPlanRepo, bundleRepo, batchRepo, orders,
		engine.NewMarkerEstimator(settings.LayPlan),
		evaluator, audit, log,
	)
	auditService := service.NewAuditService(auditRepo, log)

	handlers := handler.NewHandlers(planService, sheetService, layPlanService, auditService, db, log)
	router := handler.NewRouter(handlers, log, handler.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// The local rule table is always served so other services can share it
	grpcServer := grpc.NewServer()
	risk.RegisterAssessmentServer(grpcServer, risk.NewGRPCServer(gate, log.Logger))
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gRPC listener")
	}

	go func() {
		log.Info().Int("port", cfg.Server.GRPCPort).Msg("Starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Error().Err(err).Msg("gRPC server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	grpcServer.GracefulStop()

	// Let in-flight audit deliveries finish before the sinks close
	audit.Wait()

	log.Info().Msg("Server stopped")
}
