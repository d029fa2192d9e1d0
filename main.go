package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/reisinl/veg-shop/internal/config"
	grpcapi "github.com/reisinl/veg-shop/internal/delivery/grpc"
	httpapi "github.com/reisinl/veg-shop/internal/delivery/http"
	"github.com/reisinl/veg-shop/internal/messaging"
	"github.com/reisinl/veg-shop/internal/messaging/kafka"
	"github.com/reisinl/veg-shop/internal/messaging/watermill"
	"github.com/reisinl/veg-shop/internal/pricing"
	"github.com/reisinl/veg-shop/internal/repository"
	"github.com/reisinl/veg-shop/internal/repository/memory"
	"github.com/reisinl/veg-shop/internal/repository/postgres"
	"github.com/reisinl/veg-shop/internal/service"
	"github.com/reisinl/veg-shop/internal/session"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Storage ---
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Seed {
		if err := seedShop(ctx, store); err != nil {
			return fmt.Errorf("failed to seed: %w", err)
		}
	}

	// --- Sessions ---
	var sessions session.Store
	if cfg.Session.Driver == "redis" {
		if sessions, err = session.NewRedisStore(ctx, cfg.Session.RedisURL, cfg.Session.TTL); err != nil {
			return err
		}
	} else {
		sessions = session.NewMemoryStore(cfg.Session.TTL)
	}
	defer sessions.Close()

	// --- Broker ---
	broker, err := openBroker(cfg.Broker, logger)
	if err != nil {
		return err
	}
	defer broker.Close()

	// --- Services ---
	threshold, err := cfg.Threshold()
	if err != nil {
		return err
	}
	engine := pricing.NewEngine(pricing.NewULIDNumbers())
	services := httpapi.Services{
		Auth:      service.NewAuthService(store, sessions),
		Catalog:   service.NewCatalogService(store),
		Orders:    service.NewOrderService(store, engine, broker),
		Payments:  service.NewPaymentService(store, broker),
		Customers: service.NewCustomerService(store),
		Reports:   service.NewReportService(store),
		Health:    store,
	}
	alert := service.NewStockAlert(store, threshold)

	// Consumer: orders.placed → StockAlert
	go broker.Consume(ctx, messaging.TopicOrdersPlaced, cfg.Broker.ConsumerGroup+"-stock-alert", alert.HandleOrderPlaced)

	// --- gRPC health ---
	health := grpcapi.NewHealthServer(store, 15*time.Second)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}
	go health.Watch(ctx)
	go func() {
		if err := health.Serve(lis); err != nil {
			slog.Error("gRPC server error", "err", err)
			cancel()
		}
	}()

	// --- HTTP API ---
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewHandler(services).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.Storage, "broker", cfg.Broker.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "err", err)
	}
	health.Stop()
	return nil
}

func newLogger(cfg config.Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func openStore(ctx context.Context, cfg config.Config) (repository.Store, error) {
	if cfg.Storage != "postgres" {
		slog.Info("Using in-memory storage")
		return memory.NewStore(), nil
	}
	db, err := postgres.InitDB(ctx, postgres.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	return postgres.NewStore(db), nil
}

func openBroker(cfg config.Broker, logger *slog.Logger) (messaging.Broker, error) {
	switch cfg.Driver {
	case "kafka":
		return kafka.NewKafkaBroker(cfg.Brokers), nil
	case "watermill-kafka":
		return watermill.NewKafka(cfg.Brokers, logger)
	case "memory":
		return watermill.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger), nil
	default:
		return messaging.Nop{}, nil
	}
}
