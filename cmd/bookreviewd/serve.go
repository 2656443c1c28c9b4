package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bookstore/services/reviews/internal/auth"
	"github.com/bookstore/services/reviews/internal/config"
	"github.com/bookstore/services/reviews/internal/db"
	"github.com/bookstore/services/reviews/internal/events"
	grpcserver "github.com/bookstore/services/reviews/internal/grpc"
	"github.com/bookstore/services/reviews/internal/httpapi"
	"github.com/bookstore/services/reviews/internal/metrics"
	"github.com/bookstore/services/reviews/internal/ratelimit"
	"github.com/bookstore/services/reviews/internal/rating"
	"github.com/bookstore/services/reviews/internal/repo"
	"github.com/bookstore/services/reviews/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const limiterIdleTimeout = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and gRPC health servers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, database, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()
		defer database.Close()

		return serve(cmd.Context(), cfg, log, database)
	},
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger, database *db.DB) error {
	log.Info("Book review service starting")

	log.Info("Running database migrations...")
	if err := db.RunMigrations(database); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	publisher, err := newPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()
	emitter := events.NewEmitter(publisher, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	bookRepo := repo.NewBookRepository(database, log)
	reviewRepo := repo.NewReviewRepository(database, log)
	userRepo := repo.NewUserRepository(database, log)
	metrics.RegisterCatalogGauges(reg, bookRepo.GetStats)

	aggregator := rating.NewAggregator(database, bookRepo, reviewRepo, log,
		rating.WithObserver(m),
		rating.WithNotifier(emitter),
	)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL, cfg.ServiceName)

	limiter := ratelimit.New(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst, limiterIdleTimeout)
	defer limiter.Stop()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := httpapi.NewHandler(httpapi.Deps{
		Books: service.NewBookService(database, bookRepo, reviewRepo, emitter, log),
		Reviews: service.NewReviewService(database, bookRepo, reviewRepo, aggregator, log,
			service.WithEvents(emitter),
			service.WithMutationRecorder(m),
		),
		Users:              service.NewUserService(userRepo, tokens, log),
		AuthLimiter:        limiter,
		Metrics:            m,
		Gatherer:           reg,
		DB:                 database,
		Publisher:          publisher,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Log:                log,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	grpcServer := grpcserver.NewServer(grpcserver.NewHealthServer(database, publisher, log), log)
	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen on gRPC port: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("Starting gRPC server", zap.String("address", grpcListener.Addr().String()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			return fmt.Errorf("serve gRPC: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		grpcServer.GracefulStop()
		return nil
	})

	err = g.Wait()
	emitter.Wait()
	log.Info("Server stopped")
	return err
}

// newPublisher connects to RabbitMQ, or returns a publisher that drops
// events when no broker is configured.
func newPublisher(cfg *config.Config, log *zap.Logger) (events.Publisher, error) {
	if cfg.RabbitMQURL == "" {
		log.Warn("RABBITMQ_URL not set, domain events are disabled")
		return events.NopPublisher{}, nil
	}

	log.Info("Connecting to RabbitMQ")
	publisher, err := events.NewRabbitPublisher(cfg.RabbitMQURL, log)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	return publisher, nil
}
