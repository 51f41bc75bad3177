package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"bookwyrm/internal/handler"
	"bookwyrm/internal/metrics"
	"bookwyrm/internal/preview"
	"bookwyrm/internal/service"
)

var serveFlags struct {
	skipMigrations bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveFlags.skipMigrations, "skip-migrations", false, "do not apply migrations on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if !serveFlags.skipMigrations {
		if err := runMigrations(cfg.Database, logger); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := handler.NewRouter(handler.Routes{
		Books:      handler.NewBookHandler(a.books, logger),
		Trash:      handler.NewTrashHandler(a.trash, logger),
		Photos:     handler.NewPhotoHandler(a.photos, logger),
		Genres:     handler.NewGenreHandler(a.genres, logger),
		Reading:    handler.NewReadingStatsHandler(a.reading, logger),
		Health:     handler.NewHealthHandler(a.db),
		PhotoFiles: preview.NewHandler(a.photos, logger),
		Metrics:    metrics.Handler(a.registry),
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	health := handler.NewHealthReporter(a.db, 15*time.Second, logger)
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, health.Server())

	scheduler := service.NewCleanupScheduler(a.cleanup, cfg.Trash.Schedule, cfg.Trash.RetentionDays, logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Server.GRPCPort))
		if err != nil {
			return fmt.Errorf("failed to listen for gRPC: %w", err)
		}
		logger.Info("starting gRPC server", "port", cfg.Server.GRPCPort)
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		return health.Run(ctx)
	})

	g.Go(func() error {
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		scheduler.Stop()
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server forced to shutdown", "error", err)
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server exited properly")
	return nil
}
