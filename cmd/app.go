package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"bookwyrm/internal/config"
	"bookwyrm/internal/metrics"
	"bookwyrm/internal/preview"
	"bookwyrm/internal/repository"
	"bookwyrm/internal/service"
	"bookwyrm/internal/service/s3"
)

// app holds the wired dependencies shared by the commands.
type app struct {
	cfg    *config.Config
	db     *sqlx.DB
	logger *slog.Logger

	registry *prometheus.Registry

	books   *service.BookService
	photos  *service.PhotoService
	trash   *service.TrashService
	cleanup *service.CleanupService
	genres  *service.GenreService
	reading *service.ReadingService
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.NewConfig(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(conf config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(conf.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(conf.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := connectWithRetry(cfg.Database, 5, 5*time.Second, logger)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	blobs, err := newBlobStorage(cfg.S3, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry := metrics.NewRegistry()
	trashMetrics := metrics.NewTrash(registry)
	validate := validator.New()

	bookRepo := repository.NewBookRepository(db)
	photoRepo := repository.NewPhotoRepository(db)

	photoService := service.NewPhotoService(bookRepo, photoRepo, blobs, preview.NewGenerator(), cfg.Server.BaseURL, logger)
	trashService := service.NewTrashService(bookRepo, photoService, blobs, cfg.Trash.RetentionDays, trashMetrics, logger)

	return &app{
		cfg:      cfg,
		db:       db,
		logger:   logger,
		registry: registry,
		books:    service.NewBookService(bookRepo, photoService, validate, logger),
		photos:   photoService,
		trash:    trashService,
		cleanup: service.NewCleanupService(
			bookRepo,
			trashService,
			repository.NewLockRepository(db),
			cfg.Trash.LockTTL,
			trashMetrics,
			logger,
		),
		genres:  service.NewGenreService(repository.NewGenreRepository(db), validate, logger),
		reading: service.NewReadingService(repository.NewReadingDayRepository(db), logger),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}

func newBlobStorage(conf config.S3Config, logger *slog.Logger) (s3.Storage, error) {
	if !conf.Enabled() {
		logger.Warn("S3 is not configured, photos are kept in memory")
		return s3.NewMemoryStorage(), nil
	}
	client, err := s3.NewClient(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return client, nil
}

// connectWithRetry creates the database when it is missing, then connects,
// retrying while Postgres is still starting.
func connectWithRetry(conf config.DatabaseConfig, maxAttempts int, delay time.Duration, logger *slog.Logger) (*sqlx.DB, error) {
	if err := ensureDatabase(conf, logger); err != nil {
		logger.Warn("could not verify database existence", "database", conf.Name, "error", err)
	}

	var db *sqlx.DB
	var err error
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", conf.GetDSN())
		if err == nil {
			return db, nil
		}

		logger.Warn("failed to connect to database",
			"attempt", i+1,
			"max_attempts", maxAttempts,
			"error", err,
		)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxAttempts, err)
}

func ensureDatabase(conf config.DatabaseConfig, logger *slog.Logger) error {
	system := conf
	system.Name = "postgres"

	pgDB, err := sqlx.Connect("postgres", system.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres database: %w", err)
	}
	defer pgDB.Close()

	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", conf.Name)
	if err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		logger.Info("database does not exist, creating", "database", conf.Name)
		if _, err := pgDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(conf.Name)); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
	}
	return nil
}

func runMigrations(conf config.DatabaseConfig, logger *slog.Logger) error {
	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", conf.GetURL())
		if err == nil {
			break
		}
		logger.Warn("failed to create migrate instance", "attempt", i+1, "error", err)
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		logger.Warn("found dirty database state, forcing version", "version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ = m.Version()
	logger.Info("migrations applied", "version", version)
	return nil
}
