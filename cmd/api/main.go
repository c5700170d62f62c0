package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/books-fulfillment/cmd/api/auth"
	"github.com/books-fulfillment/cmd/api/book"
	"github.com/books-fulfillment/cmd/api/config"
	"github.com/books-fulfillment/cmd/api/database"
	"github.com/books-fulfillment/cmd/api/guard"
	bookhttp "github.com/books-fulfillment/cmd/api/http"
	"github.com/books-fulfillment/cmd/api/inmemory"
	"github.com/books-fulfillment/cmd/api/notifications"
	"github.com/books-fulfillment/cmd/api/objectstore"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := logrus.New()
	if err := run(logger); err != nil {
		logger.WithError(err).Error("books api stopped")
		os.Exit(1)
	}
}

func run(logger *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	opts := []book.Option{book.WithStorageTimeout(cfg.StorageTimeout)}
	var handlerOpts []bookhttp.HandlerOption

	if cfg.ObjectStorePath != "" {
		objects, err := objectstore.OpenBolt(cfg.ObjectStorePath, cfg.ObjectStoreBaseURL)
		if err != nil {
			return err
		}
		defer objects.Close()
		opts = append(opts, book.WithUploader(objects))
		handlerOpts = append(handlerOpts, bookhttp.WithObjects(objects))
	}

	mailer := notifications.NewMailer(cfg.NotificationsEnabled, cfg.NotificationsURL, cfg.NotificationsSender, cfg.ApprovalRecipients, &http.Client{})
	opts = append(opts, book.WithNotifier(mailer, cfg.NotificationsTimeout))

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting with redis: %w", err)
		}
		defer rdb.Close()
		opts = append(opts, book.WithSubmissionGuard(guard.NewRedis(rdb, cfg.OrderGuardTTL)))
	} else {
		opts = append(opts, book.WithSubmissionGuard(guard.NewLocal(cfg.OrderGuardTTL)))
	}

	verifier, err := newVerifier(cfg, logger)
	if err != nil {
		return err
	}

	bookService := book.NewService(repo, logger, opts...)
	bookHandler := bookhttp.NewBookHandler(bookService, verifier, logger, handlerOpts...)

	//create and init http server:
	server := bookhttp.NewServer(bookhttp.ServerConfig{Port: cfg.HTTPPort, RequestTimeout: cfg.HTTPRequestTimeout}, bookHandler)

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("unexpected http server error: %w", err)
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownRelease()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	if err := bookService.Wait(shutdownCtx); err != nil {
		logger.WithError(err).Warn("approval requests still in flight at shutdown")
	}
	logger.Info("graceful shutdown complete")
	return nil
}

/* Opens the configured store. The returned func releases it. */
func openRepository(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (book.Repository, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		store, err := inmemory.NewInMemoryStore()
		if err != nil {
			return nil, nil, fmt.Errorf("creating in-memory store: %w", err)
		}
		logger.Warn("using the in-memory store, data is lost on restart")
		return store, func() {}, nil
	}

	//connect to db:
	dbObject, err := database.ConnectDb(ctx, cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting with db: %w", err)
	}

	//apply migrations:
	store := database.NewStore(dbObject)
	err = database.MigrationUp(store, cfg.MigrationsPath)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		dbObject.Close()
		return nil, nil, fmt.Errorf("migrating: %w", err)
	}

	return store, func() { dbObject.Close() }, nil
}

func newVerifier(cfg config.Config, logger logrus.FieldLogger) (auth.Verifier, error) {
	if cfg.AuthMode == config.AuthDev {
		logger.Warn("dev auth mode trusts every bearer token, never use it in production")
		return auth.DevVerifier{}, nil
	}
	verifier, err := auth.LoadStaticVerifier(cfg.AuthTokensFile)
	if err != nil {
		return nil, fmt.Errorf("loading auth tokens: %w", err)
	}
	return verifier, nil
}
