// Package server initializes and runs the main application server.
// It opens the database, applies migrations, configures the storage
// backends, and starts the HTTP server with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vkuznetsov-dev/cipherchat/internal/logging"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/config"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/httpapi"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/repositories/repomanager"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/services"
	"github.com/vkuznetsov-dev/cipherchat/internal/storage/blob"
	"github.com/vkuznetsov-dev/cipherchat/internal/storage/chunk"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB

	conversationService *services.ConversationService
	messageService      *services.MessageService
	transferService     *services.TransferService
}

// blobBackend is the whole-file storage plus the per-conversation
// directory provisioning hook.
type blobBackend interface {
	blob.Store
	services.StorageProvisioner
}

func newBlobBackend(ctx context.Context, cfg *config.Config, logger logging.Logger) (blobBackend, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendS3:
		return blob.NewS3Store(ctx, blob.S3Config{
			RootUser:     cfg.S3RootUser,
			RootPassword: cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
		}, logger)
	case config.BlobBackendFS:
		return blob.NewFSStore(cfg.StorageRoot, logger), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migrate error: %w", err)
	}

	blobs, err := newBlobBackend(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("blob backend init error: %w", err)
	}
	chunks := chunk.NewStore(cfg.StorageRoot, cfg.StrictChunkReads, logger)

	cs := services.NewConversationService(db, rm, blobs, logger)
	ms := services.NewMessageService(db, rm, blobs, chunks, logger)
	ts := services.NewTransferService(blobs, chunks, logger)

	return &App{
		config:              cfg,
		logger:              logger,
		db:                  db,
		conversationService: cs,
		messageService:      ms,
		transferService:     ts,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	handlers := httpapi.NewHandlers(
		app.conversationService,
		app.messageService,
		app.transferService,
		[]byte(app.config.SecretKey),
		app.logger,
	)

	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.config.ShutdownTimeout, handlers, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
}
