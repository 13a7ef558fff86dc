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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ttsudarshan/portfolio/auth"
	"github.com/ttsudarshan/portfolio/config"
	"github.com/ttsudarshan/portfolio/db"
	"github.com/ttsudarshan/portfolio/events"
	"github.com/ttsudarshan/portfolio/guestbook"
	"github.com/ttsudarshan/portfolio/health"
	"github.com/ttsudarshan/portfolio/http/middleware"
	"github.com/ttsudarshan/portfolio/hub"
	"github.com/ttsudarshan/portfolio/logger"
	"github.com/ttsudarshan/portfolio/messages"
	"github.com/ttsudarshan/portfolio/shell"
	"github.com/ttsudarshan/portfolio/storage"
	"github.com/ttsudarshan/portfolio/stream"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) > 1 {
		os.Exit(subcommand(cfg, os.Args[1], os.Args[2:]))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

// subcommand runs a one-shot maintenance command and returns the exit code.
func subcommand(cfg *config.Config, name string, args []string) int {
	switch name {
	case "healthcheck":
		if err := health.Check(context.Background(), fmt.Sprintf("127.0.0.1:%d", cfg.GRPCHealthPort)); err != nil {
			log.Error().Err(err).Msg("unhealthy")
			return 1
		}
		return 0
	case "hash-admin-key":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: portfolio hash-admin-key <key>")
			return 2
		}
		hash, err := auth.HashKey(args[0])
		if err != nil {
			log.Error().Err(err).Msg("failed to hash key")
			return 1
		}
		fmt.Println(hash)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
		return 2
	}
}

// run wires every component, serves until ctx is canceled and then shuts down.
func run(ctx context.Context, cfg *config.Config) error {
	l := logger.Component("main")

	// Create a context with timeout for initialization
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	photos, blobs, closeStores, err := openStores(initCtx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	var sink events.Sink
	if cfg.NATSURL != "" {
		natsSink, err := events.ConnectNATS(initCtx, cfg.NATSURL, cfg.NATSSubjectPrefix)
		if err != nil {
			return err
		}
		defer natsSink.Close()
		sink = natsSink
		l.Info().Str("url", cfg.NATSURL).Msg("mirroring guestbook events to NATS")
	}

	authService, err := auth.NewService(auth.Config{
		AdminKey:        cfg.AdminKey,
		AdminKeyHash:    cfg.AdminKeyHash,
		JWTSecret:       cfg.SigningSecret(),
		TokenExpiration: cfg.AdminTokenTTL,
	})
	if err != nil {
		return err
	}
	defer authService.Close()
	if !authService.Enabled() {
		l.Warn().Msg("ADMIN_KEY not set, admin endpoints are disabled")
	}

	root, err := shell.DefaultFS()
	if err != nil {
		return err
	}
	sessions := shell.NewSessions(root, cfg.ShellSessionTTL)
	defer sessions.Close()

	// Canceling streamsCtx ends every open stream session
	streamsCtx, closeStreams := context.WithCancel(context.Background())
	defer closeStreams()

	app, err := NewApp(cfg, photos, blobs, sink, authService, sessions, streamsCtx)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var healthServer *health.Server
	if cfg.GRPCHealthPort > 0 {
		healthServer, err = health.Listen(fmt.Sprintf(":%d", cfg.GRPCHealthPort))
		if err != nil {
			return err
		}
		go func() {
			if err := healthServer.Serve(); err != nil {
				l.Error().Err(err).Msg("gRPC health server stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info().Str("addr", server.Addr).Str("backend", cfg.GuestbookBackend).Msg("starting portfolio server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	if healthServer != nil {
		healthServer.SetServing(true)
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	l.Info().Int("stream_clients", app.Hub.Len()).Msg("shutting down")
	if healthServer != nil {
		healthServer.SetServing(false)
	}
	closeStreams()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Warn().Err(err).Msg("forced shutdown")
	}
	if healthServer != nil {
		healthServer.Stop()
	}

	l.Info().Uint64("dropped_messages", app.Hub.Dropped()).Msg("server stopped")
	return nil
}

// openStores returns the photo and blob stores for the configured backend.
func openStores(ctx context.Context, cfg *config.Config) (guestbook.PhotoStore, guestbook.BlobStore, func(), error) {
	if cfg.GuestbookBackend == config.BackendMemory {
		return db.NewMock(), storage.NewMock(), func() {}, nil
	}

	// Initialize the database
	database, err := db.New(ctx, db.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, nil, nil, err
	}

	// Initialize the database schema
	if err := database.InitSchema(ctx); err != nil {
		database.Close()
		return nil, nil, nil, err
	}

	// Initialize the storage
	s3Client, err := storage.New(ctx, storage.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		PublicURL: cfg.S3PublicURL,
	})
	if err != nil {
		database.Close()
		return nil, nil, nil, err
	}

	return database, s3Client, database.Close, nil
}

// NewApp builds the application around already opened stores.
func NewApp(
	cfg *config.Config,
	photos guestbook.PhotoStore,
	blobs guestbook.BlobStore,
	sink events.Sink,
	authService *auth.Service,
	sessions *shell.Sessions,
	streamsCtx context.Context,
) (*App, error) {
	proxies, err := middleware.ParseProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	h := hub.New(hub.WithCapacity(cfg.StreamOutboxCapacity))

	var opts []events.Option
	if sink != nil {
		opts = append(opts, events.WithSink(sink))
	}
	publisher := events.NewPublisher(h, opts...)

	return &App{
		Config: cfg,
		Hub:    h,
		Guestbook: guestbook.NewService(photos, blobs, publisher, guestbook.Config{
			MaxImageSize: cfg.GuestbookImageMaxSize,
			JPEGQuality:  cfg.GuestbookJPEGQuality,
		}),
		Messages: messages.NewStore(cfg.MessagesFile, cfg.MessagesMax),
		Shells:   sessions,
		Auth:     authService,
		Stream: stream.NewHandler(h,
			stream.WithHeartbeat(cfg.StreamHeartbeatInterval),
			stream.WithShutdown(streamsCtx),
		),
		Proxies: proxies,
		log:     logger.Component("http"),
	}, nil
}

// App holds the application state
type App struct {
	Config    *config.Config
	Hub       *hub.Hub
	Guestbook *guestbook.Service
	Messages  *messages.Store
	Shells    *shell.Sessions
	Auth      *auth.Service
	Stream    *stream.Handler
	Proxies   middleware.Proxies
	log       zerolog.Logger
}
