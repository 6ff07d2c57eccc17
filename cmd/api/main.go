package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/tsuyoshi-3110/dslab571/internal/di"
	"github.com/tsuyoshi-3110/dslab571/internal/handlers"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/auth"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/config"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/events"
	pfirestore "github.com/tsuyoshi-3110/dslab571/internal/platform/firestore"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/observability"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/requestctx"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/secrets"
	platformstorage "github.com/tsuyoshi-3110/dslab571/internal/platform/storage"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/translate"
	"github.com/tsuyoshi-3110/dslab571/internal/repositories"
	firestoreRepo "github.com/tsuyoshi-3110/dslab571/internal/repositories/firestore"
	"github.com/tsuyoshi-3110/dslab571/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("catalog")
	ctx = requestctx.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	secretOpts := []secrets.Option{secrets.WithLogger(logger.Named("secrets"))}
	if path := strings.TrimSpace(envValues["CATALOG_SECRET_FALLBACK_FILE"]); path != "" {
		secretOpts = append(secretOpts, secrets.WithLocalFile(path))
	}
	resolver, err := secrets.NewResolver(ctx, secretProjectID(envValues), secretOpts...)
	if err != nil {
		logger.Fatal("failed to initialise secret resolver", zap.Error(err))
	}
	defer func() {
		if err := resolver.Close(); err != nil {
			logger.Warn("secret resolver close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(resolver))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	var clientOpts []option.ClientOption
	if file := strings.TrimSpace(cfg.Firebase.CredentialsFile); file != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(file))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore, pfirestore.WithClientOptions(clientOpts...))
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	storageClient, err := cloudstorage.NewClient(ctx, clientOpts...)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()

	mediaStore, err := platformstorage.NewMediaStore(storageClient, cfg.Storage, cfg.Site.Key,
		platformstorage.WithLogger(logger.Named("media")),
	)
	if err != nil {
		logger.Fatal("failed to initialise media store", zap.Error(err))
	}

	healthRepo, err := repositories.NewProbeHealthRepository([]repositories.Probe{
		{Name: "firestore", Critical: true, Check: firestoreProvider.Ping},
		{Name: "storage", Check: mediaStore.Ping},
	})
	if err != nil {
		logger.Fatal("failed to initialise health probes", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider, cfg.Firestore, cfg.Site.Key, healthRepo)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	externals := di.Externals{
		Media:  mediaStore,
		Logger: logger,
	}
	if translator, err := translate.NewClient(cfg.Translation); err != nil {
		logger.Warn("translation client unavailable", zap.Error(err))
	} else {
		externals.Translator = translator
	}

	publisher, closePublisher, err := newItemPublisher(ctx, cfg.Events, clientOpts)
	if err != nil {
		logger.Fatal("failed to initialise item event publisher", zap.Error(err))
	}
	defer closePublisher()
	externals.Events = publisher

	container, err := di.NewContainer(ctx, cfg, registry, externals)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("repository close error", zap.Error(err))
		}
	}()

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(),
		observability.RequestLoggerMiddleware(),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfoFromEnv(envValues, startedAt)),
		handlers.WithHealthSystemService(container.Services.System),
	)
	publicHandlers := handlers.NewPublicCatalogHandlers(
		container.Services.Catalog,
		container.Services.Categories,
		handlers.WithFallbackSlide(container.FallbackSlide()),
	)
	adminHandlers := handlers.NewAdminCatalogHandlers(
		authenticator,
		container.Services.Catalog,
		container.Services.Categories,
		handlers.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPublicRoutes(publicHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr), zap.String("site", cfg.Site.Key))
	go func() {
		serverLogger.Info("catalog api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newItemPublisher returns a nil publisher when no topic is configured.
func newItemPublisher(ctx context.Context, cfg config.EventsConfig, opts []option.ClientOption) (services.ItemEventPublisher, func(), error) {
	topicID := strings.TrimSpace(cfg.Topic)
	if topicID == "" {
		return nil, func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, func() {}, fmt.Errorf("pubsub client: %w", err)
	}
	publisher, err := events.NewPubSubItemPublisher(client.Topic(topicID))
	if err != nil {
		_ = client.Close()
		return nil, func() {}, err
	}
	return publisher, func() {
		publisher.Stop()
		_ = client.Close()
	}, nil
}

func buildInfoFromEnv(env map[string]string, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(env["CATALOG_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["CATALOG_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(env["CATALOG_ENVIRONMENT"])
	if environment == "" {
		environment = "local"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func secretProjectID(env map[string]string) string {
	if id := strings.TrimSpace(env["CATALOG_SECRET_PROJECT_ID"]); id != "" {
		return id
	}
	return strings.TrimSpace(env["CATALOG_FIREBASE_PROJECT_ID"])
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}
