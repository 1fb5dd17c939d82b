package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/tbraddock/showcircuit/external/compsuite"
	"github.com/tbraddock/showcircuit/internal/blobstore"
	"github.com/tbraddock/showcircuit/internal/config"
	"github.com/tbraddock/showcircuit/internal/interfaces/httpapi"
	"github.com/tbraddock/showcircuit/internal/platform/cache"
	idgen "github.com/tbraddock/showcircuit/internal/platform/id"
	"github.com/tbraddock/showcircuit/internal/platform/logging"
	"github.com/tbraddock/showcircuit/internal/platform/resilience"
	"github.com/tbraddock/showcircuit/internal/scraper"
	"github.com/tbraddock/showcircuit/internal/usecase"
)

func NewHTTPServer(cfg config.Config, logger *logging.Logger) (*http.Server, error) {
	if logger == nil {
		logger = logging.Default()
	}

	client := compsuite.NewClient(compsuite.ClientConfig{
		BaseURL:      cfg.CompSuiteBaseURL,
		TokenURL:     cfg.CompSuiteTokenURL,
		ClientID:     cfg.CompSuiteClientID,
		ClientSecret: cfg.CompSuiteClientSecret,
		Timeout:      cfg.CompSuiteTimeout,
		MaxRetries:   cfg.CompSuiteMaxRetries,
		Logger:       logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.CompSuiteCircuitEnabled,
			FailureThreshold: cfg.CompSuiteCircuitFailureCount,
			OpenTimeout:      cfg.CompSuiteCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.CompSuiteCircuitHalfOpenMaxReq,
		},
	})
	sessions := usecase.SessionFactory(func(ctx context.Context) (usecase.CatalogAPI, error) {
		return client.NewSession(ctx)
	})

	store, err := newSnapshotStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	var readCache *cache.Store
	if cfg.CacheEnabled {
		readCache = cache.NewStore(cfg.CacheTTL)
	}

	scheduleScraper := scraper.NewScheduleScraper(&http.Client{Timeout: cfg.ScrapeTimeout}, logger)
	recapChecker := scraper.NewRecapChecker(&http.Client{Timeout: cfg.RecapTimeout}, logger)

	catalogSvc := usecase.NewCatalogService(sessions, readCache, cfg.CircuitID, logger)
	snapshotSvc := usecase.NewSnapshotService(
		sessions,
		scheduleScraper,
		recapChecker,
		store,
		idgen.NewRandomGenerator(),
		cfg.ScrapeConcurrency,
		usecase.DefaultSnapshotKeys(),
		logger,
	)

	handler := httpapi.NewHandler(catalogSvc, snapshotSvc, usecase.DefaultSnapshotKeys(), logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.InternalJobToken)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	if server.Addr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return server, nil
}

func newSnapshotStore(cfg config.Config, logger *logging.Logger) (blobstore.Store, error) {
	switch cfg.SnapshotBackend {
	case config.SnapshotBackendPostgres:
		db, err := sqlx.Connect("postgres", cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("connect snapshot database: %w", err)
		}
		return blobstore.NewPostgresStore(db), nil
	case config.SnapshotBackendBlob:
		store, err := blobstore.NewHTTPStore(blobstore.HTTPStoreConfig{
			BaseURL: cfg.BlobBaseURL,
			Token:   cfg.BlobToken,
			Timeout: cfg.BlobTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("configure blob store: %w", err)
		}
		return store, nil
	case config.SnapshotBackendMemory:
		logger.Warn("snapshot store is in-memory, snapshots do not survive restarts")
		return blobstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
	}
}
