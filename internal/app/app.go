package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/reliefroute/backend/internal/ai"
	"github.com/reliefroute/backend/internal/config"
	"github.com/reliefroute/backend/internal/db"
	"github.com/reliefroute/backend/internal/events"
	"github.com/reliefroute/backend/internal/geocode"
	httpapi "github.com/reliefroute/backend/internal/http"
	"github.com/reliefroute/backend/internal/lock"
	"github.com/reliefroute/backend/internal/logging"
	"github.com/reliefroute/backend/internal/routing"
	"github.com/reliefroute/backend/internal/service"
)

const mockModelVersion = "mock-v1"

// App owns every long-lived component. Close releases them in reverse order.
type App struct {
	httpapi.App

	closers []func()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Build wires storage, classifiers, the event bus and the lock backend from cfg.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if pg, ok := store.(*db.Store); ok {
		a.closers = append(a.closers, pg.Close)
	}

	bus, err := openBus(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, bus.Close)

	locker, err := openLocker(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if rl, ok := locker.(*lock.RedisLocker); ok {
		a.closers = append(a.closers, func() { _ = rl.Close() })
	}

	weights := service.NewWeightStore(store, service.WeightStoreConfig{
		TTL:          cfg.WeightsCacheTTL,
		HistoryLimit: cfg.WeightsHistoryLimit,
		MinRecords:   cfg.WeightsMinRecords,
	}, logging.Component(logger, "weights"))
	reliability := service.NewReliabilityTracker(store, logging.Component(logger, "reliability"))

	recomputer := &service.Recomputer{
		Weights:     weights,
		Reliability: reliability,
		Logger:      logging.Component(logger, "recompute"),
	}
	if err := recomputer.Subscribe(bus); err != nil {
		a.Close()
		return nil, fmt.Errorf("subscribe recompute: %w", err)
	}

	processing := &service.ProcessingService{
		Store: store,
		Classifier: &ai.Resolver{
			Semantic: semanticClassifier(cfg, logger),
			Timeout:  cfg.AITimeout,
			Logger:   logging.Component(logger, "classifier"),
		},
		Embedder:    embedder(cfg, logger),
		Geocoder:    geocoder(cfg, logger),
		Country:     cfg.CountryDefault,
		Weights:     weights,
		Reliability: reliability,
		Locker:      locker,
		Bus:         bus,
		Vocabulary:  routing.DefaultVocabulary(),
		Policy:      routing.Policy{NearestOverride: cfg.NearestOverride},
		Logger:      logging.Component(logger, "processing"),
	}

	a.App = httpapi.App{
		Store:      store,
		Processing: processing,
		Weights:    weights,
		Recomputer: recomputer,
		Anomalies: &service.AnomalyScanner{
			Repo:   store,
			Limit:  cfg.AnomalyWindow,
			Logger: logging.Component(logger, "anomalies"),
		},
	}
	return a, nil
}

// OpenStore connects to Postgres (or builds the memory store) without the rest of the app.
func OpenStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (service.Repository, func(), error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if pg, ok := store.(*db.Store); ok {
		return store, pg.Close, nil
	}
	return store, func() {}, nil
}

func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (service.Repository, error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return db.NewMemoryStore(), nil
	case config.StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE=%s", config.StorePostgres)
		}
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown STORE %q", cfg.Store)
	}
}

func openBus(cfg config.Config, logger zerolog.Logger) (events.Bus, error) {
	if cfg.NATSURL == "" {
		return events.NewLocalBus(), nil
	}
	bus, err := events.NewNATSBus(events.NATSConfig{
		URL:   cfg.NATSURL,
		Name:  "reliefroute",
		Queue: "reliefroute-recompute",
	}, logging.Component(logger, "events"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	logger.Info().Str("url", cfg.NATSURL).Msg("using nats event bus")
	return bus, nil
}

func openLocker(ctx context.Context, cfg config.Config, logger zerolog.Logger) (lock.Locker, error) {
	if cfg.RedisURL == "" {
		return lock.NewLocalLocker(), nil
	}
	rl, err := lock.NewRedisLocker(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	if err := rl.Ping(ctx); err != nil {
		_ = rl.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info().Msg("using redis request locks")
	return rl, nil
}

func semanticClassifier(cfg config.Config, logger zerolog.Logger) ai.Classifier {
	switch {
	case cfg.AIURL != "":
		logger.Info().Str("url", cfg.AIURL).Msg("using http classifier")
		return ai.HTTPClassifier{BaseURL: cfg.AIURL}
	case cfg.AssistantBaseURL != "":
		logger.Info().Str("model", cfg.AssistantModel).Msg("using chat classifier")
		return &ai.ChatClassifier{
			BaseURL: cfg.AssistantBaseURL,
			Model:   cfg.AssistantModel,
			APIKey:  cfg.AssistantAPIKey,
		}
	case cfg.Env == "dev":
		logger.Info().Msg("using mock classifier")
		return ai.MockClassifier{ModelVersion: mockModelVersion}
	default:
		logger.Warn().Msg("no semantic classifier configured; keyword fallback only")
		return nil
	}
}

func embedder(cfg config.Config, logger zerolog.Logger) ai.Embedder {
	switch {
	case cfg.EmbeddingURL != "":
		return ai.HTTPEmbedder{BaseURL: cfg.EmbeddingURL}
	case cfg.Env == "dev":
		logger.Info().Msg("using hash embedder")
		return ai.HashEmbedder{}
	default:
		logger.Info().Msg("no embedding service configured; semantic signal disabled")
		return nil
	}
}

func geocoder(cfg config.Config, logger zerolog.Logger) geocode.Geocoder {
	if cfg.GeocoderURL == "" {
		return nil
	}
	logger.Info().Str("url", cfg.GeocoderURL).Msg("using nominatim geocoder")
	return &geocode.NominatimGeocoder{BaseURL: cfg.GeocoderURL, UserAgent: cfg.GeocoderUserAgent}
}
