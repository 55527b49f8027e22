package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/cognicore/attrmatch/pkg/attrmatch"
	"github.com/cognicore/attrmatch/pkg/attrmatch/artifact"
	"github.com/cognicore/attrmatch/pkg/attrmatch/config"
	"github.com/cognicore/attrmatch/pkg/attrmatch/logging"
	"github.com/cognicore/attrmatch/pkg/attrmatch/lookup"
	"github.com/cognicore/attrmatch/pkg/attrmatch/stoplist"
	"github.com/cognicore/attrmatch/pkg/attrmatch/store/sqlstore"
)

// app holds what every command needs.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  *sqlstore.Store
	engine *attrmatch.Engine
}

func loadConfig() (*config.Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: out,
	})
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, os.Stderr)

	comp, err := cfg.Loader().Load()
	if err != nil {
		return nil, err
	}

	st, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	arts, err := openArtifacts(cfg.Artifacts)
	if err != nil {
		st.Close()
		return nil, err
	}

	opts := attrmatch.Options{
		Store:            st,
		Artifacts:        arts,
		Tokenizer:        comp.Tokenizer,
		Dictionary:       cfg.DictionaryOptions(logger),
		Lookup:           cfg.LookupOptions(logger),
		IncrementalIndex: cfg.Dictionary.IncrementalIndex,
		StopwordThresholds: stoplist.Thresholds{
			DFPercent: cfg.Dictionary.StopwordSuggestDFPercent,
			MinDF:     stoplist.DefaultThresholds().MinDF,
		},
		Logger: logger,
	}
	if cfg.Lookup.Endpoint != "" {
		opts.Remote = &lookup.Client{
			Endpoint:   cfg.Lookup.Endpoint,
			HTTPClient: &http.Client{Timeout: cfg.Lookup.Timeout},
		}
		logger.Info().Str("endpoint", cfg.Lookup.Endpoint).Msg("using remote lookup service")
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  st,
		engine: attrmatch.New(opts),
	}, nil
}

func (a *app) Close() error {
	return a.engine.Close()
}

func openArtifacts(cfg config.ArtifactsConfig) (artifact.Store, error) {
	switch cfg.Driver {
	case "memory":
		return artifact.NewMemoryStore(), nil
	case "bolt":
		s, err := artifact.OpenBolt(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open artifact file: %w", err)
		}
		return s, nil
	case "redis":
		if cfg.Redis.URL != "" {
			return artifact.NewRedisStoreFromURL(cfg.Redis.URL, cfg.Redis.Prefix)
		}
		return artifact.NewRedisStore(artifact.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	}
	return nil, errors.New("unknown artifacts driver: " + cfg.Driver)
}
