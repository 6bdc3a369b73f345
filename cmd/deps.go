package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/advisor"
	"github.com/spigell/programme-advisor/internal/ai"
	"github.com/spigell/programme-advisor/internal/ai/gemini"
	"github.com/spigell/programme-advisor/internal/catalogue"
	"github.com/spigell/programme-advisor/internal/filtering"
	"github.com/spigell/programme-advisor/internal/logger"
	"github.com/spigell/programme-advisor/internal/metrics"
	"github.com/spigell/programme-advisor/internal/secrets"
)

// deps bundles everything a command needs. close releases the catalogue store.
type deps struct {
	config   *Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	resolver *catalogue.Resolver
	filters  []filtering.Filter
	pipeline *advisor.Pipeline
	close    func()
}

// setup builds the logger, config, catalogue and, when withModel is set, the model-backed pipeline.
func setup(ctx context.Context, withModel bool) (*deps, error) {
	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}

	config, err := getConfig()
	if err != nil {
		return nil, err
	}

	log.Info("starting the "+app, zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	log.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	store, closeStore, err := newStore(ctx, config.Catalogue, log)
	if err != nil {
		return nil, err
	}

	filterConfig := &filtering.Config{}
	limit := 0
	if c := config.Catalogue; c != nil {
		filterConfig.ExcludeCategories = c.ExcludeCategories
		filterConfig.ExcludeFile = c.ExcludeFile
		limit = c.DescriptionLimit
	}

	// A broken filter configuration is reported here, not as a catalogue outage on every request.
	filters, err := filtering.Prepare(filterConfig)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("catalogue filters: %w", err)
	}

	resolver := catalogue.NewResolver(store, catalogue.Options{
		Filters:          filters,
		DescriptionLimit: limit,
		Metrics:          m,
	}, log.With(zap.String("component", "catalogue")))

	d := &deps{
		config:   config,
		logger:   log,
		registry: registry,
		metrics:  m,
		resolver: resolver,
		filters:  filters,
		close:    closeStore,
	}

	if !withModel {
		return d, nil
	}

	model, err := newModel(ctx, config.AI, log)
	if err != nil {
		closeStore()
		return nil, err
	}

	d.pipeline = newPipeline(config, model, resolver, m, log)
	return d, nil
}

func newModel(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Model, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, errors.New("ai.gemini configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
	}

	genLogger := log.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	return gemini.NewGenerator(ctx, apiKey, gemini.Options{
		Model:        cfg.Gemini.Model,
		BaseURL:      cfg.Gemini.BaseURL,
		MaxRetries:   cfg.Gemini.MaxRetries,
		MaxLogLength: cfg.Gemini.MaxLogLength,
		Temperature:  cfg.Gemini.Temperature,
	}, genLogger)
}

// newStore returns a nil Store when no source is configured, leaving only the inline fallback.
func newStore(ctx context.Context, cfg *CatalogueConfig, log *zap.Logger) (catalogue.Store, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, nil
	}

	switch strings.TrimSpace(strings.ToLower(cfg.Source)) {
	case "":
		log.Warn("catalogue source is not configured, only inline catalogues will be used")
		return nil, noop, nil
	case "postgres":
		if cfg.Postgres == nil || cfg.Postgres.DSN == "" {
			return nil, noop, errors.New("catalogue.postgres.dsn is required for the postgres source")
		}
		store, err := catalogue.NewPostgresStore(cfg.Postgres.DSN)
		if err != nil {
			return nil, noop, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		// An unreachable database is not fatal, requests fall back to the inline catalogue.
		if err := store.Ping(pingCtx); err != nil {
			log.Warn("catalogue database is not reachable", zap.Error(err))
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn("closing catalogue database", zap.Error(err))
			}
		}, nil
	case "rest":
		if cfg.REST == nil || cfg.REST.URL == "" {
			return nil, noop, errors.New("catalogue.rest.url is required for the rest source")
		}
		token := ""
		if cfg.REST.Token != "" || cfg.REST.TokenFile != "" {
			var err error
			token, err = secrets.Load(secrets.Source{
				Name:  "catalogue rest token",
				Value: cfg.REST.Token,
				File:  cfg.REST.TokenFile,
			})
			if err != nil {
				return nil, noop, err
			}
		}
		return catalogue.NewRESTStore(cfg.REST.URL, token, log.With(zap.String("component", "catalogue_rest"))), noop, nil
	case "files":
		if cfg.Files == nil || cfg.Files.Dir == "" {
			return nil, noop, errors.New("catalogue.files.dir is required for the files source")
		}
		return catalogue.NewFilesStore(cfg.Files.Dir, log.With(zap.String("component", "catalogue_files"))), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported catalogue source: %s", cfg.Source)
	}
}

func newPipeline(cfg *Config, model ai.Model, resolver *catalogue.Resolver, m *metrics.Metrics, log *zap.Logger) *advisor.Pipeline {
	extractorOpts := advisor.ExtractorOptions{Metrics: m}
	synthesizerOpts := advisor.SynthesizerOptions{Metrics: m}

	if cfg.AI != nil {
		extractorOpts.Timeout = cfg.AI.ExtractionTimeout
		synthesizerOpts.Timeout = cfg.AI.SynthesisTimeout
	}
	if cfg.Extraction != nil {
		extractorOpts.MaxInputChars = cfg.Extraction.MaxInputChars
	}
	if cfg.Recommendation != nil {
		synthesizerOpts.OutreachWords = cfg.Recommendation.OutreachWords
	}

	extractor := advisor.NewExtractor(model, extractorOpts, logger.WithCommonFields(log, "extractor", model.Provider(), model.Name()))
	synthesizer := advisor.NewSynthesizer(model, synthesizerOpts, logger.WithCommonFields(log, "synthesizer", model.Provider(), model.Name()))

	return advisor.NewPipeline(extractor, resolver, synthesizer, m, log.With(zap.String("component", "pipeline")))
}
