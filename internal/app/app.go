// Package app wires configuration, storage, the upstream client and the
// fact services into one object shared by the CLI commands.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/keymetrics/internal/clients/fmp"
	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/services/analysis"
	"github.com/bobmcallan/keymetrics/internal/services/metrics"
	"github.com/bobmcallan/keymetrics/internal/services/quote"
	"github.com/bobmcallan/keymetrics/internal/services/statements"
	"github.com/bobmcallan/keymetrics/internal/storage"
)

// App holds all initialized services, the store and the capability catalog.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Store            interfaces.FactStore
	FMPClient        interfaces.FundamentalsClient
	Policy           *common.FreshnessPolicy
	StatementService interfaces.StatementService
	QuoteService     interfaces.QuoteService
	MetricsService   interfaces.MetricsService
	Capabilities     []Capability
	StartupTime      time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the given path, KEYMETRICS_CONFIG,
// keymetrics.toml next to the binary, then config/keymetrics.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("KEYMETRICS_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "keymetrics.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/keymetrics.toml" // fallback for development
		}
	}
	return configPath
}

// LoadConfig resolves and loads the configuration.
func LoadConfig(configPath string) (*common.Config, error) {
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return config, nil
}

// NewApp loads configuration, opens the configured fact store and wires the services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	store, err := storage.NewFactStore(ctx, logger, config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var client interfaces.FundamentalsClient
	apiKey, err := common.ResolveAPIKey("fmp_api_key", config.Clients.FMP.APIKey)
	if err != nil {
		logger.Warn().Msg("FMP API key not configured - serving cached data only")
	} else {
		client = fmp.NewClient(apiKey,
			fmp.WithBaseURL(config.Clients.FMP.BaseURL),
			fmp.WithLogger(logger),
			fmp.WithRateLimit(config.Clients.FMP.RateLimit),
			fmp.WithTimeout(config.Clients.FMP.GetTimeout()),
		)
	}

	return New(config, logger, store, client), nil
}

// New wires services over an open store. client may be nil, in which case
// only cached data is served.
func New(config *common.Config, logger *common.Logger, store interfaces.FactStore, client interfaces.FundamentalsClient) *App {
	startupStart := time.Now()

	policy := common.NewFreshnessPolicy(config.Freshness)

	statementService := statements.NewService(store, client, policy, logger).
		WithMaxLimit(config.Metrics.StatementLimit).
		WithCashFlowAnalyzer(analysis.NewCashFlowAnalyzer())
	quoteService := quote.NewService(client, policy, logger)
	metricsService := metrics.NewService(metrics.Deps{
		Store:      store,
		Client:     client,
		Statements: statementService,
		Quotes:     quoteService,
		Analyzer:   analysis.NewValuationAnalyzer(),
		Policy:     policy,
		Config:     config.Metrics,
		Logger:     logger,
	})

	a := &App{
		Config:           config,
		Logger:           logger,
		Store:            store,
		FMPClient:        client,
		Policy:           policy,
		StatementService: statementService,
		QuoteService:     quoteService,
		MetricsService:   metricsService,
		StartupTime:      startupStart,
	}

	a.Capabilities = BuildCapabilities(ToolDeps{
		Metrics:    metricsService,
		Statements: statementService,
		Logger:     logger,
	})

	logger.Info().
		Str("storage", config.Storage.Driver).
		Bool("upstream", client != nil).
		Int("capabilities", len(a.Capabilities)).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a
}

// Close releases the fact store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
