package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/navrank/internal/clients/amfi"
	"github.com/bobmcallan/navrank/internal/clients/mfapi"
	"github.com/bobmcallan/navrank/internal/common"
	"github.com/bobmcallan/navrank/internal/interfaces"
	"github.com/bobmcallan/navrank/internal/services/backtest"
	"github.com/bobmcallan/navrank/internal/services/dataset"
	"github.com/bobmcallan/navrank/internal/services/screen"
	"github.com/bobmcallan/navrank/internal/storage"
)

// App holds all initialized services and clients.
// It is the shared core used by both cmd/navrank-server and cmd/navrank.
type App struct {
	Config          *common.Config
	Logger          *common.Logger
	Storage         interfaces.StorageManager
	UniverseClient  interfaces.FundUniverseClient
	NAVClient       interfaces.NAVHistoryClient
	DatasetService  interfaces.DatasetService
	ScreenService   interfaces.ScreenService
	BacktestService interfaces.BacktestService
	StartupTime     time.Time

	refreshCancel   context.CancelFunc
	warmCacheCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the explicit path, then
// NAVRANK_CONFIG, then navrank.toml next to the binary, then config/navrank.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("NAVRANK_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "navrank.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/navrank.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp initializes storage, clients and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	binDir := getBinaryDir()

	// Resolve relative storage path to binary directory
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}

	// Resolve relative log file path to binary directory
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	a, err := NewAppWithConfig(config, logger)
	if err != nil {
		return nil, err
	}
	a.StartupTime = startupStart

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")
	return a, nil
}

// NewAppWithConfig wires the app from an already-loaded config. Paths are
// used as given.
func NewAppWithConfig(config *common.Config, logger *common.Logger) (*App, error) {
	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	mf := config.Clients.MFAPI
	navClient := mfapi.NewClient(
		mfapi.WithBaseURL(mf.BaseURL),
		mfapi.WithLogger(logger),
		mfapi.WithRateLimit(mf.RateLimit),
		mfapi.WithTimeout(mf.GetTimeout()),
		mfapi.WithRetry(mf.MaxRetries, mf.GetBackoffBase()),
	)

	universeClient := amfi.NewClient(
		amfi.WithURL(config.Clients.AMFI.URL),
		amfi.WithLogger(logger),
		amfi.WithTimeout(config.Clients.AMFI.GetTimeout()),
	)

	datasetService := dataset.NewService(storageManager, universeClient, navClient, config, logger)
	screenService := screen.NewService(datasetService, config, logger)
	backtestService := backtest.NewService(storageManager, datasetService, config, logger)

	return &App{
		Config:          config,
		Logger:          logger,
		Storage:         storageManager,
		UniverseClient:  universeClient,
		NAVClient:       navClient,
		DatasetService:  datasetService,
		ScreenService:   screenService,
		BacktestService: backtestService,
		StartupTime:     time.Now(),
	}, nil
}

// Close releases all resources held by the App.
// Shutdown order: cancel refresh loop, cancel warm cache, close storage.
func (a *App) Close() {
	if a.refreshCancel != nil {
		a.refreshCancel()
		a.refreshCancel = nil
	}
	if a.warmCacheCancel != nil {
		a.warmCacheCancel()
		a.warmCacheCancel = nil
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
		a.Storage = nil
	}
}

// StartWarmCache launches the background dataset warm-up goroutine.
func (a *App) StartWarmCache() {
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Minute)
	a.warmCacheCancel = warmCancel
	go func() {
		defer warmCancel()
		warmCache(warmCtx, a.DatasetService, a.Logger)
	}()
}

// StartDatasetRefresher launches the background loop that keeps the cached
// dataset within its max age.
func (a *App) StartDatasetRefresher() {
	refreshCtx, refreshCancel := context.WithCancel(context.Background())
	a.refreshCancel = refreshCancel
	go startDatasetRefresher(refreshCtx, a.DatasetService, a.Logger, a.Config.Dataset.GetMaxAge())
}
