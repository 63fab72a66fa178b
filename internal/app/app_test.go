package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/navrank/internal/common"
	"github.com/bobmcallan/navrank/internal/models"
)

func TestNewApp_InitializesAllServices(t *testing.T) {
	a, err := NewApp(writeTestConfig(t, "file"))
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Config)
	assert.NotNil(t, a.Logger)
	assert.NotNil(t, a.Storage)
	assert.NotNil(t, a.UniverseClient)
	assert.NotNil(t, a.NAVClient)
	assert.NotNil(t, a.DatasetService)
	assert.NotNil(t, a.ScreenService)
	assert.NotNil(t, a.BacktestService)
	assert.False(t, a.StartupTime.IsZero())
}

func TestNewApp_SQLiteDriver(t *testing.T) {
	a, err := NewApp(writeTestConfig(t, "sqlite"))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.BacktestService.GetReport(context.Background(), "missing")
	assert.Error(t, err)
}

func TestNewApp_CloseIsIdempotent(t *testing.T) {
	a, err := NewApp(writeTestConfig(t, "file"))
	require.NoError(t, err)

	a.Close()
	a.Close()
}

func TestNewApp_InvalidConfigReturnsError(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("{{{{invalid toml"), 0644))

	_, err := NewApp(configPath)
	assert.Error(t, err)
}

func TestResolveConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("NAVRANK_CONFIG", "/etc/navrank/navrank.toml")

	assert.Equal(t, "/etc/navrank/navrank.toml", ResolveConfigPath(""))
	assert.Equal(t, "explicit.toml", ResolveConfigPath("explicit.toml"))
}

type countingDatasets struct {
	mu    sync.Mutex
	loads int
	err   error
}

func (c *countingDatasets) Load(_ context.Context, force bool) (*models.Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	if c.err != nil {
		return nil, c.err
	}
	return &models.Dataset{FetchedAt: time.Now(), Funds: []models.Fund{{ID: "100"}}}, nil
}

func (c *countingDatasets) Invalidate(_ context.Context) error { return nil }

func (c *countingDatasets) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

func TestWarmCache_LoadsDataset(t *testing.T) {
	ds := &countingDatasets{}
	warmCache(context.Background(), ds, common.NewSilentLogger())
	assert.Equal(t, 1, ds.count())
}

func TestWarmCache_DisabledByEnv(t *testing.T) {
	t.Setenv("NAVRANK_WARM_CACHE", "off")

	ds := &countingDatasets{}
	warmCache(context.Background(), ds, common.NewSilentLogger())
	assert.Equal(t, 0, ds.count())
}

func TestWarmCache_LoadErrorIsSwallowed(t *testing.T) {
	ds := &countingDatasets{err: errors.New("amfi down")}
	warmCache(context.Background(), ds, common.NewSilentLogger())
	assert.Equal(t, 1, ds.count())
}

func TestDatasetRefresher_TicksUntilCancelled(t *testing.T) {
	ds := &countingDatasets{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		startDatasetRefresher(ctx, ds, common.NewSilentLogger(), 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return ds.count() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop after cancel")
	}
}

// writeTestConfig creates a minimal navrank.toml in a temp directory.
func writeTestConfig(t *testing.T, driver string) string {
	t.Helper()
	dir := t.TempDir()

	config := `
[storage]
driver = "` + driver + `"
path = "` + filepath.Join(dir, "data") + `"

[logging]
level = "error"
file_path = "` + filepath.Join(dir, "logs", "navrank.log") + `"
`
	configPath := filepath.Join(dir, "navrank.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))
	return configPath
}
