// Package filestore implements file-based storage for the NAV dataset and
// simulation audit output.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bobmcallan/navrank/internal/common"
	"github.com/bobmcallan/navrank/internal/interfaces"
	"github.com/bobmcallan/navrank/internal/models"
)

const (
	datasetKey = "dataset"
)

// Store provides file-based JSON storage. Every write goes through a temp
// file and rename so readers never observe a partial file.
type Store struct {
	basePath   string
	datasetDir string
	reportsDir string
	logger     *common.Logger
}

// NewStore creates a file store rooted at path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store path %s: %w", path, err)
	}
	datasetDir := filepath.Join(path, "dataset")
	reportsDir := filepath.Join(path, "reports")
	for _, dir := range []string{datasetDir, reportsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	logger.Info().Str("path", path).Msg("File store opened")
	return &Store{
		basePath:   path,
		datasetDir: datasetDir,
		reportsDir: reportsDir,
		logger:     logger,
	}, nil
}

// DataPath returns the base data path.
func (s *Store) DataPath() string {
	return s.basePath
}

// DatasetStore returns the dataset storage interface.
func (s *Store) DatasetStore() interfaces.DatasetStore {
	return &datasetStorage{store: s}
}

// ReportStore returns the report storage interface.
func (s *Store) ReportStore() interfaces.ReportStore {
	return &reportStorage{store: s}
}

// WriteRaw writes arbitrary binary data to a subdirectory atomically.
func (s *Store) WriteRaw(subdir, key string, data []byte) error {
	dir := filepath.Join(s.basePath, sanitizeKey(subdir))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return writeAtomic(dir, filepath.Join(dir, sanitizeKey(key)), data)
}

// ReadRaw reads data written by WriteRaw.
func (s *Store) ReadRaw(subdir, key string) ([]byte, error) {
	path := filepath.Join(s.basePath, sanitizeKey(subdir), sanitizeKey(key))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("'%s/%s': %w", subdir, key, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

// --- dataset ---

type datasetStorage struct {
	store *Store
}

func (d *datasetStorage) GetDataset(_ context.Context) (*models.Dataset, error) {
	var ds models.Dataset
	if err := readJSON(d.store.datasetDir, datasetKey, &ds); err != nil {
		return nil, err
	}
	if ds.History == nil {
		ds.History = make(map[string][]models.NAVObservation)
	}
	return &ds, nil
}

func (d *datasetStorage) SaveDataset(_ context.Context, ds *models.Dataset) error {
	if err := writeJSON(d.store.datasetDir, datasetKey, ds); err != nil {
		return err
	}
	d.store.logger.Debug().
		Int("funds", len(ds.Funds)).
		Int("histories", len(ds.History)).
		Msg("Dataset saved")
	return nil
}

func (d *datasetStorage) DeleteDataset(_ context.Context) error {
	err := os.Remove(filePath(d.store.datasetDir, datasetKey))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	return nil
}

// --- reports ---

type reportStorage struct {
	store *Store
}

func (r *reportStorage) GetReport(_ context.Context, runID string) (*models.SimulationReport, error) {
	var report models.SimulationReport
	if err := readJSON(r.store.reportsDir, runID, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *reportStorage) SaveReport(_ context.Context, report *models.SimulationReport) error {
	if report.RunID == "" {
		return errors.New("report has no run id")
	}
	return writeJSON(r.store.reportsDir, report.RunID, report)
}

func (r *reportStorage) ListReports(_ context.Context) ([]string, error) {
	keys, err := listKeys(r.store.reportsDir)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// --- helpers ---

func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(key)
}

func filePath(dir, key string) string {
	return filepath.Join(dir, sanitizeKey(key)+".json")
}

func readJSON(dir, key string, dest interface{}) error {
	path := filePath(dir, key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("'%s': %w", key, interfaces.ErrNotFound)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("'%s' is empty", key)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(dir, key string, data interface{}) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	jsonData = append(jsonData, '\n')
	return writeAtomic(dir, filePath(dir, key), jsonData)
}

func writeAtomic(dir, target string, data []byte) error {
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func listKeys(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".tmp-") {
			keys = append(keys, strings.TrimSuffix(name, ".json"))
		}
	}
	return keys, nil
}
