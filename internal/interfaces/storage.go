package interfaces

import (
	"context"
	"errors"

	"github.com/bobmcallan/navrank/internal/models"
)

// ErrNotFound is returned by stores when a requested record does not exist
var ErrNotFound = errors.New("not found")

// StorageManager coordinates the dataset and audit stores of one backend
type StorageManager interface {
	DatasetStore() DatasetStore
	ReportStore() ReportStore

	// DataPath returns the base data directory path
	DataPath() string

	// WriteRaw stores binary audit artefacts (CSV, PNG) under subdir/key.
	WriteRaw(subdir, key string, data []byte) error

	// ReadRaw returns data written by WriteRaw, or ErrNotFound
	ReadRaw(subdir, key string) ([]byte, error)

	Close() error
}

// DatasetStore persists the single cached NAV dataset
type DatasetStore interface {
	GetDataset(ctx context.Context) (*models.Dataset, error)
	SaveDataset(ctx context.Context, ds *models.Dataset) error
	DeleteDataset(ctx context.Context) error
}

// ReportStore persists simulation reports by run ID
type ReportStore interface {
	GetReport(ctx context.Context, runID string) (*models.SimulationReport, error)
	SaveReport(ctx context.Context, report *models.SimulationReport) error
	ListReports(ctx context.Context) ([]string, error)
}
