// Package storage selects and opens the persistence backend for the NAV
// dataset and simulation audit output.
package storage

import (
	"fmt"

	"github.com/bobmcallan/navrank/internal/common"
	"github.com/bobmcallan/navrank/internal/interfaces"
	"github.com/bobmcallan/navrank/internal/storage/filestore"
	"github.com/bobmcallan/navrank/internal/storage/sqlitedb"
)

// Driver names accepted in [storage] driver
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = interfaces.ErrNotFound

// NewManager opens the configured backend. The file backend is the default.
func NewManager(logger *common.Logger, config *common.Config) (interfaces.StorageManager, error) {
	driver := config.Storage.Driver
	if driver == "" {
		driver = DriverFile
	}

	var (
		mgr interfaces.StorageManager
		err error
	)
	switch driver {
	case DriverFile:
		mgr, err = filestore.NewStore(logger, config.Storage.Path)
	case DriverSQLite:
		mgr, err = sqlitedb.NewStore(logger, config.Storage.Path)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: file, sqlite)", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", driver, err)
	}

	logger.Info().
		Str("driver", driver).
		Str("path", config.Storage.Path).
		Msg("Storage manager initialized")
	return mgr, nil
}
