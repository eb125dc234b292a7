package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"finex_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists instrument metadata and user configuration between runs.
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a new SQLite storage instance at the default path.
func NewStorage() (*Storage, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB path: %w", err)
	}
	return NewStorageAt(dbPath)
}

// NewStorageAt creates a SQLite storage instance at the given file path.
func NewStorageAt(dbPath string) (*Storage, error) {
	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.InstrumentInfo{}, &domain.AppConfig{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "FinexGo", "data", "finexgo.db"), nil
}

// ======================================================================================
// Instrument Operations
// ======================================================================================

// UpsertInstrument creates or updates instrument metadata
func (s *Storage) UpsertInstrument(inst *domain.InstrumentInfo) error {
	return s.db.Save(inst).Error
}

// GetInstrument retrieves instrument metadata by symbol
func (s *Storage) GetInstrument(symbol string) (*domain.InstrumentInfo, error) {
	var inst domain.InstrumentInfo
	err := s.db.First(&inst, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &inst, err
}

// GetAllInstruments retrieves all cached instruments
func (s *Storage) GetAllInstruments() ([]domain.InstrumentInfo, error) {
	var instruments []domain.InstrumentInfo
	err := s.db.Find(&instruments).Error
	return instruments, err
}

// ActiveSymbols returns the symbols seen in the most recent snapshots,
// used to warm-start the catalog before the first live pull.
func (s *Storage) ActiveSymbols() ([]string, error) {
	var instruments []domain.InstrumentInfo
	if err := s.db.Where("is_active = ?", true).Find(&instruments).Error; err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		symbols = append(symbols, inst.Symbol)
	}
	return symbols, nil
}

// SyncUniverse records the symbol universe of a fresh snapshot. Symbols no
// longer listed are marked inactive rather than deleted, preserving user
// state like favorites.
func (s *Storage) SyncUniverse(symbols []string, seenAt time.Time) error {
	listed := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		listed[sym] = true

		inst, err := s.GetInstrument(sym)
		if err != nil {
			return err
		}
		if inst == nil {
			inst = &domain.InstrumentInfo{Symbol: sym}
		}
		inst.IsActive = true
		inst.LastSeenAt = seenAt
		if err := s.UpsertInstrument(inst); err != nil {
			return err
		}
	}

	var stale []domain.InstrumentInfo
	if err := s.db.Where("is_active = ?", true).Find(&stale).Error; err != nil {
		return err
	}
	for _, inst := range stale {
		if listed[inst.Symbol] {
			continue
		}
		inst.IsActive = false
		if err := s.UpsertInstrument(&inst); err != nil {
			return err
		}
	}
	return nil
}

// ToggleFavorite toggles the favorite status of an instrument
func (s *Storage) ToggleFavorite(symbol string) (bool, error) {
	var inst domain.InstrumentInfo
	if err := s.db.First(&inst, "symbol = ?", symbol).Error; err != nil {
		return false, err
	}

	inst.IsFavorite = !inst.IsFavorite
	err := s.db.Save(&inst).Error
	return inst.IsFavorite, err
}

// DeleteInstrument deletes an instrument from the database
func (s *Storage) DeleteInstrument(symbol string) error {
	return s.db.Where("symbol = ?", symbol).Delete(&domain.InstrumentInfo{}).Error
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig saves a user configuration
func (s *Storage) SaveConfig(key, value string) error {
	config := domain.AppConfig{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&config).Error
}

// LoadConfigMap loads all user configurations as a map
func (s *Storage) LoadConfigMap() (map[string]string, error) {
	var configs []domain.AppConfig
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, cfg := range configs {
		result[cfg.Key] = cfg.Value
	}
	return result, nil
}
