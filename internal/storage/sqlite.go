package storage

import (
	"errors"
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry models one persisted key-value pair.
type Entry struct {
	Key              string `gorm:"column:key;primaryKey;size:190;not null"`
	Value            string `gorm:"column:value;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "kv_entries"
}

// SQLite is a Store backed by a single-file SQLite database.
type SQLite struct {
	db *gorm.DB
}

// OpenSQLite establishes a SQLite connection, migrates the key-value table,
// and returns a Store over it.
func OpenSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("client state database initialized", zap.String("path", path))
	}

	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLite) Get(key string) (string, error) {
	var entry Entry
	err := s.db.Where("key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

func (s *SQLite) Set(key, value string) error {
	entry := Entry{Key: key, Value: value}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at_s"}),
	}).Create(&entry).Error
}

func (s *SQLite) Remove(key string) error {
	return s.db.Where("key = ?", key).Delete(&Entry{}).Error
}
