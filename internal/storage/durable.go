package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is a row of the durable key/value table.
type Entry struct {
	Key       string `gorm:"column:name;primaryKey;size:128"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName keeps the table name stable regardless of naming strategy.
func (Entry) TableName() string { return "local_storage" }

// DurableStore persists values through GORM, the equivalent of a
// browser's local storage.
type DurableStore struct {
	db *gorm.DB
}

// NewDurableStore migrates the backing table and returns the store.
func NewDurableStore(db *gorm.DB) (*DurableStore, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("automigrate local storage failed: %w", err)
	}
	return &DurableStore{db: db}, nil
}

func (s *DurableStore) Get(key string) (string, error) {
	var e Entry
	err := s.db.First(&e, "name = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", key, err)
	}
	return e.Value, nil
}

func (s *DurableStore) Set(key, value string) error {
	e := Entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

func (s *DurableStore) Delete(key string) error {
	if err := s.db.Delete(&Entry{Key: key}).Error; err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}
