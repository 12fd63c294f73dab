package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const slotKey = "session"

type slotRow struct {
	Key string `gorm:"primaryKey;column:slot"`
	Record
}

func (slotRow) TableName() string {
	return "session_slot"
}

// GormSlot keeps the record as a single row of the session_slot table.
type GormSlot struct {
	db *gorm.DB
}

func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func NewGormSlot(db *gorm.DB) (*GormSlot, error) {
	if err := db.AutoMigrate(&slotRow{}); err != nil {
		return nil, fmt.Errorf("migrate session slot: %w", err)
	}
	return &GormSlot{db: db}, nil
}

func (s *GormSlot) Load(ctx context.Context) (Record, error) {
	var row slotRow
	err := s.db.WithContext(ctx).First(&row, "slot = ?", slotKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrEmpty
	}
	if err != nil {
		return Record{}, fmt.Errorf("read session: %w", err)
	}
	if row.Token == "" {
		return Record{}, ErrEmpty
	}
	return row.Record, nil
}

func (s *GormSlot) Save(ctx context.Context, rec Record) error {
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now().UTC()
	}
	row := slotRow{Key: slotKey, Record: rec}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *GormSlot) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Delete(&slotRow{}, "slot = ?", slotKey).Error; err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func (s *GormSlot) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
