package infra

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vpn-console/devserver/internal/model"
)

// OpenDB opens the sqlite database at path (":memory:" works for tests) and
// migrates every model.
func OpenDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Exec("PRAGMA foreign_keys = ON;").Error; err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.User{},
		&model.Device{},
		&model.RefreshToken{},
		&model.BandwidthLimit{},
		&model.TrafficSample{},
		&model.AuditLog{},
		&model.Alert{},
	); err != nil {
		return nil, err
	}
	return db, nil
}
