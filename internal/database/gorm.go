package database

import (
	"fmt"

	"leadboard/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenSQLite opens the mirror database stored in a sqlite file (or ":memory:").
func OpenSQLite(path string, log logger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}
	return migrate(db)
}

// OpenPostgres opens the mirror database on PostgreSQL.
func OpenPostgres(dsn string, log logger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return migrate(db)
}

func migrate(db *gorm.DB) (*gorm.DB, error) {
	if err := db.AutoMigrate(&models.MirrorDocument{}); err != nil {
		return nil, fmt.Errorf("auto-migrate mirror documents: %w", err)
	}
	return db, nil
}
