/**
 * @description
 * PostgreSQL connection manager using GORM.
 * Handles connection pooling, log-level selection by environment, and the
 * forensic schema's auto-migration.
 *
 * @dependencies
 * - gorm.io/gorm: ORM library
 * - gorm.io/driver/postgres: Postgres driver
 */

package dbconn

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/polysleuth/forensics/internal/config"
	"github.com/polysleuth/forensics/internal/logger"
	"github.com/polysleuth/forensics/internal/models"
)

// ConnectPostgres initializes the PostgreSQL connection and migrates the
// forensic schema.
func ConnectPostgres(cfg *config.Config) (*gorm.DB, error) {
	gormLogLevel := gormLogger.Error
	if cfg.Server.Env == "development" {
		gormLogLevel = gormLogger.Info
	} else if cfg.Server.Env == "staging" {
		gormLogLevel = gormLogger.Warn
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DB.URL,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.AutoMigrate(&models.Trade{}, &models.Evidence{}, &models.Alert{}, &models.Market{}, &models.SyncState{}); err != nil {
		return nil, err
	}

	logger.Info("connected to postgres")
	return db, nil
}
