package db

import (
	"log"

	"github.com/cartdotfun/settlement-backend/internal/config"
	"github.com/cartdotfun/settlement-backend/internal/metrics"
	"github.com/cartdotfun/settlement-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB() {
	var err error

	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		log.Fatalf("Database DSN is required")
	}

	dsn := config.AppConfig.Database.DSN

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		DisableAutomaticPing:                     true,
		PrepareStmt:                              true,
		CreateBatchSize:                          1000,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	log.Println("✅ Database connected successfully")
	metrics.DBConnectionStatus.Set(1)

	if sqlDB, err := DB.DB(); err == nil {
		stats := sqlDB.Stats()
		metrics.DBConnectionPoolSize.Set(float64(stats.MaxOpenConnections))
		metrics.DBConnectionActive.Set(float64(stats.InUse))
		metrics.DBConnectionIdle.Set(float64(stats.Idle))
	}

	log.Println("🚀 Starting database schema migration with GORM AutoMigrate...")

	if err := DB.AutoMigrate(
		&models.Balance{},
		&models.LedgerEntry{},
		&models.Deal{},
		&models.Session{},
		&models.Gateway{},
		&models.CrossChainSettlement{},
		&models.ProtocolConfig{},
	); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	log.Println("✅ Database schema migrated successfully")
}
