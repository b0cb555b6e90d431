package db

import (
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	level := gormlogger.Warn
	if !cfg.IsProd() {
		level = gormlogger.Info
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxOpenConns / 2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Info("database connected", zap.String("host", cfg.PostgresHost), zap.Int("max_open_conns", cfg.DBMaxOpenConns))
	return gdb, nil
}

// テーブル作成（productsのCHECK制約もここで入る）
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
		&model.AuditLog{},
	)
}
