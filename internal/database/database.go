package database

import (
	"fmt"
	"time"

	"browserPilot/internal/config"
	"browserPilot/internal/logger"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Database struct {
	DB *gorm.DB
}

// New подключается к PostgreSQL. Схему создают миграции, AutoMigrate не используется.
func New(cfg *config.Cfg, log *logger.Zap) (*Database, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		PrepareStmt: true,
		Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пула соединений: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("БД недоступна: %w", err)
	}

	log.Info("Подключение к БД установлено",
		zap.String("host", cfg.Database.Host),
		zap.String("db", cfg.Database.Name))

	return &Database{DB: db}, nil
}

func (d *Database) Close(log *logger.Zap) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		log.Error("Ошибка закрытия БД", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error("Ошибка закрытия БД", zap.Error(err))
	}
}
