// Package migrations применяет SQL-миграции из каталога migrations.
package migrations

import (
	"errors"
	"fmt"

	"browserPilot/internal/config"
	"browserPilot/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

func Run(cfg *config.Cfg, log *logger.Zap) error {
	m, err := migrate.New(cfg.Migrations.Path, cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn("Ошибка закрытия миграций", zap.NamedError("source", srcErr), zap.NamedError("db", dbErr))
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug("Миграции не требуются")
			return nil
		}
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("ошибка чтения версии схемы: %w", err)
	}
	log.Info("Миграции применены", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
