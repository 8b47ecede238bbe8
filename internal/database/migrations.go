package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Отдельная таблица версий: база может быть общей с другими сервисами.
const migrationsTable = "gamebook_schema_migrations"

// ErrDirtySchema предыдущая миграция прервалась, нужна ручная правка.
var ErrDirtySchema = errors.New("draft journal schema is dirty")

// withMigrate открывает migrate поверх пула и закрывает его после fn.
// Закрытие sql.DB из OpenDBFromPool не закрывает сам пул.
func withMigrate(ctx context.Context, pool *pgxpool.Pool, fn func(m *migrate.Migrate) error) error {
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	driver, err := postgres.WithInstance(stdlib.OpenDBFromPool(pool), &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create source driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	m.LockTimeout = 30 * time.Second
	defer m.Close()
	return fn(m)
}

func version(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return v, dirty, nil
}

// ApplyMigrations применяет встроенные миграции журнала черновиков.
// Повторный вызов на актуальной схеме ничего не делает.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	return withMigrate(ctx, pool, func(m *migrate.Migrate) error {
		before, dirty, err := version(m)
		if err != nil {
			return err
		}
		if dirty {
			return fmt.Errorf("%w at version %d", ErrDirtySchema, before)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to apply draft journal migrations: %w", err)
		}
		after, _, err := version(m)
		if err != nil {
			return err
		}
		logger.Info("Draft journal schema ready", zap.Uint("from", before), zap.Uint("to", after), zap.String("table", migrationsTable))
		return nil
	})
}

// RollbackMigrations откатывает steps последних миграций.
func RollbackMigrations(ctx context.Context, pool *pgxpool.Pool, steps int, logger *zap.Logger) error {
	if steps <= 0 {
		return nil
	}
	return withMigrate(ctx, pool, func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to rollback %d draft journal migrations: %w", steps, err)
		}
		logger.Warn("Draft journal migrations rolled back", zap.Int("steps", steps))
		return nil
	})
}

// SchemaVersion текущая версия схемы журнала и признак незавершенной миграции.
func SchemaVersion(ctx context.Context, pool *pgxpool.Pool) (uint, bool, error) {
	var (
		v     uint
		dirty bool
	)
	err := withMigrate(ctx, pool, func(m *migrate.Migrate) error {
		var err error
		v, dirty, err = version(m)
		return err
	})
	return v, dirty, err
}
