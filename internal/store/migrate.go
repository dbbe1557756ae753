package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/mindloop/migrations"
)

// Migrate applies the Postgres schema. An empty dir uses the embedded
// migrations; otherwise dir is a source URL such as file://migrations.
// steps <= 0 runs all pending migrations in direction.
func Migrate(dir, dsn, direction string, steps int, logger *zap.Logger) error {
	if dsn == "" {
		return errors.New("migrate: postgres dsn is empty")
	}
	var (
		m   *migrate.Migrate
		err error
	)
	if dir == "" {
		src, serr := iofs.New(migrations.FS, ".")
		if serr != nil {
			return fmt.Errorf("migrate: embedded source: %w", serr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, dsn)
	} else {
		m, err = migrate.New(dir, dsn)
	}
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer m.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return fmt.Errorf("migrate: unknown direction %q", direction)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	if logger != nil {
		version, dirty, verr := m.Version()
		if verr == nil {
			logger.Info("migrations applied", zap.String("direction", direction), zap.Uint("version", version), zap.Bool("dirty", dirty))
		}
	}
	return nil
}
