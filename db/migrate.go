package db

//nolint:golint,revive
import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	ErrDirtyMigration        = errors.New("database schema is dirty")
	ErrSchemaVersionMismatch = errors.New("database schema version mismatch")
)

func (db *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("can't read embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, db.dbURL("pgx"))
	if err != nil {
		return nil, fmt.Errorf("can't connect to postgres database: %w", err)
	}
	return m, nil
}

func (db *DB) Migrate() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("can't apply postgres database migrations: %w", err)
	}
	return nil
}

// CheckSchemaVersion fails unless the applied schema matches the latest embedded migration.
func (db *DB) CheckSchemaVersion() error {
	expected, err := LatestMigrationVersion()
	if err != nil {
		return err
	}

	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("no migrations applied, expected version %d: %w", expected, ErrSchemaVersionMismatch)
	}
	if err != nil {
		return fmt.Errorf("can't read database schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("version %d: %w", version, ErrDirtyMigration)
	}
	if version != expected {
		return fmt.Errorf("database has version %d, expected %d: %w", version, expected, ErrSchemaVersionMismatch)
	}
	return nil
}

func LatestMigrationVersion() (uint, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("can't read embedded migrations: %w", err)
	}
	defer src.Close()

	return latestVersion(src)
}

func latestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("can't find first migration: %w", err)
	}
	for {
		next, err := src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			return version, nil
		}
		if err != nil {
			return 0, fmt.Errorf("can't find migration after %d: %w", version, err)
		}
		version = next
	}
}
