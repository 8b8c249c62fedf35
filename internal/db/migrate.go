package db

import (
	"embed"
	"errors"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mongodb"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"

	"github.com/projecthub/apiserver/config"
)

//go:embed migrations/*.json
var migrationsFS embed.FS

// Migrator applies the index migrations embedded in the binary.
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator prepares a migrator against the configured database.
func NewMigrator(cfg config.Config) (*Migrator, error) {
	migrateURL, err := MigrationURL(cfg)
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL)
	if err != nil {
		_ = source.Close()
		return nil, oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	return &Migrator{m: m}, nil
}

// MigrationURL returns the connection string with the database name in its
// path, which is where the mongodb migrate driver reads it from.
func MigrationURL(cfg config.Config) (string, error) {
	raw := strings.TrimSpace(cfg.Database.URI)
	if raw == "" {
		return "", oops.Code("MIGRATION_INIT_FAILED").Errorf("database url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", oops.Code("MIGRATION_INIT_FAILED").Wrapf(err, "parse database url")
	}
	if name := strings.TrimSpace(cfg.Database.Name); name != "" {
		u.Path = "/" + name
	}
	return u.String(), nil
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls back every migration, dropping the indexes.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Version returns the applied version. Zero means nothing has been applied.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}
