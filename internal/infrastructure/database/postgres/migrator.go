package postgres

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/KeyQTO/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded schema migrations.
type Migrator struct {
	conn   *Connection
	logger logging.Logger
}

// NewMigrator returns a migrator over conn.
func NewMigrator(conn *Connection, logger logging.Logger) *Migrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Migrator{conn: conn, logger: logger}
}

func (m *Migrator) instance() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeInternal, "failed to open embedded migrations")
	}
	driver, err := migratepg.WithInstance(m.conn.DB(), &migratepg.Config{})
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to create migration driver")
	}
	mg, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	return mg, nil
}

// Up applies every pending migration.  An up-to-date schema is not an error.
func (m *Migrator) Up() error {
	mg, err := m.instance()
	if err != nil {
		return err
	}
	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to run migrations")
	}
	version, dirty, _ := mg.Version()
	m.logger.Info("database migrations applied", logging.Int64("version", int64(version)), logging.Bool("dirty", dirty))
	return nil
}

// Down rolls back steps migrations.
func (m *Migrator) Down(steps int) error {
	if steps <= 0 {
		return pkgerrors.Newf(pkgerrors.CodeInvalidParam, "steps must be greater than 0, got %d", steps)
	}
	mg, err := m.instance()
	if err != nil {
		return err
	}
	if err := mg.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to roll back migrations")
	}
	return nil
}

// Version reports the applied version.  A fresh database is version 0.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	mg, err := m.instance()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = mg.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to read migration version")
	}
	return version, dirty, nil
}

// MigrationNames lists the embedded migration files.
func MigrationNames() ([]string, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

//Personal.AI order the ending
