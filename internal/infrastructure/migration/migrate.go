package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Migrator handles database migrations using golang-migrate
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New creates a Migrator that reads migrations from fsys (usually
// migrations.FS) and applies them to db
func New(db *sql.DB, fsys fs.FS, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &zapMigrateLogger{logger: logger}

	return &Migrator{
		migrate: m,
		logger:  logger,
	}, nil
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	m.logger.Info("Running migrations up")

	err := m.migrate.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("No migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}

	m.logger.Info("Migrations completed",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)

	return nil
}

// Down rolls back all migrations
func (m *Migrator) Down() error {
	m.logger.Info("Running migrations down")

	err := m.migrate.Down()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("No migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}

	m.logger.Info("All migrations rolled back")
	return nil
}

// Steps applies n migrations (positive = up, negative = down)
func (m *Migrator) Steps(n int) error {
	m.logger.Info("Running migration steps", zap.Int("steps", n))

	err := m.migrate.Steps(n)
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("No migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration steps failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}

	m.logger.Info("Migration steps completed",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)

	return nil
}

// Version returns the current migration version, 0 when none is applied
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Force sets the migration version without running migrations.
// Only for clearing a dirty state after a failed migration was fixed by hand.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))

	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}

	m.logger.Info("Migration version forced", zap.Int("version", version))
	return nil
}

// Close closes the migrator and releases resources
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("failed to close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

// zapMigrateLogger adapts zap to migrate.Logger
type zapMigrateLogger struct {
	logger *zap.Logger
}

func (l *zapMigrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *zapMigrateLogger) Verbose() bool {
	return l.logger.Core().Enabled(zap.DebugLevel)
}

// ---------------------------------------------------------------------------
// Listing
// ---------------------------------------------------------------------------

// MigrationInfo describes one migration version found in a source
type MigrationInfo struct {
	Version    uint
	Identifier string
	HasDown    bool
}

// ListMigrations returns the migrations available in fsys in version order
func ListMigrations(fsys fs.FS) ([]MigrationInfo, error) {
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}
	defer src.Close()

	var result []MigrationInfo
	version, err := src.First()
	for err == nil {
		info, infoErr := describe(src, version)
		if infoErr != nil {
			return nil, infoErr
		}
		result = append(result, info)
		version, err = src.Next(version)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	return result, nil
}

func describe(src source.Driver, version uint) (MigrationInfo, error) {
	up, identifier, err := src.ReadUp(version)
	if err != nil {
		return MigrationInfo{}, fmt.Errorf("failed to read migration %d: %w", version, err)
	}
	_ = up.Close()

	info := MigrationInfo{Version: version, Identifier: identifier}
	down, _, err := src.ReadDown(version)
	if err == nil {
		_ = down.Close()
		info.HasDown = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return MigrationInfo{}, fmt.Errorf("failed to read migration %d: %w", version, err)
	}
	return info, nil
}
