package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

// migrateDriver wraps db in the golang-migrate driver for driverName.
func migrateDriver(driverName string, db *sql.DB) (database.Driver, error) {
	switch driverName {
	case DriverSQLite:
		return sqlite.WithInstance(db, &sqlite.Config{})
	case DriverMySQL:
		return migratemysql.WithInstance(db, &migratemysql.Config{})
	default:
		return nil, fmt.Errorf("unsupported driver %q", driverName)
	}
}

// RunMigrations brings the schema for driverName up to date and returns the
// resulting version. It uses its own connection since closing the migrate
// instance closes the database underneath.
func RunMigrations(driverName, dsn string) (uint, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return 0, fmt.Errorf("open migration database: %w", err)
	}
	defer db.Close()

	dbDriver, err := migrateDriver(driverName, db)
	if err != nil {
		return 0, fmt.Errorf("create %s migrate driver: %w", driverName, err)
	}
	src, err := iofs.New(migrationsFS, "migrations/"+driverName)
	if err != nil {
		return 0, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, driverName, dbDriver)
	if err != nil {
		return 0, fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}
