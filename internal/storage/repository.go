// Package storage persists users, assets and the import log in SQLite or MySQL.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"asetmon/internal/core"
)

// insertChunk bounds the rows per multi-row INSERT.
const insertChunk = 100

const assetColumns = "nama_aset, nomor_aset, tahun, nilai, kondisi, alamat, jenis_aset, kph, sub_kph, luas"

// Options configures Open.
type Options struct {
	Driver          string
	DSN             string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
	WriteTimeout    time.Duration
}

type Repository struct {
	db           *sql.DB
	driver       string
	queryTimeout time.Duration
	writeTimeout time.Duration
	schema       uint
}

// Open connects, verifies connectivity and applies migrations.
func Open(ctx context.Context, opts Options) (*Repository, error) {
	dsn := opts.DSN
	if opts.Driver == DriverSQLite {
		if opts.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		if err := os.MkdirAll(filepath.Dir(opts.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = SQLiteDSN(opts.SQLitePath)
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Driver, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	r := &Repository{
		db:           db,
		driver:       opts.Driver,
		queryTimeout: orDefault(opts.QueryTimeout, 5*time.Second),
		writeTimeout: orDefault(opts.WriteTimeout, 60*time.Second),
	}

	if err := r.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	version, err := RunMigrations(opts.Driver, dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	r.schema = version
	return r, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Driver() string { return r.driver }

// SchemaVersion is the migration version applied by Open.
func (r *Repository) SchemaVersion() uint { return r.schema }

// Ping checks that the database answers within the query timeout.
func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}

// FindUsers returns every credentials row with the given username.
func (r *Repository) FindUsers(ctx context.Context, username string) ([]core.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, password, nama, role FROM users WHERE username = ? ORDER BY id`, username)
	if err != nil {
		return nil, classify("find users", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Password, &u.DisplayName, &u.Role); err != nil {
			return nil, classify("scan user", err)
		}
		users = append(users, u)
	}
	return users, classify("iterate users", rows.Err())
}

// CreateUser inserts a credentials row. Password must already be hashed.
func (r *Repository) CreateUser(ctx context.Context, u core.User) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password, nama, role) VALUES (?, ?, ?, ?)`,
		u.Username, u.Password, u.DisplayName, u.Role)
	if err != nil {
		return 0, classify("create user", err)
	}
	return res.LastInsertId()
}

// SetPassword replaces the stored password of every row named username.
func (r *Repository) SetPassword(ctx context.Context, username, hash string) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE users SET password = ? WHERE username = ?`, hash, username)
	if err != nil {
		return classify("set password", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("set password", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListAssets returns every asset in insertion order.
func (r *Repository) ListAssets(ctx context.Context) ([]core.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT id, `+assetColumns+` FROM assets ORDER BY id`)
	if err != nil {
		return nil, classify("list assets", err)
	}
	defer rows.Close()

	assets := []core.Asset{}
	for rows.Next() {
		var (
			a    core.Asset
			year sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Number, &year, &a.Value, &a.Condition,
			&a.Address, &a.Type, &a.Region, &a.SubRegion, &a.Area); err != nil {
			return nil, classify("scan asset", err)
		}
		if year.Valid {
			a.Year = core.IntPtr(int(year.Int64))
		}
		assets = append(assets, a)
	}
	return assets, classify("iterate assets", rows.Err())
}

// ReplaceAssets deletes every asset and inserts assets in one transaction,
// recording rec in the import log. On any failure nothing changes.
func (r *Repository) ReplaceAssets(ctx context.Context, assets []core.Asset, rec core.ImportRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	return r.runInTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM assets`); err != nil {
			return fmt.Errorf("delete assets: %w", err)
		}
		for start := 0; start < len(assets); start += insertChunk {
			end := min(start+insertChunk, len(assets))
			query, args := insertAssetsQuery(assets[start:end])
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert assets %d-%d: %w", start, end, err)
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO import_log (id, rows_count, warnings, source, imported_by, imported_at) VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Rows, rec.Warnings, rec.Source, rec.ImportedBy, rec.ImportedAt.Unix())
		if err != nil {
			return fmt.Errorf("record import: %w", err)
		}
		return nil
	})
}

func insertAssetsQuery(assets []core.Asset) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO assets (" + assetColumns + ") VALUES ")
	args := make([]any, 0, len(assets)*10)
	for i, a := range assets {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		var year any
		if a.Year != nil {
			year = *a.Year
		}
		args = append(args, a.Name, a.Number, year, a.Value, a.Condition,
			a.Address, a.Type, a.Region, a.SubRegion, a.Area)
	}
	return b.String(), args
}

// runInTx begins a transaction, runs fn and commits. Begin failures are
// reported as unavailability; everything after as a write failure.
func (r *Repository) runInTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %v", core.ErrStoreUnavailable, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return fmt.Errorf("%w: %v", core.ErrStoreWriteFailure, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w: %v", core.ErrStoreWriteFailure, err)
	}
	return nil
}

// LastImport returns the most recent import, or nil when there is none.
func (r *Repository) LastImport(ctx context.Context) (*core.ImportRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	var (
		rec core.ImportRecord
		at  int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, rows_count, warnings, source, imported_by, imported_at FROM import_log ORDER BY imported_at DESC, id DESC LIMIT 1`).
		Scan(&rec.ID, &rec.Rows, &rec.Warnings, &rec.Source, &rec.ImportedBy, &at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("last import", err)
	}
	rec.ImportedAt = time.Unix(at, 0).UTC()
	return &rec, nil
}
