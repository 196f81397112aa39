package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/doc-ingest/internal/common"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB is a database/sql handle plus what the repositories need to build
// queries for the underlying driver.
type DB struct {
	*sql.DB
	Driver      string
	Placeholder squirrel.PlaceholderFormat
	pool        *pgxpool.Pool
}

// Open connects to Postgres through a pgx pool or to SQLite through modernc,
// depending on cfg.Driver, and pings the database once.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	logger.Info("repository.db.connecting", "driver", cfg.Driver)
	var (
		db  *DB
		err error
	)
	switch cfg.Driver {
	case DriverPostgres:
		db, err = openPostgres(ctx, cfg)
	case DriverSQLite, "":
		db, err = openSQLite(cfg)
	default:
		err = fmt.Errorf("%w: unsupported driver %q", common.ErrInvalidInput, cfg.Driver)
	}
	if err != nil {
		logger.Error("repository.db.connect_failed", "driver", cfg.Driver, "error", err)
		return nil, common.NewAppError(common.CodeDatabase, "open database", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}

	if err := db.HealthCheck(ctx, cfg.DialTimeout); err != nil {
		logger.Error("repository.db.ping_failed", "driver", cfg.Driver, "error", err)
		db.Close(logger)
		return nil, common.NewAppError(common.CodeDatabase, "ping database", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	logger.Info("repository.db.connected", "driver", db.Driver)
	return db, nil
}

func openPostgres(ctx context.Context, cfg common.DatabaseConfig) (*DB, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "doc-ingest"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	return &DB{
		DB:          stdlib.OpenDBFromPool(pool),
		Driver:      DriverPostgres,
		Placeholder: squirrel.Dollar,
		pool:        pool,
	}, nil
}

func openSQLite(cfg common.DatabaseConfig) (*DB, error) {
	sdb, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// one writer at a time; also keeps ":memory:" databases on a single connection
	sdb.SetMaxOpenConns(1)
	if cfg.MaxConnLifetime > 0 {
		sdb.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
	return &DB{DB: sdb, Driver: DriverSQLite, Placeholder: squirrel.Question}, nil
}

// Close closes the database connections gracefully
func (db *DB) Close(logger *slog.Logger) {
	logger.Info("repository.db.closing")
	if err := db.DB.Close(); err != nil {
		logger.Error("repository.db.close_failed", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
}

// HealthCheck pings the database to catch DSN issues early.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return db.PingContext(ctx)
}

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the embedded migrations with golang-migrate. The DDL is
// shared by both drivers. Canceling ctx stops after the current migration.
func (db *DB) Migrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return migrateError(err)
	}
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return migrateError(err)
	}

	// The driver's Close closes the *sql.DB it was given. Postgres migrates
	// through a separate handle over the same pool so it can be closed; the
	// SQLite handle is the only one and must stay open.
	var driver database.Driver
	switch db.Driver {
	case DriverPostgres:
		driver, err = migratepgx.WithInstance(stdlib.OpenDBFromPool(db.pool), &migratepgx.Config{})
	default:
		driver, err = migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	}
	if err != nil {
		src.Close()
		return migrateError(err)
	}

	m, err := migrate.NewWithInstance("iofs", src, db.Driver, driver)
	if err != nil {
		src.Close()
		return migrateError(err)
	}
	if db.Driver == DriverPostgres {
		defer m.Close()
	} else {
		defer src.Close()
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return migrateError(err)
	}
	return nil
}

func migrateError(err error) error {
	return common.NewAppError(common.CodeDatabase, "migrate", fmt.Errorf("%w: %w", common.ErrDatabase, err))
}
