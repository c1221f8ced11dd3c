package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	// Register database postgres
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	// Register golang migrate source
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	// Register database pgx
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"go.nhat.io/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
)

//go:embed migrations/*.sql
var fs embed.FS

const (
	defaultQueryTimeout = 10 * time.Second
	pgDriverName        = "pgx"
	instanceName        = "marmot"
)

var (
	tracedDriver     string
	tracedDriverErr  error
	registerDriver sync.Once
)

// driverName wraps the pgx driver once so every statement is traced.
func driverName() (string, error) {
	registerDriver.Do(func() {
		tracedDriver, tracedDriverErr = otelsql.Register(
			pgDriverName,
			otelsql.TraceQueryWithoutArgs(),
			otelsql.TraceRowsClose(),
			otelsql.TraceRowsAffected(),
			otelsql.WithSystem(semconv.DBSystemPostgreSQL),
			otelsql.WithInstanceName(instanceName),
		)
	})
	return tracedDriver, tracedDriverErr
}

// Client wraps sqlx and bounds every statement with the configured timeout.
type Client struct {
	db           *sqlx.DB
	queryTimeout time.Duration
}

// NewClient opens a traced connection pool. The connection is lazy, call
// Ping to find out whether the database is reachable.
func NewClient(cfg Config) (*Client, error) {
	driver, err := driverName()
	if err != nil {
		return nil, fmt.Errorf("register traced driver: %w", err)
	}
	db, err := sqlx.Open(driver, cfg.ConnectionURL().String())
	if err != nil {
		return nil, fmt.Errorf("error creating DB: %w", err)
	}
	if db == nil {
		return nil, errNilDBClient
	}
	if err := otelsql.RecordStats(
		db.DB,
		otelsql.WithSystem(semconv.DBSystemPostgreSQL),
		otelsql.WithInstanceName(instanceName),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("record db stats: %w", err)
	}
	// sqlx picks the bind type from the driver name, the wrapped name is
	// unknown to it.
	db = sqlx.NewDb(db.DB, pgDriverName)
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return &Client{db: db, queryTimeout: cfg.QueryTimeout}, nil
}

// NewClientWithDB wraps an already opened pgx database.
func NewClientWithDB(db *sql.DB) *Client {
	return &Client{db: sqlx.NewDb(db, "pgx")}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.queryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (c *Client) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	qctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.db.GetContext(qctx, dest, query, args...)
}

func (c *Client) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	qctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.db.SelectContext(qctx, dest, query, args...)
}

func (c *Client) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	qctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.db.ExecContext(qctx, query, args...)
}

// RunWithinTx runs f inside a transaction that is committed when f returns
// nil and rolled back otherwise.
func (c *Client) RunWithinTx(ctx context.Context, f func(tx *sqlx.Tx) error) error {
	qctx, cancel := c.withTimeout(ctx)
	defer cancel()

	tx, err := c.db.BeginTxx(qctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	if err := f(tx); err != nil {
		if txErr := tx.Rollback(); txErr != nil && !errors.Is(txErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback transaction error: %v (original error: %w)", txErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (c *Client) Migrate(cfg Config) (ver uint, err error) {
	m, err := initMigration(cfg)
	if err != nil {
		return 0, fmt.Errorf("migration failed: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migration failed: %w", err)
	}
	if ver, _, err = m.Version(); err != nil {
		return ver, err
	}
	return ver, nil
}

func (c *Client) MigrateDown(cfg Config) (ver uint, err error) {
	m, err := initMigration(cfg)
	if err != nil {
		return 0, fmt.Errorf("migration failed: %w", err)
	}
	defer m.Close()

	// down one step
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migration failed: %w", err)
	}
	if ver, _, err = m.Version(); err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return ver, err
	}
	return ver, nil
}

// ExecQueries is used for executing list of db query
func (c *Client) ExecQueries(ctx context.Context, queries []string) error {
	for _, query := range queries {
		if _, err := c.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	qctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.db.PingContext(qctx)
}

func (c *Client) Close() error {
	return c.db.Close()
}

func initMigration(cfg Config) (*migrate.Migrate, error) {
	iofsDriver, err := iofs.New(fs, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", iofsDriver, cfg.ConnectionURL().String())
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return m, nil
}

func isValidUUID(u string) bool {
	_, err := uuid.Parse(u)
	return err == nil
}
