package db

//nolint:golint,revive
import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/omni/root-bridge-syncer/config"
)

// Querier is implemented by both DB and Tx, so repositories can run inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type DB struct {
	cfg     *config.DBConfig
	db      *sqlx.DB
	metrics *Metrics
	policy  RetryPolicy
}

func (db *DB) dbURL(prefix string) string {
	return fmt.Sprintf("%s://%s:%s@%s:%d/%s", prefix, db.cfg.User, db.cfg.Password, db.cfg.Host, db.cfg.Port, db.cfg.DB)
}

func NewDB(ctx context.Context, cfg *config.DBConfig, metrics *Metrics) (*DB, error) {
	db := &DB{
		cfg:     cfg,
		metrics: metrics,
		policy: RetryPolicy{
			MaxAttempts: cfg.TxMaxAttempts,
			Backoff:     cfg.TxRetryBackoff,
			Notify:      func(error, time.Duration) {
				metrics.TxRetries.Inc()
			},
		},
	}
	conn, err := sqlx.ConnectContext(ctx, "pgx", db.dbURL("postgres")+"?default_transaction_isolation=serializable")
	if err != nil {
		return nil, fmt.Errorf("can't connect to postgres database: %w", err)
	}
	conn.SetMaxIdleConns(3)
	conn.SetMaxOpenConns(10)
	db.db = conn
	return db, nil
}

// ConnectAndVerify connects to the database, applies migrations if enabled
// and refuses to continue unless the schema is clean and up to date.
func ConnectAndVerify(ctx context.Context, cfg *config.DBConfig, metrics *Metrics) (*DB, error) {
	db, err := NewDB(ctx, cfg, metrics)
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err = db.Migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err = db.CheckSchemaVersion(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	defer db.metrics.ObserveDuration(getCurrentFuncName(2))()
	return db.db.ExecContext(ctx, query, args...)
}

func (db *DB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	defer db.metrics.ObserveDuration(getCurrentFuncName(2))()
	err := db.db.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (db *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	defer db.metrics.ObserveDuration(getCurrentFuncName(2))()
	return db.db.SelectContext(ctx, dest, query, args...)
}

// RunInTx executes fn inside a SERIALIZABLE transaction, retrying the whole
// unit of work on serialization conflicts.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	return Retry(ctx, db.policy, IsSerializationFailure, func(ctx context.Context) error {
		return db.runInTxOnce(ctx, fn)
	})
}

func (db *DB) runInTxOnce(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	tx, err := db.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("can't begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.metrics.TxRollbackErrors.Inc()
		}
	}()

	if err = fn(ctx, &Tx{tx: tx, metrics: db.metrics}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("can't commit transaction: %w", err)
	}
	return nil
}

type Tx struct {
	tx      *sqlx.Tx
	metrics *Metrics
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	defer tx.metrics.ObserveDuration(getCurrentFuncName(2))()
	return tx.tx.ExecContext(ctx, query, args...)
}

func (tx *Tx) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	defer tx.metrics.ObserveDuration(getCurrentFuncName(2))()
	err := tx.tx.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (tx *Tx) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	defer tx.metrics.ObserveDuration(getCurrentFuncName(2))()
	return tx.tx.SelectContext(ctx, dest, query, args...)
}

func getCurrentFuncName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	details := runtime.FuncForPC(pc)
	if details == nil {
		return "unknown"
	}
	name := details.Name()
	name = name[strings.LastIndex(name, ".")+1:]
	name = strings.TrimPrefix(name, "(*")
	name = strings.Replace(name, ")", "", 1)
	return name
}
