// Package dbx wraps GORM with connection pooling, transaction helpers, and
// a slog-routed query logger.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wyfcoding/simtrading/internal/platform/logging"
)

// Config controls the database connection.
type Config struct {
	Driver             string `mapstructure:"driver"`
	DSN                string `mapstructure:"dsn"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    int    `mapstructure:"conn_max_lifetime"`
	LogEnabled         bool   `mapstructure:"log_enabled"`
	SlowQueryThreshold int    `mapstructure:"slow_query_threshold"`
}

// DB wraps *gorm.DB with the original config, for Close/pool introspection.
type DB struct {
	*gorm.DB
	config Config
}

// Init opens a connection per cfg.Driver ("mysql" for the service binary,
// "sqlite" for in-memory tests) and verifies it with a ping.
func Init(cfg Config) (*DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormLogger := NewGormLogger(cfg.LogEnabled, time.Duration(cfg.SlowQueryThreshold)*time.Millisecond)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logging.Info(context.Background(), "database connected", "driver", cfg.Driver)
	return &DB{DB: db, config: cfg}, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn inside a transaction, rolling back on error or panic and
// committing otherwise. Every ledger mutation in this system goes through
// this helper so its balance change and history row commit atomically.
func (d *DB) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := d.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// WithTxIsolation is WithTx with an explicit isolation level.
func (d *DB) WithTxIsolation(ctx context.Context, isolation string, fn func(tx *gorm.DB) error) error {
	tx := d.DB.WithContext(ctx).Begin(&sql.TxOptions{Isolation: parseIsolation(isolation)})
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func parseIsolation(isolation string) sql.IsolationLevel {
	switch isolation {
	case "READ_UNCOMMITTED":
		return sql.LevelReadUncommitted
	case "READ_COMMITTED":
		return sql.LevelReadCommitted
	case "REPEATABLE_READ":
		return sql.LevelRepeatableRead
	case "SERIALIZABLE":
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

// GormLogger routes GORM's query trace through internal/platform/logging.
type GormLogger struct {
	enabled            bool
	slowQueryThreshold time.Duration
}

// NewGormLogger builds a GormLogger.
func NewGormLogger(enabled bool, slowQueryThreshold time.Duration) *GormLogger {
	return &GormLogger{enabled: enabled, slowQueryThreshold: slowQueryThreshold}
}

func (l *GormLogger) LogMode(logger.LogLevel) logger.Interface { return l }

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.enabled {
		logging.Info(ctx, msg, "data", data)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	logging.Warn(ctx, msg, "data", data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	logging.Error(ctx, msg, "data", data)
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if !l.enabled {
		return
	}
	elapsed := time.Since(begin)
	sqlStr, rows := fc()
	args := []interface{}{"duration", elapsed, "rows", rows, "sql", sqlStr}

	switch {
	case err != nil:
		args = append(args, "error", err)
		logging.Error(ctx, "sql execution failed", args...)
	case elapsed > l.slowQueryThreshold:
		logging.Warn(ctx, "slow query detected", args...)
	default:
		logging.Debug(ctx, "sql executed", args...)
	}
}
