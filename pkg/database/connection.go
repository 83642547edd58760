package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Tables owned by the player store
const (
	PlayersTable      = "fpl_players"
	SnapshotMetaTable = "fpl_snapshot_meta"
)

var ErrPlayerTablesMissing = errors.New("player tables are missing")

// DB is the player database handle
type DB struct {
	*gorm.DB
}

// ConnectionConfig describes the player database. Dialector overrides
// DatabaseURL, which is how tests swap in SQLite.
type ConnectionConfig struct {
	DatabaseURL     string
	Dialector       gorm.Dialector
	IsDevelopment   bool
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SlowQuery       time.Duration
	Logger          *logrus.Logger
}

// DefaultConnectionConfig sizes the pool for a read-mostly snapshot table: a
// load on start and on each reload, a bulk replace from the import command.
func DefaultConnectionConfig(databaseURL string) ConnectionConfig {
	return ConnectionConfig{
		DatabaseURL:     databaseURL,
		MaxIdleConns:    2,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
		SlowQuery:       500 * time.Millisecond,
	}
}

// NewConnection opens the player database with the default pool settings
func NewConnection(databaseURL string, isDevelopment bool) (*DB, error) {
	cfg := DefaultConnectionConfig(databaseURL)
	cfg.IsDevelopment = isDevelopment
	return NewConnectionWithConfig(cfg)
}

func NewConnectionWithConfig(config ConnectionConfig) (*DB, error) {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	dialector := config.Dialector
	if dialector == nil {
		dialector = postgres.Open(config.DatabaseURL)
	}

	logLevel := gormlogger.Warn
	if config.IsDevelopment {
		logLevel = gormlogger.Info
	}

	// a missing snapshot meta row is an expected first-run state, not an error
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(config.Logger, gormlogger.Config{
			SlowThreshold:             config.SlowQuery,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to player database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping player database: %w", err)
	}

	config.Logger.WithFields(logrus.Fields{
		"dialect":           db.Dialector.Name(),
		"max_idle_conns":    config.MaxIdleConns,
		"max_open_conns":    config.MaxOpenConns,
		"conn_max_lifetime": config.ConnMaxLifetime,
	}).Info("Player database connection established")

	return &DB{DB: db}, nil
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// MissingPlayerTables lists the player store tables that do not exist yet
func (db *DB) MissingPlayerTables(ctx context.Context) []string {
	migrator := db.WithContext(ctx).Migrator()
	var missing []string
	for _, table := range []string{PlayersTable, SnapshotMetaTable} {
		if !migrator.HasTable(table) {
			missing = append(missing, table)
		}
	}
	return missing
}

// HealthCheck pings the database and confirms the player tables are in place,
// so a server pointed at an unmigrated database reports degraded.
func (db *DB) HealthCheck() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	if missing := db.MissingPlayerTables(ctx); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrPlayerTablesMissing, strings.Join(missing, ", "))
	}
	return nil
}
