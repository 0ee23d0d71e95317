package database

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config controls the PostgreSQL pool backing the chat, message and user tables.
type Config struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	// CreateIfMissing creates the target database through the postgres
	// maintenance database before connecting.
	CreateIfMissing bool
	SlowQuery       time.Duration
	LogLevel        gormlogger.LogLevel
}

// Connect opens the pool and applies the pool limits in cfg. GORM output goes
// to log under the "database" component.
func Connect(cfg Config, log zerolog.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("database DSN is empty")
	}

	if cfg.CreateIfMissing {
		created, err := ensureDatabaseExists(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("ensure database: %w", err)
		}
		if created {
			log.Info().Str("database", databaseName(cfg.DSN)).Msg("created missing database")
		}
	}

	level := cfg.LogLevel
	if level == 0 {
		level = gormlogger.Warn
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
		Logger:         newGormLogger(log, cfg.SlowQuery).LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("retrieve sql db: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	log.Info().
		Str("database", databaseName(cfg.DSN)).
		Int("max_open", cfg.MaxOpenConns).
		Int("max_idle", cfg.MaxIdleConns).
		Msg("database pool ready")
	return db, nil
}

// Close releases the connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsUniqueViolation reports whether err comes from a unique constraint, such as
// the one guarding concurrent get-or-create of direct and project chats.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// databaseName returns the database a URL DSN points at, or "" for key=value DSNs.
func databaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

func ensureDatabaseExists(dsn string) (bool, error) {
	name := databaseName(dsn)
	if name == "" || name == "postgres" {
		return false, nil
	}

	u, _ := url.Parse(dsn)
	maintenance := *u
	maintenance.Path = "/postgres"

	admin, err := sql.Open("postgres", maintenance.String())
	if err != nil {
		return false, err
	}
	defer admin.Close()

	var exists bool
	if err := admin.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if _, err := admin.Exec("CREATE DATABASE " + quoteIdentifier(name)); err != nil {
		return false, err
	}
	return true, nil
}

func quoteIdentifier(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
