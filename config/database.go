package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectDB opens the store for the configured dialect and applies the pool
// settings.
func ConnectDB(cfg DatabaseConfig) (*gorm.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is not set")
	}

	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Dialect) {
	case "postgres", "postgresql", "pgx":
		dialector = postgres.Open(cfg.URL)
	case "mysql", "mariadb":
		dsn, err := mysqlDSN(cfg.URL)
		if err != nil {
			return nil, err
		}
		dialector = mysql.Open(dsn)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database dialect %q", cfg.Dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(cfg.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
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

	return db, nil
}

// groupConcatMaxLen lifts the MySQL 1024 byte default so aggregated tag
// lists are not cut short.
const groupConcatMaxLen = "1048576"

// mysqlDSN sets group_concat_max_len as a session variable on every pooled
// connection unless the url already sets it.
func mysqlDSN(url string) (string, error) {
	dsnCfg, err := mysqldriver.ParseDSN(url)
	if err != nil {
		return "", fmt.Errorf("invalid mysql url: %w", err)
	}
	if dsnCfg.Params == nil {
		dsnCfg.Params = map[string]string{}
	}
	if _, ok := dsnCfg.Params["group_concat_max_len"]; !ok {
		dsnCfg.Params["group_concat_max_len"] = groupConcatMaxLen
	}
	return dsnCfg.FormatDSN(), nil
}

// newGormLogger prints failing statements with their parameters.
func newGormLogger(level string) logger.Interface {
	lvl := logger.Warn
	switch strings.ToLower(level) {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info":
		lvl = logger.Info
	}
	return logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
	})
}
