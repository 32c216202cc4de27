package db

import (
	"fmt"
	"net"
	"strings"

	"github.com/smallbiznis/sekarnet/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

// Dialect picks the gorm driver for DATABASE_TYPE. All sessions run in UTC.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DBType)) {
	case DialectPostgres, "postgresql":
		return postgres.Open(postgresDSN(cfg)), nil
	case DialectMySQL:
		return mysql.Open(mysqlDSN(cfg)), nil
	case DialectSQLite:
		path := strings.TrimSpace(cfg.DBPath)
		if path == "" {
			return nil, fmt.Errorf("sqlite requires DATABASE_PATH")
		}
		return sqlite.Open(path + "?_foreign_keys=on"), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.DBType)
	}
}

func postgresDSN(cfg config.Config) string {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, sslMode)
}

func mysqlDSN(cfg config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.DBUser, cfg.DBPassword, net.JoinHostPort(cfg.DBHost, cfg.DBPort), cfg.DBName)
}
