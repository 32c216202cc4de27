package db

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testSeq atomic.Int64

// NewTest opens an isolated in-memory SQLite database.
// The pool is pinned to one connection so every statement sees the same schema.
func NewTest() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:sekarnet_test_%d?mode=memory", testSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return conn, nil
}
