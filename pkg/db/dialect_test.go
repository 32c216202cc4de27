package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/smallbiznis/sekarnet/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDialect(t *testing.T) {
	cfg := config.Config{
		DBType: "POSTGRES", DBHost: "db", DBPort: "5432", DBUser: "portal",
		DBPassword: "pw", DBName: "sekar_net",
	}
	d, err := Dialect(cfg)
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d.Name())
	assert.Contains(t, postgresDSN(cfg), "sslmode=disable")

	cfg.DBType = DialectMySQL
	assert.Equal(t, "portal:pw@tcp(db:5432)/sekar_net?charset=utf8mb4&parseTime=True&loc=UTC", mysqlDSN(cfg))

	_, err = Dialect(config.Config{DBType: DialectSQLite})
	assert.Error(t, err)

	_, err = Dialect(config.Config{DBType: "oracle"})
	assert.Error(t, err)
}

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: users.username")))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062: Duplicate entry 'x' for key 'code'")))
}

func TestIsDuplicateKeyErrFromSQLite(t *testing.T) {
	conn, err := NewTest()
	require.NoError(t, err)

	type item struct {
		ID   int64  `gorm:"primaryKey"`
		Code string `gorm:"uniqueIndex"`
	}
	require.NoError(t, conn.AutoMigrate(&item{}))
	require.NoError(t, conn.Create(&item{ID: 1, Code: "HOME-20"}).Error)

	err = conn.Create(&item{ID: 2, Code: "HOME-20"}).Error
	require.Error(t, err)
	assert.True(t, IsDuplicateKeyErr(err))
}
