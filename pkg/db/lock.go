package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate adds a row lock to the statement on dialects that support one.
// SQLite serializes writers on its own and rejects FOR UPDATE.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx == nil || tx.Dialector == nil {
		return tx
	}
	if tx.Dialector.Name() == DialectSQLite {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
