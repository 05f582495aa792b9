package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Transactor runs a function inside a single database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor creates a Transactor over db
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}

// lockingSupported reports whether the dialect understands SELECT ... FOR UPDATE.
// SQLite has no row locks; its single writer connection already serializes transactions.
func lockingSupported(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

func forUpdate(db *gorm.DB) *gorm.DB {
	if lockingSupported(db) {
		return db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return db
}
