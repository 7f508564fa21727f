package service

import (
	"context"

	"gorm.io/gorm"
)

// Transactor runs fn inside one database transaction. fn's error rolls back
// every write made through tx.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTransactor struct{ db *gorm.DB }

func NewTransactor(db *gorm.DB) Transactor { return gormTransactor{db: db} }

func (t gormTransactor) WithinTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return runTx(ctx, t.db, fn)
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}
