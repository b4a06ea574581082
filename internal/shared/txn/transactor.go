package txn

import (
	"context"

	"gorm.io/gorm"
)

// Transactor runs a unit of work: every write made through tx commits together or not at all.
// Repositories receive tx explicitly; nothing inside fn may use the root handle.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor creates a Transactor over a GORM handle
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) WithinTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}
