package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxRepos exposes transaction-scoped repositories inside a unit of work.
type TxRepos struct {
	Envelopes EnvelopeRepository
	Results   ResultRepository
}

// UnitOfWork runs a closure inside a single database transaction. A non-nil
// error from the closure rolls back every write made through TxRepos.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repos TxRepos) error) error
}

type GormUnitOfWork struct {
	db *gorm.DB
}

func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

func (u *GormUnitOfWork) Do(ctx context.Context, fn func(repos TxRepos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(TxRepos{
			Envelopes: NewGormEnvelopeRepo(tx),
			Results:   NewGormResultRepo(tx),
		})
	})
}
