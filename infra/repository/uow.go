package repository

import (
	"context"

	repo "github.com/amirasaad/ledgersync/pkg/repository"
	"gorm.io/gorm"
)

// UoW provides transaction boundary and repository access in one
// abstraction. The typed accessors hand back repositories bound to the
// session of the enclosing Do call, so every write inside one Do shares the
// same database transaction.
type UoW struct {
	db *gorm.DB
}

// NewUoW creates a unit of work over the given *gorm.DB.
func NewUoW(db *gorm.DB) *UoW {
	return &UoW{db: db}
}

// Do runs fn in a transaction boundary, rolling back on error.
func (u *UoW) Do(ctx context.Context, fn func(uow repo.UnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UoW{db: tx})
	})
}

// Transactions returns a ledger-row repository on the current session.
func (u *UoW) Transactions() repo.TransactionRepository {
	return NewTransactionRepository(u.db)
}

// Trips returns a trip repository on the current session.
func (u *UoW) Trips() repo.TripRepository {
	return NewTripRepository(u.db)
}

// Migrate creates or updates the schema for every synced table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Transaction{},
		&Trip{},
		&TripParticipant{},
		&TripExpense{},
		&TripSettlement{},
		&Cursor{},
	)
}
