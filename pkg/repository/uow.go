package repository

import "context"

// UnitOfWork is the scoped transaction boundary: writes that must be atomic
// as a group (an expense row plus its backing ledger row, a pulled delta
// plus its cursor bookkeeping) run inside one Do call. If the function
// returns an error the whole transaction rolls back and no partial row is
// ever visible to a concurrent reader.
//
// The typed accessors return repositories bound to the current transaction
// session, so every operation inside Do shares one atomic scope.
type UnitOfWork interface {
	// Do executes fn within a transaction boundary, rolling back on error.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	Transactions() TransactionRepository
	Trips() TripRepository
}
