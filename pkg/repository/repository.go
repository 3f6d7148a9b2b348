// Package repository defines the Local Store query surface consumed by the
// core: point lookup by id, filtered scans by foreign key, batched upsert,
// batched soft-delete, and the scoped transaction boundary (UnitOfWork).
package repository

import (
	"context"
	"time"

	"github.com/amirasaad/ledgersync/pkg/domain"
)

// TransactionRepository is the data access surface for ledger rows.
// Read methods exclude tombstoned rows unless the method says otherwise;
// tombstones stay visible to the sync engine so they keep replicating.
type TransactionRepository interface {
	Get(ctx context.Context, id string) (*domain.Transaction, error)
	ListByAccount(ctx context.Context, accountID string) ([]*domain.Transaction, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Transaction, error)

	// ListDerivedBySources returns derived rows whose source reference is
	// one of sourceIDs, tombstoned ones included. The reconciler diffs its
	// desired set against these; a tombstoned match that becomes desired
	// again revives with its version history intact.
	ListDerivedBySources(ctx context.Context, sourceIDs []string) ([]*domain.Transaction, error)

	// ListDirty returns every row pending push, tombstoned ones included.
	ListDirty(ctx context.Context) ([]*domain.Transaction, error)

	Upsert(ctx context.Context, rows ...*domain.Transaction) error
	SoftDelete(ctx context.Context, now time.Time, ids ...string) error

	// MarkClean clears dirty flags after a push has been acknowledged.
	// versions maps row id to the version that was pushed; a row whose
	// version moved on in the meantime keeps its dirty flag so the newer
	// edit still replicates.
	MarkClean(ctx context.Context, versions map[string]int64) error

	// ApplyRemote upserts pulled rows verbatim, tombstones included,
	// clearing the dirty flag (remote wins).
	ApplyRemote(ctx context.Context, rows ...*domain.Transaction) error

	// Count reports live plus tombstoned rows; the sync engine uses it to
	// detect a cursor pointing past an empty store.
	Count(ctx context.Context) (int64, error)
}

// TripRepository is the data access surface for trips, participants,
// expenses and settlements.
type TripRepository interface {
	Get(ctx context.Context, id string) (*domain.Trip, error)
	List(ctx context.Context, userID string) ([]*domain.Trip, error)

	Participants(ctx context.Context, tripID string) ([]*domain.TripParticipant, error)
	Expenses(ctx context.Context, tripID string) ([]*domain.TripExpense, error)
	// ExpensesIncludingDeleted also returns tombstoned expenses; the
	// reconciler needs their ids to find stale derived rows.
	ExpensesIncludingDeleted(ctx context.Context, tripID string) ([]*domain.TripExpense, error)
	GetExpense(ctx context.Context, id string) (*domain.TripExpense, error)
	Settlements(ctx context.Context, tripID string) ([]*domain.TripSettlement, error)
	SettlementsIncludingDeleted(ctx context.Context, tripID string) ([]*domain.TripSettlement, error)

	UpsertTrips(ctx context.Context, trips ...*domain.Trip) error
	UpsertParticipants(ctx context.Context, ps ...*domain.TripParticipant) error
	UpsertExpenses(ctx context.Context, es ...*domain.TripExpense) error
	UpsertSettlements(ctx context.Context, ss ...*domain.TripSettlement) error

	SoftDeleteTrips(ctx context.Context, now time.Time, ids ...string) error
	SoftDeleteExpenses(ctx context.Context, now time.Time, ids ...string) error
	SoftDeleteSettlements(ctx context.Context, now time.Time, ids ...string) error

	DirtyTrips(ctx context.Context) ([]*domain.Trip, error)
	DirtyParticipants(ctx context.Context) ([]*domain.TripParticipant, error)
	DirtyExpenses(ctx context.Context) ([]*domain.TripExpense, error)
	DirtySettlements(ctx context.Context) ([]*domain.TripSettlement, error)

	// The Mark*Clean variants follow the TransactionRepository.MarkClean
	// contract: clear dirty only where the version still matches.
	MarkTripsClean(ctx context.Context, versions map[string]int64) error
	MarkParticipantsClean(ctx context.Context, versions map[string]int64) error
	MarkExpensesClean(ctx context.Context, versions map[string]int64) error
	MarkSettlementsClean(ctx context.Context, versions map[string]int64) error

	ApplyRemoteTrips(ctx context.Context, trips ...*domain.Trip) error
	ApplyRemoteParticipants(ctx context.Context, ps ...*domain.TripParticipant) error
	ApplyRemoteExpenses(ctx context.Context, es ...*domain.TripExpense) error
	ApplyRemoteSettlements(ctx context.Context, ss ...*domain.TripSettlement) error
}
