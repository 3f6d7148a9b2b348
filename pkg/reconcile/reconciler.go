// Package reconcile materializes a trip's effect on the owning user's
// personal ledger. It computes the exact set of derived rows the trip state
// requires and makes the Local Store match it: idempotent upserts plus
// tombstoning whatever is no longer desired. Side effects are strictly
// confined to derived rows; user-authored rows are never touched.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/ledgersync/pkg/domain"
	"github.com/amirasaad/ledgersync/pkg/provider"
	"github.com/amirasaad/ledgersync/pkg/repository"
	"github.com/amirasaad/ledgersync/pkg/split"
)

// Reconciler keeps derived ledger rows convergent with upstream trip state.
type Reconciler struct {
	uow      repository.UnitOfWork
	accounts provider.AccountProvider
	userID   string
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Reconciler owned by userID.
func New(
	uow repository.UnitOfWork,
	accounts provider.AccountProvider,
	userID string,
	logger *slog.Logger,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		uow:      uow,
		accounts: accounts,
		userID:   userID,
		logger:   logger,
		now:      time.Now,
	}
}

// ReconcileTrip recomputes every derived row for a trip and converges the
// store onto the desired set in one transaction. Running it twice with no
// intervening change produces zero additional writes.
func (r *Reconciler) ReconcileTrip(ctx context.Context, tripID string) error {
	return r.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		expenses, err := uow.Trips().ExpensesIncludingDeleted(ctx, tripID)
		if err != nil {
			return fmt.Errorf("reconcile trip %s: %w", tripID, err)
		}
		settlements, err := uow.Trips().SettlementsIncludingDeleted(ctx, tripID)
		if err != nil {
			return fmt.Errorf("reconcile trip %s: %w", tripID, err)
		}
		return r.converge(ctx, uow, tripID, expenses, settlements)
	})
}

// ReconcileExpense is the low-latency fast path after editing one expense.
// It converges only the rows sourced from that expense and reaches the same
// final state for them as a whole-trip pass would.
func (r *Reconciler) ReconcileExpense(ctx context.Context, tripID, expenseID string) error {
	return r.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		expense, err := uow.Trips().GetExpense(ctx, expenseID)
		if err != nil {
			return fmt.Errorf("reconcile expense %s: %w", expenseID, err)
		}
		return r.converge(ctx, uow, tripID, []*domain.TripExpense{expense}, nil)
	})
}

// converge computes the desired derived-row set for the given sources and
// diffs it against the live derived rows referencing them. The full desired
// set is computed before any write, so a failed precondition (say, no
// default account) withholds rows instead of persisting partial state.
func (r *Reconciler) converge(
	ctx context.Context,
	uow repository.UnitOfWork,
	tripID string,
	expenses []*domain.TripExpense,
	settlements []*domain.TripSettlement,
) error {
	trip, err := uow.Trips().Get(ctx, tripID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	participants, err := uow.Trips().Participants(ctx, tripID)
	if err != nil {
		return err
	}

	me := r.resolveMe(participants)
	defaultAccount, err := r.accounts.DefaultAccountID(ctx, r.userID)
	if err != nil {
		return fmt.Errorf("default account lookup: %w", err)
	}

	desired := map[string]*domain.Transaction{}
	sourceIDs := make([]string, 0, len(expenses)+len(settlements))

	tripLive := trip != nil && !trip.Sync.IsDeleted()

	for _, e := range expenses {
		sourceIDs = append(sourceIDs, e.ID)
		if !tripLive || me == nil || e.Sync.IsDeleted() {
			continue
		}
		backing, err := uow.Transactions().Get(ctx, e.TransactionID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		r.desireExpenseRows(desired, e, backing, me, participants, defaultAccount)
	}

	for _, s := range settlements {
		sourceIDs = append(sourceIDs, s.ID)
		if !tripLive || me == nil || s.Sync.IsDeleted() {
			continue
		}
		r.desireSettlementRows(desired, s, me, defaultAccount)
	}

	existing, err := uow.Transactions().ListDerivedBySources(ctx, sourceIDs)
	if err != nil {
		return err
	}

	return r.apply(ctx, uow, desired, existing)
}

// desireExpenseRows adds the rows one live expense demands. When the user is
// both payer and an included participant, both rows coexist deliberately:
// the cashflow row answers "what left my wallet", the share row "what did I
// personally consume". Downstream logic must never sum them.
func (r *Reconciler) desireExpenseRows(
	desired map[string]*domain.Transaction,
	e *domain.TripExpense,
	backing *domain.Transaction,
	me *domain.TripParticipant,
	participants []*domain.TripParticipant,
	defaultAccount *string,
) {
	if me.ID == e.PaidByID && defaultAccount != nil {
		id := DerivedID(r.userID, e.ID, KindCashflow, "")
		desired[id] = &domain.Transaction{
			ID:                  id,
			UserID:              r.userID,
			Amount:              backing.Amount,
			Type:                domain.TxTypeExpense,
			SystemKind:          domain.SystemKindTripCashflow,
			Description:         backing.Description,
			Date:                backing.Date,
			AccountID:           defaultAccount,
			SourceTripExpenseID: &e.ID,
		}
	}

	if share := r.resolveShare(e, backing, me, participants); share > 0 {
		id := DerivedID(r.userID, e.ID, KindShare, "")
		desired[id] = &domain.Transaction{
			ID:                  id,
			UserID:              r.userID,
			Amount:              share,
			Type:                domain.TxTypeExpense,
			SystemKind:          domain.SystemKindTripShare,
			Description:         backing.Description,
			Date:                backing.Date,
			CategoryID:          backing.CategoryID,
			SourceTripExpenseID: &e.ID,
		}
	}
}

// desireSettlementRows adds the row one live settlement demands for the
// user: income when receiving, expense when paying, both against the
// default account.
func (r *Reconciler) desireSettlementRows(
	desired map[string]*domain.Transaction,
	s *domain.TripSettlement,
	me *domain.TripParticipant,
	defaultAccount *string,
) {
	if defaultAccount == nil {
		return
	}
	describe := s.Note
	if describe == "" {
		describe = "Settlement"
	}
	if me.ID == s.ToID {
		id := DerivedID(r.userID, s.ID, KindSettlement, DirectionIn)
		desired[id] = &domain.Transaction{
			ID:                     id,
			UserID:                 r.userID,
			Amount:                 s.Amount,
			Type:                   domain.TxTypeIncome,
			SystemKind:             domain.SystemKindTripSettlement,
			Description:            describe,
			Date:                   s.Date,
			AccountID:              defaultAccount,
			SourceTripSettlementID: &s.ID,
		}
	}
	if me.ID == s.FromID {
		id := DerivedID(r.userID, s.ID, KindSettlement, DirectionOut)
		desired[id] = &domain.Transaction{
			ID:                     id,
			UserID:                 r.userID,
			Amount:                 s.Amount,
			Type:                   domain.TxTypeExpense,
			SystemKind:             domain.SystemKindTripSettlement,
			Description:            describe,
			Date:                   s.Date,
			AccountID:              defaultAccount,
			SourceTripSettlementID: &s.ID,
		}
	}
}

// resolveShare returns the user's share of an expense in cents, preferring
// the cached computed splits over a fresh calculation.
func (r *Reconciler) resolveShare(
	e *domain.TripExpense,
	backing *domain.Transaction,
	me *domain.TripParticipant,
	participants []*domain.TripParticipant,
) int64 {
	if e.ComputedSplits != nil {
		return e.ComputedSplits[me.ID]
	}
	live := make([]domain.TripParticipant, 0, len(participants))
	for _, p := range participants {
		live = append(live, *p)
	}
	return split.Calculate(backing.Amount, e.Split, live)[me.ID]
}

// resolveMe finds the participant seat belonging to the owning user.
func (r *Reconciler) resolveMe(participants []*domain.TripParticipant) *domain.TripParticipant {
	for _, p := range participants {
		if p.IsMe(r.userID) {
			return p
		}
	}
	return nil
}

// apply upserts desired rows that are new, materially changed or currently
// tombstoned, and tombstones live derived rows no longer desired. A desired
// row matching a tombstoned one revives it in place, continuing its version
// counter instead of restarting it.
func (r *Reconciler) apply(
	ctx context.Context,
	uow repository.UnitOfWork,
	desired map[string]*domain.Transaction,
	existing []*domain.Transaction,
) error {
	now := r.now()
	current := make(map[string]*domain.Transaction, len(existing))
	for _, row := range existing {
		current[row.ID] = row
	}

	var upserts []*domain.Transaction
	for id, want := range desired {
		have, ok := current[id]
		if ok && !have.Sync.IsDeleted() && sameRow(have, want) {
			continue
		}
		if ok {
			want.Sync = have.Sync
			want.Sync.DeletedAt = nil
			want.Sync.Touch(now)
		} else {
			want.Sync = domain.NewSyncMeta(now)
		}
		upserts = append(upserts, want)
	}

	var stale []string
	for id, have := range current {
		if _, ok := desired[id]; !ok && !have.Sync.IsDeleted() {
			stale = append(stale, id)
		}
	}

	if len(upserts) > 0 {
		if err := uow.Transactions().Upsert(ctx, upserts...); err != nil {
			return err
		}
	}
	if len(stale) > 0 {
		if err := uow.Transactions().SoftDelete(ctx, now, stale...); err != nil {
			return err
		}
	}
	if len(upserts) > 0 || len(stale) > 0 {
		r.logger.Info("reconciled derived rows",
			"upserts", len(upserts), "tombstoned", len(stale))
	}
	return nil
}

// sameRow compares the material fields of a derived row; replication
// metadata is bookkeeping, not a difference worth a write.
func sameRow(a, b *domain.Transaction) bool {
	return a.Amount == b.Amount &&
		a.Type == b.Type &&
		a.SystemKind == b.SystemKind &&
		a.Description == b.Description &&
		a.Date.Equal(b.Date) &&
		equalPtr(a.AccountID, b.AccountID) &&
		equalPtr(a.CategoryID, b.CategoryID) &&
		equalPtr(a.SourceTripExpenseID, b.SourceTripExpenseID) &&
		equalPtr(a.SourceTripSettlementID, b.SourceTripSettlementID)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
