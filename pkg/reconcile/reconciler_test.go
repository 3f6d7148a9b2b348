package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/amirasaad/ledgersync/pkg/domain"
	"github.com/amirasaad/ledgersync/pkg/provider"
	"github.com/amirasaad/ledgersync/pkg/reconcile"
	"github.com/amirasaad/ledgersync/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userID = "user-1"

var accountID = "acct-1"

type fixture struct {
	store *testutils.MemoryStore
	rec   *reconcile.Reconciler
}

func newFixture(t *testing.T, defaultAccount *string) *fixture {
	t.Helper()
	store := testutils.NewMemoryStore()
	rec := reconcile.New(store, provider.StaticAccountProvider{AccountID: defaultAccount}, userID, nil)
	return &fixture{store: store, rec: rec}
}

// seedTrip seeds a trip where "me" and "friend" share expenses; returns the
// backing transaction so tests can tweak totals.
func (f *fixture) seedTrip(t *testing.T, total int64, myShare int64, paidByMe bool) (*domain.Trip, *domain.TripExpense) {
	t.Helper()
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	trip := &domain.Trip{ID: "trip-1", UserID: userID, Name: "Lisbon", Sync: domain.NewSyncMeta(now)}
	me := &domain.TripParticipant{ID: "p-me", TripID: trip.ID, Name: "Me", CurrentUser: true, Sync: domain.NewSyncMeta(now)}
	friend := &domain.TripParticipant{ID: "p-friend", TripID: trip.ID, Name: "Friend", Sync: domain.NewSyncMeta(now)}

	backing := &domain.Transaction{
		ID: "tx-1", UserID: userID, Amount: total, Type: domain.TxTypeExpense,
		Description: "Dinner", Date: now, Sync: domain.NewSyncMeta(now),
	}
	paidBy := friend.ID
	if paidByMe {
		paidBy = me.ID
	}
	expense := &domain.TripExpense{
		ID: "exp-1", TripID: trip.ID, TransactionID: backing.ID, PaidByID: paidBy,
		Split: domain.SplitInput{Kind: domain.SplitExact, Entries: []domain.SplitEntry{
			{ParticipantID: me.ID, Value: float64(myShare)},
			{ParticipantID: friend.ID, Value: float64(total - myShare)},
		}},
		ComputedSplits: map[string]int64{me.ID: myShare, friend.ID: total - myShare},
		Sync:           domain.NewSyncMeta(now),
	}

	f.store.Seed(trip, me, friend, backing, expense)
	return trip, expense
}

func derivedRows(f *fixture) map[string]*domain.Transaction {
	out := map[string]*domain.Transaction{}
	for id, row := range f.store.TransactionRows {
		if row.IsDerived() && !row.Sync.IsDeleted() {
			out[id] = row
		}
	}
	return out
}

func TestReconcileTrip_PayerAndParticipant(t *testing.T) {
	f := newFixture(t, &accountID)
	f.seedTrip(t, 5000, 2000, true)

	require.NoError(t, f.rec.ReconcileTrip(context.Background(), "trip-1"))

	rows := derivedRows(f)
	require.Len(t, rows, 2, "cashflow and share rows must coexist")

	cashID := reconcile.DerivedID(userID, "exp-1", reconcile.KindCashflow, "")
	shareID := reconcile.DerivedID(userID, "exp-1", reconcile.KindShare, "")

	cash := rows[cashID]
	require.NotNil(t, cash)
	assert.Equal(t, int64(5000), cash.Amount)
	assert.Equal(t, domain.SystemKindTripCashflow, cash.SystemKind)
	require.NotNil(t, cash.AccountID)
	assert.Equal(t, accountID, *cash.AccountID)

	share := rows[shareID]
	require.NotNil(t, share)
	assert.Equal(t, int64(2000), share.Amount)
	assert.Equal(t, domain.SystemKindTripShare, share.SystemKind)
	assert.Nil(t, share.AccountID, "share row is an obligation, not a cash movement")
}

func TestReconcileTrip_Idempotent(t *testing.T) {
	f := newFixture(t, &accountID)
	f.seedTrip(t, 5000, 2000, true)

	require.NoError(t, f.rec.ReconcileTrip(context.Background(), "trip-1"))
	writes := f.store.Writes

	require.NoError(t, f.rec.ReconcileTrip(context.Background(), "trip-1"))
	assert.Equal(t, writes, f.store.Writes, "replaying with unchanged inputs must not write")
}

func TestReconcileTrip_PayerChangeTombstonesCashflow(t *testing.T) {
	f := newFixture(t, &accountID)
	_, expense := f.seedTrip(t, 5000, 2000, true)

	ctx := context.Background()
	require.NoError(t, f.rec.ReconcileTrip(ctx, "trip-1"))
	require.Len(t, derivedRows(f), 2)

	// Friend actually paid: the cashflow row is no longer desired.
	expense.PaidByID = "p-friend"
	expense.Sync.Touch(time.Now())
	f.store.Seed(expense)

	require.NoError(t, f.rec.ReconcileTrip(ctx, "trip-1"))

	rows := derivedRows(f)
	require.Len(t, rows, 1)
	shareID := reconcile.DerivedID(userID, "exp-1", reconcile.KindShare, "")
	assert.NotNil(t, rows[shareID], "share row must survive the payer change")

	cashID := reconcile.DerivedID(userID, "exp-1", reconcile.KindCashflow, "")
	tombstoned := f.store.TransactionRows[cashID]
	require.NotNil(t, tombstoned, "tombstoned rows are retained")
	assert.True(t, tombstoned.Sync.IsDeleted())
	assert.True(t, tombstoned.Sync.Dirty, "the tombstone must replicate")
}

func TestReconcileTrip_ZeroShareNoRow(t *testing.T) {
	f := newFixture(t, &accountID)
	f.seedTrip(t, 5000, 0, false)

	require.NoError(t, f.rec.ReconcileTrip(context.Background(), "trip-1"))
	assert.Empty(t, derivedRows(f))
}

func TestReconcileTrip_NoDefaultAccountWithholdsCashflow(t *testing.T) {
	f := newFixture(t, nil)
	f.seedTrip(t, 5000, 2000, true)

	require.NoError(t, f.rec.ReconcileTrip(context.Background(), "trip-1"))

	rows := derivedRows(f)
	require.Len(t, rows, 1, "only the share row; cashflow is withheld, not an error")
	shareID := reconcile.DerivedID(userID, "exp-1", reconcile.KindShare, "")
	assert.NotNil(t, rows[shareID])
}

func TestReconcileTrip_AmountEditUpsertsInPlace(t *testing.T) {
	f := newFixture(t, &accountID)
	_, expense := f.seedTrip(t, 5000, 2000, true)

	ctx := context.Background()
	require.NoError(t, f.rec.ReconcileTrip(ctx, "trip-1"))

	shareID := reconcile.DerivedID(userID, "exp-1", reconcile.KindShare, "")
	firstVersion := f.store.TransactionRows[shareID].Sync.Version

	expense.ComputedSplits = map[string]int64{"p-me": 2500, "p-friend": 2500}
	f.store.Seed(expense)

	require.NoError(t, f.rec.ReconcileTrip(ctx, "trip-1"))

	share := f.store.TransactionRows[shareID]
	assert.Equal(t, int64(2500), share.Amount)
	assert.Greater(t, share.Sync.Version, firstVersion, "same id, bumped version: no delete-then-recreate")
	assert.False(t, share.Sync.IsDeleted())
}

func TestReconcileTrip_Settlements(t *testing.T) {
	f := newFixture(t, &accountID)
	f.seedTrip(t, 5000, 2000, false)
	now := time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)
	f.store.Seed(
		&domain.TripSettlement{
			ID: "stl-in", TripID: "trip-1", FromID: "p-friend", ToID: "p-me",
			Amount: 1500, Date: now, Sync: domain.NewSyncMeta(now),
		},
		&domain.TripSettlement{
			ID: "stl-out", TripID: "trip-1", FromID: "p-me", ToID: "p-friend",
			Amount: 700, Date: now, Note: "bus fare", Sync: domain.NewSyncMeta(now),
		},
	)

	require.NoError(t, f.rec.ReconcileTrip(context.Background(), "trip-1"))

	inID := reconcile.DerivedID(userID, "stl-in", reconcile.KindSettlement, reconcile.DirectionIn)
	outID := reconcile.DerivedID(userID, "stl-out", reconcile.KindSettlement, reconcile.DirectionOut)
	rows := derivedRows(f)

	in := rows[inID]
	require.NotNil(t, in)
	assert.Equal(t, domain.TxTypeIncome, in.Type)
	assert.Equal(t, int64(1500), in.Amount)

	out := rows[outID]
	require.NotNil(t, out)
	assert.Equal(t, domain.TxTypeExpense, out.Type)
	assert.Equal(t, int64(700), out.Amount)
	assert.Equal(t, "bus fare", out.Description)
}

func TestReconcileExpense_ConvergesWithTripPass(t *testing.T) {
	f := newFixture(t, &accountID)
	f.seedTrip(t, 5000, 2000, true)
	ctx := context.Background()

	require.NoError(t, f.rec.ReconcileExpense(ctx, "trip-1", "exp-1"))
	fast := derivedRows(f)

	f2 := newFixture(t, &accountID)
	f2.seedTrip(t, 5000, 2000, true)
	require.NoError(t, f2.rec.ReconcileTrip(ctx, "trip-1"))
	full := derivedRows(f2)

	require.Len(t, fast, len(full))
	for id, want := range full {
		got := fast[id]
		require.NotNil(t, got, "row %s missing from fast path", id)
		assert.Equal(t, want.Amount, got.Amount)
		assert.Equal(t, want.SystemKind, got.SystemKind)
	}
}

func TestReconcileTrip_DeletedExpenseTombstonesRows(t *testing.T) {
	f := newFixture(t, &accountID)
	_, expense := f.seedTrip(t, 5000, 2000, true)
	ctx := context.Background()

	require.NoError(t, f.rec.ReconcileTrip(ctx, "trip-1"))
	require.Len(t, derivedRows(f), 2)

	expense.Sync.Tombstone(time.Now())
	f.store.Seed(expense)

	require.NoError(t, f.rec.ReconcileTrip(ctx, "trip-1"))
	assert.Empty(t, derivedRows(f))
}

func TestReconcileTrip_RestoredExpenseRevivesRowsInPlace(t *testing.T) {
	f := newFixture(t, &accountID)
	_, expense := f.seedTrip(t, 5000, 2000, true)
	ctx := context.Background()

	require.NoError(t, f.rec.ReconcileTrip(ctx, "trip-1"))
	shareID := reconcile.DerivedID(userID, "exp-1", reconcile.KindShare, "")

	expense.Sync.Tombstone(time.Now())
	f.store.Seed(expense)
	require.NoError(t, f.rec.ReconcileTrip(ctx, "trip-1"))

	tombstoned := f.store.TransactionRows[shareID]
	require.True(t, tombstoned.Sync.IsDeleted())
	tombstonedVersion := tombstoned.Sync.Version

	// The deletion is undone remotely and pulled back in.
	expense.Sync.DeletedAt = nil
	expense.Sync.Touch(time.Now())
	f.store.Seed(expense)
	require.NoError(t, f.rec.ReconcileTrip(ctx, "trip-1"))

	revived := f.store.TransactionRows[shareID]
	require.NotNil(t, revived)
	assert.False(t, revived.Sync.IsDeleted())
	assert.Equal(t, int64(2000), revived.Amount)
	assert.Greater(t, revived.Sync.Version, tombstonedVersion,
		"a revived row continues its version counter, it does not restart at 1")
	assert.True(t, revived.Sync.Dirty)
}

func TestReconcileTrip_SharedTripLinkedUser(t *testing.T) {
	f := newFixture(t, &accountID)
	now := time.Now()
	linked := userID
	trip := &domain.Trip{ID: "trip-s", UserID: "someone-else", Name: "Shared", Group: true, Sync: domain.NewSyncMeta(now)}
	seatMine := &domain.TripParticipant{ID: "seat-1", TripID: trip.ID, Name: "Me", LinkedUserID: &linked, Sync: domain.NewSyncMeta(now)}
	other := "user-2"
	seatOther := &domain.TripParticipant{ID: "seat-2", TripID: trip.ID, Name: "Other", LinkedUserID: &other, Sync: domain.NewSyncMeta(now)}
	backing := &domain.Transaction{
		ID: "tx-s", UserID: "user-2", Amount: 4000, Type: domain.TxTypeExpense,
		Date: now, Sync: domain.NewSyncMeta(now),
	}
	expense := &domain.TripExpense{
		ID: "exp-s", TripID: trip.ID, TransactionID: backing.ID, PaidByID: seatOther.ID,
		Split:          domain.SplitInput{Kind: domain.SplitEqual},
		ComputedSplits: map[string]int64{seatMine.ID: 2000, seatOther.ID: 2000},
		Sync:           domain.NewSyncMeta(now),
	}
	f.store.Seed(trip, seatMine, seatOther, backing, expense)

	require.NoError(t, f.rec.ReconcileTrip(context.Background(), "trip-s"))

	rows := derivedRows(f)
	shareID := reconcile.DerivedID(userID, "exp-s", reconcile.KindShare, "")
	require.Len(t, rows, 1)
	require.NotNil(t, rows[shareID])
	assert.Equal(t, int64(2000), rows[shareID].Amount)
}

func TestDerivedID_Deterministic(t *testing.T) {
	a := reconcile.DerivedID("u", "src", reconcile.KindShare, "")
	b := reconcile.DerivedID("u", "src", reconcile.KindShare, "")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, reconcile.DerivedID("u", "src", reconcile.KindCashflow, ""))
	assert.NotEqual(t,
		reconcile.DerivedID("u", "stl", reconcile.KindSettlement, reconcile.DirectionIn),
		reconcile.DerivedID("u", "stl", reconcile.KindSettlement, reconcile.DirectionOut),
	)
}
