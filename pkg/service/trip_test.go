package service

import (
	"context"
	"testing"
	"time"

	"github.com/amirasaad/ledgersync/pkg/domain"
	"github.com/amirasaad/ledgersync/pkg/dto"
	"github.com/amirasaad/ledgersync/pkg/eventbus"
	"github.com/amirasaad/ledgersync/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingNotifier struct{ calls int }

func (n *countingNotifier) NotifyLocalChange() { n.calls++ }

type tripFixture struct {
	store    *testutils.MemoryStore
	bus      *eventbus.Memory
	notifier *countingNotifier
	svc      *TripService
	events   []domain.Event
}

func newTripFixture(t *testing.T) *tripFixture {
	t.Helper()
	f := &tripFixture{
		store:    testutils.NewMemoryStore(),
		bus:      eventbus.NewMemory(),
		notifier: &countingNotifier{},
	}
	f.bus.Subscribe(domain.TripChanged{}.EventType(), func(_ context.Context, e domain.Event) {
		f.events = append(f.events, e)
	})
	f.svc = NewTripService(f.store, f.bus, f.notifier, "user-1", nil)
	f.svc.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return f
}

func (f *tripFixture) seedTrip(t *testing.T) (tripID string, seats []string) {
	t.Helper()
	now := time.Unix(1_699_000_000, 0)
	trip := &domain.Trip{ID: "trip-1", UserID: "user-1", Name: "Lisbon", Sync: domain.NewSyncMeta(now)}
	me := &domain.TripParticipant{
		ID: "p-me", TripID: "trip-1", Name: "Me",
		CurrentUser: true, Sync: domain.NewSyncMeta(now),
	}
	ana := &domain.TripParticipant{
		ID: "p-ana", TripID: "trip-1", Name: "Ana", Sync: domain.NewSyncMeta(now),
	}
	bo := &domain.TripParticipant{
		ID: "p-bo", TripID: "trip-1", Name: "Bo", Sync: domain.NewSyncMeta(now),
	}
	f.store.Seed(trip, me, ana, bo)
	return "trip-1", []string{"p-me", "p-ana", "p-bo"}
}

func TestCreateExpense_CachesExactSplits(t *testing.T) {
	f := newTripFixture(t)
	tripID, _ := f.seedTrip(t)

	expense, err := f.svc.CreateExpense(context.Background(), dto.ExpenseCreate{
		TripID:   tripID,
		Amount:   10000,
		PaidByID: "p-me",
		Split:    dto.SplitRequest{Kind: "equal"},
	})
	require.NoError(t, err)

	var total int64
	for _, share := range expense.ComputedSplits {
		total += share
	}
	assert.Equal(t, int64(10000), total, "cached splits sum exactly to the expense total")
	assert.Len(t, expense.ComputedSplits, 3)

	tx, err := f.store.Transactions().Get(context.Background(), expense.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), tx.Amount)
	require.NotNil(t, tx.TripExpenseID)
	assert.Equal(t, expense.ID, *tx.TripExpenseID)
	assert.True(t, tx.Sync.Dirty)

	require.Len(t, f.events, 1)
	assert.Equal(t, 1, f.notifier.calls)
}

func TestCreateExpense_RejectsOutsidePayer(t *testing.T) {
	f := newTripFixture(t)
	tripID, _ := f.seedTrip(t)

	_, err := f.svc.CreateExpense(context.Background(), dto.ExpenseCreate{
		TripID:   tripID,
		Amount:   1000,
		PaidByID: "p-stranger",
		Split:    dto.SplitRequest{Kind: "equal"},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.events)
}

func TestCreateExpense_RejectsBadPercentages(t *testing.T) {
	f := newTripFixture(t)
	tripID, _ := f.seedTrip(t)

	_, err := f.svc.CreateExpense(context.Background(), dto.ExpenseCreate{
		TripID:   tripID,
		Amount:   1000,
		PaidByID: "p-me",
		Split: dto.SplitRequest{
			Kind: "percentage",
			Entries: []dto.SplitEntryRequest{
				{ParticipantID: "p-me", Value: 60},
				{ParticipantID: "p-ana", Value: 30},
			},
		},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdateExpense_RecomputesSplits(t *testing.T) {
	f := newTripFixture(t)
	tripID, _ := f.seedTrip(t)
	expense, err := f.svc.CreateExpense(context.Background(), dto.ExpenseCreate{
		TripID:   tripID,
		Amount:   9000,
		PaidByID: "p-me",
		Split:    dto.SplitRequest{Kind: "equal"},
	})
	require.NoError(t, err)

	amount := int64(10000)
	updated, err := f.svc.UpdateExpense(context.Background(), expense.ID, dto.ExpenseUpdate{
		Amount: &amount,
	})
	require.NoError(t, err)

	var total int64
	for _, share := range updated.ComputedSplits {
		total += share
	}
	assert.Equal(t, amount, total)
	assert.Equal(t, int64(2), updated.Sync.Version)

	tx, err := f.store.Transactions().Get(context.Background(), expense.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, amount, tx.Amount)
}

func TestDeleteExpense_TombstonesBothRows(t *testing.T) {
	f := newTripFixture(t)
	tripID, _ := f.seedTrip(t)
	expense, err := f.svc.CreateExpense(context.Background(), dto.ExpenseCreate{
		TripID:   tripID,
		Amount:   5000,
		PaidByID: "p-me",
		Split:    dto.SplitRequest{Kind: "equal"},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteExpense(context.Background(), expense.ID))

	_, err = f.store.Transactions().Get(context.Background(), expense.TransactionID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := f.store.Trips().GetExpense(context.Background(), expense.ID)
	require.NoError(t, err)
	assert.True(t, got.Sync.IsDeleted(), "tombstone stays visible for replication")
	assert.True(t, got.Sync.Dirty)

	err = f.svc.DeleteExpense(context.Background(), expense.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateExpense_DoubleSubmitLandsOnSameRow(t *testing.T) {
	f := newTripFixture(t)
	tripID, _ := f.seedTrip(t)
	create := dto.ExpenseCreate{
		TripID:   tripID,
		Amount:   4200,
		PaidByID: "p-me",
		Split:    dto.SplitRequest{Kind: "equal"},
	}

	first, err := f.svc.CreateExpense(context.Background(), create)
	require.NoError(t, err)
	second, err := f.svc.CreateExpense(context.Background(), create)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	expenses, err := f.store.Trips().Expenses(context.Background(), tripID)
	require.NoError(t, err)
	require.Len(t, expenses, 1)

	// The retry must not mint a second backing ledger row either.
	txs, err := f.store.Transactions().ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestRecordSettlement_DoubleTapLandsOnSameRow(t *testing.T) {
	f := newTripFixture(t)
	tripID, _ := f.seedTrip(t)
	create := dto.SettlementCreate{
		TripID: tripID,
		FromID: "p-ana",
		ToID:   "p-me",
		Amount: 2500,
	}

	first, err := f.svc.RecordSettlement(context.Background(), create)
	require.NoError(t, err)
	second, err := f.svc.RecordSettlement(context.Background(), create)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	settlements, err := f.store.Trips().Settlements(context.Background(), tripID)
	require.NoError(t, err)
	assert.Len(t, settlements, 1)
}

func TestBalancesAndSettlePlan(t *testing.T) {
	f := newTripFixture(t)
	tripID, _ := f.seedTrip(t)
	_, err := f.svc.CreateExpense(context.Background(), dto.ExpenseCreate{
		TripID:   tripID,
		Amount:   9000,
		PaidByID: "p-me",
		Split:    dto.SplitRequest{Kind: "equal"},
	})
	require.NoError(t, err)

	balances, err := f.svc.Balances(context.Background(), tripID)
	require.NoError(t, err)
	require.Len(t, balances, 3)
	assert.Equal(t, "p-ana", balances[0].ParticipantID)
	assert.Equal(t, int64(-3000), balances[0].Net)
	assert.Equal(t, int64(6000), balances[2].Net) // p-me paid 9000, owes 3000

	plan, err := f.svc.SettlePlan(context.Background(), tripID)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	var toMe int64
	for _, tr := range plan {
		assert.Equal(t, "p-me", tr.ToID)
		toMe += tr.Amount
	}
	assert.Equal(t, int64(6000), toMe)

	summary, err := f.svc.Summary(context.Background(), tripID)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), summary.GetsBack)
	assert.Zero(t, summary.Owes)
}

func TestSettlement_ZeroesBalances(t *testing.T) {
	f := newTripFixture(t)
	tripID, _ := f.seedTrip(t)
	_, err := f.svc.CreateExpense(context.Background(), dto.ExpenseCreate{
		TripID:   tripID,
		Amount:   9000,
		PaidByID: "p-me",
		Split:    dto.SplitRequest{Kind: "equal"},
	})
	require.NoError(t, err)

	for _, from := range []string{"p-ana", "p-bo"} {
		_, err := f.svc.RecordSettlement(context.Background(), dto.SettlementCreate{
			TripID: tripID, FromID: from, ToID: "p-me", Amount: 3000,
		})
		require.NoError(t, err)
	}

	plan, err := f.svc.SettlePlan(context.Background(), tripID)
	require.NoError(t, err)
	assert.Empty(t, plan, "fully settled trip needs no transfers")
}

func TestCreateTrip_SeatsCurrentUser(t *testing.T) {
	f := newTripFixture(t)

	trip, err := f.svc.CreateTrip(context.Background(), "Porto", true)
	require.NoError(t, err)

	seats, err := f.store.Trips().Participants(context.Background(), trip.ID)
	require.NoError(t, err)
	require.Len(t, seats, 1)
	assert.True(t, seats[0].CurrentUser)
	require.NotNil(t, seats[0].LinkedUserID)
	assert.Equal(t, "user-1", *seats[0].LinkedUserID)
}
