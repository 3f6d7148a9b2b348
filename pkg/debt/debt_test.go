package debt_test

import (
	"testing"
	"time"

	"github.com/amirasaad/ledgersync/pkg/debt"
	"github.com/amirasaad/ledgersync/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func participants(ids ...string) []domain.TripParticipant {
	out := make([]domain.TripParticipant, len(ids))
	for i, id := range ids {
		out[i] = domain.TripParticipant{ID: id, Name: id}
	}
	return out
}

func TestCalculateBalances_SinglePayerEqualSplit(t *testing.T) {
	balances := debt.CalculateBalances(
		participants("alice", "bob", "charlie"),
		[]debt.Expense{{
			ID:         "e1",
			PaidByID:   "alice",
			TotalCents: 9000,
			Splits:     map[string]int64{"alice": 3000, "bob": 3000, "charlie": 3000},
		}},
		nil,
	)

	require.Len(t, balances, 3)
	assert.Equal(t, &debt.Balance{ParticipantID: "alice", Paid: 9000, Owed: 3000, Net: 6000}, balances["alice"])
	assert.Equal(t, &debt.Balance{ParticipantID: "bob", Paid: 0, Owed: 3000, Net: -3000}, balances["bob"])
	assert.Equal(t, &debt.Balance{ParticipantID: "charlie", Paid: 0, Owed: 3000, Net: -3000}, balances["charlie"])
}

func TestCalculateBalances_ZeroInitialized(t *testing.T) {
	balances := debt.CalculateBalances(participants("a", "b"), nil, nil)
	assert.Equal(t, &debt.Balance{ParticipantID: "a"}, balances["a"])
	assert.Equal(t, &debt.Balance{ParticipantID: "b"}, balances["b"])
}

func TestCalculateBalances_SettlementReducesDebt(t *testing.T) {
	balances := debt.CalculateBalances(
		participants("alice", "bob"),
		[]debt.Expense{{
			ID:         "e1",
			PaidByID:   "alice",
			TotalCents: 4000,
			Splits:     map[string]int64{"alice": 2000, "bob": 2000},
		}},
		[]domain.TripSettlement{{
			ID: "s1", FromID: "bob", ToID: "alice", Amount: 2000, Date: time.Now(),
		}},
	)

	// Bob paid Alice back in full: both nets return to zero.
	assert.Equal(t, int64(0), balances["alice"].Net)
	assert.Equal(t, int64(0), balances["bob"].Net)
}

func TestSimplifyDebts_Scenario(t *testing.T) {
	balances := debt.CalculateBalances(
		participants("alice", "bob", "charlie"),
		[]debt.Expense{{
			ID:         "e1",
			PaidByID:   "alice",
			TotalCents: 9000,
			Splits:     map[string]int64{"alice": 3000, "bob": 3000, "charlie": 3000},
		}},
		nil,
	)

	transfers := debt.SimplifyDebts(balances)
	require.Len(t, transfers, 2)

	var intoAlice int64
	for _, tr := range transfers {
		assert.Equal(t, "alice", tr.ToID)
		intoAlice += tr.Amount
	}
	assert.Equal(t, int64(6000), intoAlice)
}

func TestSimplifyDebts_BalancePreserving(t *testing.T) {
	balances := map[string]*debt.Balance{
		"a": {ParticipantID: "a", Net: 7000},
		"b": {ParticipantID: "b", Net: -4500},
		"c": {ParticipantID: "c", Net: -2500},
		"d": {ParticipantID: "d", Net: 0},
	}
	transfers := debt.SimplifyDebts(balances)

	// At most n-1 transfers.
	assert.LessOrEqual(t, len(transfers), 3)

	// Applying every transfer zeroes every participant.
	net := map[string]int64{"a": 7000, "b": -4500, "c": -2500, "d": 0}
	for _, tr := range transfers {
		require.Positive(t, tr.Amount)
		net[tr.FromID] += tr.Amount
		net[tr.ToID] -= tr.Amount
	}
	for id, n := range net {
		assert.Zero(t, n, "participant %s not settled", id)
	}
}

func TestSimplifyDebts_Deterministic(t *testing.T) {
	balances := func() map[string]*debt.Balance {
		return map[string]*debt.Balance{
			"a": {ParticipantID: "a", Net: 1000},
			"b": {ParticipantID: "b", Net: 1000},
			"c": {ParticipantID: "c", Net: -1000},
			"d": {ParticipantID: "d", Net: -1000},
		}
	}
	first := debt.SimplifyDebts(balances())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, debt.SimplifyDebts(balances()))
	}
}

func TestSimplifyDebts_AllSettled(t *testing.T) {
	balances := map[string]*debt.Balance{
		"a": {ParticipantID: "a", Net: 0},
		"b": {ParticipantID: "b", Net: 0},
	}
	assert.Empty(t, debt.SimplifyDebts(balances))
}

func TestCurrentUserSummary(t *testing.T) {
	balances := map[string]*debt.Balance{
		"me":   {ParticipantID: "me", Net: -1500},
		"rich": {ParticipantID: "rich", Net: 1500},
		"even": {ParticipantID: "even", Net: 0},
	}

	assert.Equal(t, debt.Summary{Owes: 1500}, debt.CurrentUserSummary(balances, "me"))
	assert.Equal(t, debt.Summary{GetsBack: 1500}, debt.CurrentUserSummary(balances, "rich"))
	assert.Equal(t, debt.Summary{}, debt.CurrentUserSummary(balances, "even"))
	assert.Equal(t, debt.Summary{}, debt.CurrentUserSummary(balances, "missing"))
}
