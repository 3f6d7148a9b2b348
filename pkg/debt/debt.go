// Package debt computes per-participant balances for a trip and reduces them
// to a short list of settling transfers.
//
// Settlement accounting here is true debt reduction: a recorded settlement
// increases the payer's paid total and decreases the receiver's, so paying a
// debt moves both net balances toward zero. (The alternative, audit-only
// bookkeeping that leaves net balances untouched, is deliberately not
// implemented; mixing the two silently corrupts the settle-up plan.)
package debt

import (
	"sort"

	"github.com/amirasaad/ledgersync/pkg/domain"
)

// Expense is the read-side view the balance calculator works on: a trip
// expense joined with its backing ledger row's total and its resolved
// splits.
type Expense struct {
	ID         string
	PaidByID   string
	TotalCents int64
	Splits     map[string]int64
}

// Balance is one participant's position inside a trip. Net is Paid - Owed:
// positive means the trip owes them money, negative means they owe the trip.
type Balance struct {
	ParticipantID string
	Paid          int64
	Owed          int64
	Net           int64
}

// Transfer is one settling payment in a simplification plan.
type Transfer struct {
	FromID string
	ToID   string
	Amount int64
}

// Summary reduces the current user's balance to the two figures a home
// screen shows.
type Summary struct {
	Owes     int64
	GetsBack int64
}

// CalculateBalances returns a balance for every input participant,
// zero-initialized when unreferenced by any expense or settlement.
func CalculateBalances(
	participants []domain.TripParticipant,
	expenses []Expense,
	settlements []domain.TripSettlement,
) map[string]*Balance {
	balances := make(map[string]*Balance, len(participants))
	for _, p := range participants {
		balances[p.ID] = &Balance{ParticipantID: p.ID}
	}

	for _, e := range expenses {
		if b, ok := balances[e.PaidByID]; ok {
			b.Paid += e.TotalCents
		}
		for id, share := range e.Splits {
			if b, ok := balances[id]; ok {
				b.Owed += share
			}
		}
	}

	for _, s := range settlements {
		if b, ok := balances[s.FromID]; ok {
			b.Paid += s.Amount
		}
		if b, ok := balances[s.ToID]; ok {
			b.Paid -= s.Amount
		}
	}

	for _, b := range balances {
		b.Net = b.Paid - b.Owed
	}
	return balances
}

// SimplifyDebts returns transfers that zero every balance: largest creditor
// matched greedily against largest debtor. Ties break on participant id so
// the plan is deterministic on every device. The result holds at most
// participantCount - 1 transfers.
func SimplifyDebts(balances map[string]*Balance) []Transfer {
	var creditors, debtors []*Balance
	for _, b := range balances {
		switch {
		case b.Net > 0:
			creditors = append(creditors, &Balance{ParticipantID: b.ParticipantID, Net: b.Net})
		case b.Net < 0:
			debtors = append(debtors, &Balance{ParticipantID: b.ParticipantID, Net: -b.Net})
		}
	}
	byMagnitude := func(list []*Balance) {
		sort.Slice(list, func(i, j int) bool {
			if list[i].Net != list[j].Net {
				return list[i].Net > list[j].Net
			}
			return list[i].ParticipantID < list[j].ParticipantID
		})
	}
	byMagnitude(creditors)
	byMagnitude(debtors)

	var transfers []Transfer
	ci, di := 0, 0
	for ci < len(creditors) && di < len(debtors) {
		c, d := creditors[ci], debtors[di]
		amount := min(c.Net, d.Net)
		if amount > 0 {
			transfers = append(transfers, Transfer{
				FromID: d.ParticipantID,
				ToID:   c.ParticipantID,
				Amount: amount,
			})
		}
		c.Net -= amount
		d.Net -= amount
		if c.Net == 0 {
			ci++
		}
		if d.Net == 0 {
			di++
		}
	}
	return transfers
}

// CurrentUserSummary reduces the balance of participantID to owes/gets-back
// figures; both are zero when the participant is absent or settled.
func CurrentUserSummary(balances map[string]*Balance, participantID string) Summary {
	b, ok := balances[participantID]
	if !ok {
		return Summary{}
	}
	switch {
	case b.Net < 0:
		return Summary{Owes: -b.Net}
	case b.Net > 0:
		return Summary{GetsBack: b.Net}
	default:
		return Summary{}
	}
}
