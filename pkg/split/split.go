// Package split resolves a shared expense's raw split input into exact
// per-participant cent amounts. For any positive total with at least one
// eligible participant the resolved shares sum exactly to the total: each
// share is rounded half-to-even and the last participant visited absorbs the
// rounding remainder.
package split

import (
	"sort"

	"github.com/amirasaad/ledgersync/pkg/currency"
	"github.com/amirasaad/ledgersync/pkg/domain"
)

// Calculate resolves the split of totalCents between participants according
// to the expense's split input. It returns an empty map when the total is
// not positive or no participant is eligible.
//
// Remainder assignment always follows ascending participant-id order (input
// order for plain equal splits), never incidental map iteration order, so
// every device resolves the identical result.
func Calculate(
	totalCents int64,
	in domain.SplitInput,
	participants []domain.TripParticipant,
) map[string]int64 {
	out := map[string]int64{}
	if totalCents <= 0 || len(participants) == 0 {
		return out
	}

	switch in.Kind {
	case domain.SplitEqual:
		ids := make([]string, len(participants))
		for i, p := range participants {
			ids[i] = p.ID
		}
		equalShares(out, totalCents, ids)

	case domain.SplitEqualSelected:
		var ids []string
		for _, e := range in.Entries {
			if e.Value > 0 {
				ids = append(ids, e.ParticipantID)
			}
		}
		sort.Strings(ids)
		if len(ids) == 0 {
			return out
		}
		equalShares(out, totalCents, ids)

	case domain.SplitPercentage:
		entries := sortedEntries(in.Entries)
		if len(entries) == 0 {
			return out
		}
		var sum int64
		for _, e := range entries {
			share := currency.RoundToEven(float64(totalCents) * e.Value / 100)
			out[e.ParticipantID] = share
			sum += share
		}
		out[entries[len(entries)-1].ParticipantID] += totalCents - sum

	case domain.SplitShares:
		entries := sortedEntries(in.Entries)
		var totalWeight float64
		for _, e := range entries {
			totalWeight += e.Value
		}
		if totalWeight <= 0 {
			return out
		}
		var sum int64
		for _, e := range entries {
			share := currency.RoundToEven(float64(totalCents) * e.Value / totalWeight)
			out[e.ParticipantID] = share
			sum += share
		}
		out[entries[len(entries)-1].ParticipantID] += totalCents - sum

	case domain.SplitExact:
		// Passed through unvalidated; ValidateExact enforces the sum before
		// a user-edited split is committed.
		for _, e := range in.Entries {
			out[e.ParticipantID] = int64(e.Value)
		}
	}
	return out
}

// equalShares divides totalCents equally between ids, remainder to the last.
func equalShares(out map[string]int64, totalCents int64, ids []string) {
	per := float64(totalCents) / float64(len(ids))
	var sum int64
	for _, id := range ids {
		share := currency.RoundToEven(per)
		out[id] = share
		sum += share
	}
	out[ids[len(ids)-1]] += totalCents - sum
}

// sortedEntries returns the entries in ascending participant-id order.
func sortedEntries(entries []domain.SplitEntry) []domain.SplitEntry {
	sorted := make([]domain.SplitEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ParticipantID < sorted[j].ParticipantID
	})
	return sorted
}
