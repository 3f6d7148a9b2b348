package domain

// SplitKind discriminates how a shared expense divides between participants.
type SplitKind string

const (
	SplitEqual         SplitKind = "equal"
	SplitEqualSelected SplitKind = "equalSelected"
	SplitPercentage    SplitKind = "percentage"
	SplitShares        SplitKind = "shares"
	SplitExact         SplitKind = "exact"
)

// SplitEntry is one participant's raw split input. The meaning of Value
// depends on the split kind: a selection flag (> 0 means included) for
// equalSelected, a percentage of the total for percentage, a relative weight
// for shares, and an exact amount in cents for exact.
type SplitEntry struct {
	ParticipantID string  `json:"participantId"`
	Value         float64 `json:"value"`
}

// SplitInput is the raw, user-editable split payload of a trip expense.
// Entries are an explicit ordered slice rather than a map so resolved splits
// never depend on incidental map iteration order; equal splits carry no
// entries at all.
type SplitInput struct {
	Kind    SplitKind    `json:"kind"`
	Entries []SplitEntry `json:"entries,omitempty"`
}

// Entry returns the value recorded for a participant and whether one exists.
func (s SplitInput) Entry(participantID string) (float64, bool) {
	for _, e := range s.Entries {
		if e.ParticipantID == participantID {
			return e.Value, true
		}
	}
	return 0, false
}
