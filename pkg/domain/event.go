package domain

// Event is the marker interface for in-process domain events.
type Event interface {
	EventType() string
}

// TransactionsChanged is published after a local write marks rows dirty; the
// sync coordinator debounces these into a single push.
type TransactionsChanged struct {
	UserID string
	// TripID is set when the change touched a trip's state and the
	// reconciler fast path should run for it.
	TripID string
}

// EventType returns the type of the TransactionsChanged event.
func (e TransactionsChanged) EventType() string { return "TransactionsChanged" }

// TripChanged is published after an edit to a trip's expenses, participants
// or settlements; the reconciler recomputes derived rows for the trip.
type TripChanged struct {
	TripID string
	// ExpenseID, when set, allows the single-expense reconcile fast path.
	ExpenseID string
}

// EventType returns the type of the TripChanged event.
func (e TripChanged) EventType() string { return "TripChanged" }

// SyncCompleted is published after a sync pass finishes.
type SyncCompleted struct {
	UserID  string
	Pushed  bool
	Pulled  bool
	TripIDs []string
}

// EventType returns the type of the SyncCompleted event.
func (e SyncCompleted) EventType() string { return "SyncCompleted" }
