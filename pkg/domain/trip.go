package domain

import (
	"time"

	"github.com/google/uuid"
)

// Trip groups expenses shared between participants, e.g. a holiday or a
// flat-share month. Group trips are visible to every linked member and sync
// with an independent cursor per (user, trip).
type Trip struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Name      string     `json:"name"`
	Group     bool       `json:"group"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Budget    *int64     `json:"budget,omitempty"`

	Sync SyncMeta `json:"sync"`
}

// NewTrip creates a trip owned by userID with dirty replication metadata.
func NewTrip(userID, name string, group bool, now time.Time) *Trip {
	return &Trip{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   name,
		Group:  group,
		Sync:   NewSyncMeta(now),
	}
}

// TripParticipant is one seat at a trip's table. In a single-device trip
// exactly one participant carries CurrentUser; in a shared trip the seat is
// owned by whoever's account id matches LinkedUserID instead.
type TripParticipant struct {
	ID           string  `json:"id"`
	TripID       string  `json:"tripId"`
	Name         string  `json:"name"`
	CurrentUser  bool    `json:"currentUser"`
	LinkedUserID *string `json:"linkedUserId,omitempty"`
	Color        string  `json:"color,omitempty"`

	Sync SyncMeta `json:"sync"`
}

// IsMe reports whether this participant seat belongs to the given account:
// either the locally flagged current user or, in a shared trip, the seat
// linked to that account id.
func (p *TripParticipant) IsMe(userID string) bool {
	if p.LinkedUserID != nil {
		return *p.LinkedUserID == userID
	}
	return p.CurrentUser
}

// TripExpense is a shared expense: the total lives on the backing ledger row
// (TransactionID), the split input describes how it divides between
// participants, and ComputedSplits caches the resolved per-participant cents.
// When present, ComputedSplits must sum exactly to the expense total.
type TripExpense struct {
	ID            string `json:"id"`
	TripID        string `json:"tripId"`
	TransactionID string `json:"transactionId"`
	PaidByID      string `json:"paidById"`

	Split          SplitInput       `json:"split"`
	ComputedSplits map[string]int64 `json:"computedSplits,omitempty"`

	Sync SyncMeta `json:"sync"`
}

// TripSettlement records a payment between two participants meant to offset
// balances.
type TripSettlement struct {
	ID     string    `json:"id"`
	TripID string    `json:"tripId"`
	FromID string    `json:"fromId"`
	ToID   string    `json:"toId"`
	Amount int64     `json:"amount"`
	Date   time.Time `json:"date"`
	Note   string    `json:"note,omitempty"`

	Sync SyncMeta `json:"sync"`
}
