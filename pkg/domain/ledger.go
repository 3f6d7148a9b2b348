// Package domain holds the core entities of the trip ledger: money-movement
// rows, trips and their participants, shared expenses, settlements, and the
// replication metadata that every synced entity carries.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TxType classifies a ledger row as money out or money in.
type TxType string

const (
	TxTypeExpense TxType = "expense"
	TxTypeIncome  TxType = "income"
)

// SystemKind tags machine-relevant ledger rows. The zero value means a plain
// user-authored row.
type SystemKind string

const (
	SystemKindNone           SystemKind = ""
	SystemKindTransfer       SystemKind = "transfer"
	SystemKindAdjustment     SystemKind = "adjustment"
	SystemKindTripShare      SystemKind = "trip_share"
	SystemKindTripCashflow   SystemKind = "trip_cashflow"
	SystemKindTripSettlement SystemKind = "trip_settlement"
)

// Transaction is a single money-movement record. Amount is an integer count
// of minor currency units (cents) and is always a non-negative magnitude;
// direction comes from Type.
type Transaction struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Amount      int64      `json:"amount"`
	Type        TxType     `json:"type"`
	SystemKind  SystemKind `json:"systemKind,omitempty"`
	Description string     `json:"description,omitempty"`
	Date        time.Time  `json:"date"`

	AccountID     *string `json:"accountId,omitempty"`
	CategoryID    *string `json:"categoryId,omitempty"`
	TripExpenseID *string `json:"tripExpenseId,omitempty"`

	// Source references are set only on rows materialized by the reconciler.
	SourceTripExpenseID    *string `json:"sourceTripExpenseId,omitempty"`
	SourceTripSettlementID *string `json:"sourceTripSettlementId,omitempty"`

	Sync SyncMeta `json:"sync"`
}

// NewTransaction creates a user-authored ledger row with a fresh id and its
// replication metadata initialized dirty.
func NewTransaction(userID string, amount int64, txType TxType, now time.Time) *Transaction {
	return &Transaction{
		ID:     uuid.NewString(),
		UserID: userID,
		Amount: amount,
		Type:   txType,
		Date:   now,
		Sync:   NewSyncMeta(now),
	}
}

// IsDerived reports whether the row was materialized by the reconciler from
// trip state rather than authored by the user.
func (t *Transaction) IsDerived() bool {
	return t.SourceTripExpenseID != nil || t.SourceTripSettlementID != nil
}

// SourceID returns the trip-expense or trip-settlement id a derived row was
// materialized from, or "" for user-authored rows.
func (t *Transaction) SourceID() string {
	if t.SourceTripExpenseID != nil {
		return *t.SourceTripExpenseID
	}
	if t.SourceTripSettlementID != nil {
		return *t.SourceTripSettlementID
	}
	return ""
}
