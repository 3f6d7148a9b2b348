// Package dto defines the request and response shapes of the service layer.
// Create and update types carry validation tags; read types are flat
// projections of domain entities.
package dto

import (
	"time"

	"github.com/amirasaad/ledgersync/pkg/domain"
)

// SplitRequest mirrors domain.SplitInput on the request side.
type SplitRequest struct {
	Kind    string              `json:"kind" validate:"required,oneof=equal equalSelected percentage shares exact"`
	Entries []SplitEntryRequest `json:"entries" validate:"dive"`
}

// SplitEntryRequest is one participant's slot in a split request.
type SplitEntryRequest struct {
	ParticipantID string  `json:"participantId" validate:"required"`
	Value         float64 `json:"value"`
}

// Domain converts the request shape to the domain split input.
func (r SplitRequest) Domain() domain.SplitInput {
	in := domain.SplitInput{Kind: domain.SplitKind(r.Kind)}
	for _, e := range r.Entries {
		in.Entries = append(in.Entries, domain.SplitEntry{
			ParticipantID: e.ParticipantID,
			Value:         e.Value,
		})
	}
	return in
}

// TransactionCreate creates a plain user-authored ledger row.
type TransactionCreate struct {
	Amount      int64     `json:"amount" validate:"required,gt=0"`
	Type        string    `json:"type" validate:"required,oneof=expense income"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	AccountID   *string   `json:"accountId"`
	CategoryID  *string   `json:"categoryId"`
}

// TransferCreate moves money between two accounts, producing a paired
// outgoing and incoming row.
type TransferCreate struct {
	FromAccountID string    `json:"fromAccountId" validate:"required"`
	ToAccountID   string    `json:"toAccountId" validate:"required,nefield=FromAccountID"`
	Amount        int64     `json:"amount" validate:"required,gt=0"`
	Description   string    `json:"description"`
	Date          time.Time `json:"date"`
}

// AdjustmentCreate books a balance correction against one account.
type AdjustmentCreate struct {
	AccountID   string    `json:"accountId" validate:"required"`
	Amount      int64     `json:"amount" validate:"required,gt=0"`
	Type        string    `json:"type" validate:"required,oneof=expense income"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
}

// ExpenseCreate creates a shared trip expense plus its backing ledger row.
type ExpenseCreate struct {
	TripID      string       `json:"tripId" validate:"required"`
	Amount      int64        `json:"amount" validate:"required,gt=0"`
	Description string       `json:"description"`
	Date        time.Time    `json:"date"`
	PaidByID    string       `json:"paidById" validate:"required"`
	CategoryID  *string      `json:"categoryId"`
	Split       SplitRequest `json:"split" validate:"required"`
}

// ExpenseUpdate edits a shared trip expense. Nil fields stay untouched.
type ExpenseUpdate struct {
	Amount      *int64        `json:"amount" validate:"omitempty,gt=0"`
	Description *string       `json:"description"`
	Date        *time.Time    `json:"date"`
	PaidByID    *string       `json:"paidById"`
	Split       *SplitRequest `json:"split"`
}

// SettlementCreate records a settle-up payment between two participants.
type SettlementCreate struct {
	TripID string    `json:"tripId" validate:"required"`
	FromID string    `json:"fromId" validate:"required"`
	ToID   string    `json:"toId" validate:"required,nefield=FromID"`
	Amount int64     `json:"amount" validate:"required,gt=0"`
	Date   time.Time `json:"date"`
	Note   string    `json:"note"`
}

// TransactionRead is the flat projection of a ledger row.
type TransactionRead struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"`
	Type        string    `json:"type"`
	SystemKind  string    `json:"systemKind,omitempty"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	AccountID   *string   `json:"accountId,omitempty"`
	CategoryID  *string   `json:"categoryId,omitempty"`
	Derived     bool      `json:"derived"`
}

// NewTransactionRead projects a domain transaction.
func NewTransactionRead(t *domain.Transaction) *TransactionRead {
	return &TransactionRead{
		ID:          t.ID,
		Amount:      t.Amount,
		Type:        string(t.Type),
		SystemKind:  string(t.SystemKind),
		Description: t.Description,
		Date:        t.Date,
		AccountID:   t.AccountID,
		CategoryID:  t.CategoryID,
		Derived:     t.IsDerived(),
	}
}

// BalanceRead is one participant's position in a trip.
type BalanceRead struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Paid          int64  `json:"paid"`
	Owed          int64  `json:"owed"`
	Net           int64  `json:"net"`
}

// TransferRead is one settle-up payment in a simplification plan.
type TransferRead struct {
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`
	Amount int64  `json:"amount"`
}

// SummaryRead is the current user's trip position in two figures.
type SummaryRead struct {
	Owes     int64 `json:"owes"`
	GetsBack int64 `json:"getsBack"`
}
