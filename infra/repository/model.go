package repository

import (
	"encoding/json"
	"time"

	"github.com/amirasaad/ledgersync/pkg/domain"
)

// SyncColumns maps domain.SyncMeta onto explicit columns. Soft deletion is
// a plain nullable timestamp rather than gorm.DeletedAt: tombstoned rows
// must stay visible to dirty scans so the deletion replicates, and gorm's
// automatic scoping would hide them. The auto-time features are disabled
// because replication overwrites these timestamps with remote values.
type SyncColumns struct {
	Dirty     bool  `gorm:"index"`
	Version   int64 `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time  `gorm:"autoUpdateTime:false"`
	DeletedAt *time.Time `gorm:"index"`
}

func syncColumns(m domain.SyncMeta) SyncColumns {
	return SyncColumns{
		Dirty:     m.Dirty,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		DeletedAt: m.DeletedAt,
	}
}

func (c SyncColumns) meta() domain.SyncMeta {
	return domain.SyncMeta{
		Dirty:     c.Dirty,
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		DeletedAt: c.DeletedAt,
	}
}

// Transaction is the persisted form of a ledger row.
type Transaction struct {
	ID          string `gorm:"primaryKey;size:64"`
	UserID      string `gorm:"size:64;index"`
	Amount      int64  `gorm:"not null"`
	Type        string `gorm:"size:16;not null"`
	SystemKind  string `gorm:"size:32;not null;default:''"`
	Description string
	Date        time.Time

	AccountID     *string `gorm:"size:64;index"`
	CategoryID    *string `gorm:"size:64"`
	TripExpenseID *string `gorm:"size:64"`

	SourceTripExpenseID    *string `gorm:"size:64;index"`
	SourceTripSettlementID *string `gorm:"size:64;index"`

	SyncColumns `gorm:"embedded"`
}

// Trip is the persisted form of a trip.
type Trip struct {
	ID        string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"size:64;index"`
	Name      string `gorm:"size:255;not null"`
	Group     bool   `gorm:"column:is_group"`
	StartDate *time.Time
	EndDate   *time.Time
	Budget    *int64

	SyncColumns `gorm:"embedded"`
}

// TripParticipant is the persisted form of a trip seat.
type TripParticipant struct {
	ID           string `gorm:"primaryKey;size:64"`
	TripID       string `gorm:"size:64;index"`
	Name         string `gorm:"size:255;not null"`
	CurrentUser  bool
	LinkedUserID *string `gorm:"size:64"`
	Color        string  `gorm:"size:16"`

	SyncColumns `gorm:"embedded"`
}

// TripExpense is the persisted form of a shared expense. The split input and
// the cached per-participant cents are stored as jsonb documents.
type TripExpense struct {
	ID            string `gorm:"primaryKey;size:64"`
	TripID        string `gorm:"size:64;index"`
	TransactionID string `gorm:"size:64;index"`
	PaidByID      string `gorm:"size:64"`

	Split          []byte `gorm:"type:jsonb"`
	ComputedSplits []byte `gorm:"type:jsonb"`

	SyncColumns `gorm:"embedded"`
}

// TripSettlement is the persisted form of a settlement payment.
type TripSettlement struct {
	ID     string `gorm:"primaryKey;size:64"`
	TripID string `gorm:"size:64;index"`
	FromID string `gorm:"size:64"`
	ToID   string `gorm:"size:64"`
	Amount int64  `gorm:"not null"`
	Date   time.Time
	Note   string

	SyncColumns `gorm:"embedded"`
}

// --- Mappers ---

func mapTransactionToModel(t *domain.Transaction) Transaction {
	return Transaction{
		ID:                     t.ID,
		UserID:                 t.UserID,
		Amount:                 t.Amount,
		Type:                   string(t.Type),
		SystemKind:             string(t.SystemKind),
		Description:            t.Description,
		Date:                   t.Date,
		AccountID:              t.AccountID,
		CategoryID:             t.CategoryID,
		TripExpenseID:          t.TripExpenseID,
		SourceTripExpenseID:    t.SourceTripExpenseID,
		SourceTripSettlementID: t.SourceTripSettlementID,
		SyncColumns:            syncColumns(t.Sync),
	}
}

func mapModelToTransaction(m *Transaction) *domain.Transaction {
	return &domain.Transaction{
		ID:                     m.ID,
		UserID:                 m.UserID,
		Amount:                 m.Amount,
		Type:                   domain.TxType(m.Type),
		SystemKind:             domain.SystemKind(m.SystemKind),
		Description:            m.Description,
		Date:                   m.Date,
		AccountID:              m.AccountID,
		CategoryID:             m.CategoryID,
		TripExpenseID:          m.TripExpenseID,
		SourceTripExpenseID:    m.SourceTripExpenseID,
		SourceTripSettlementID: m.SourceTripSettlementID,
		Sync:                   m.SyncColumns.meta(),
	}
}

func mapTripToModel(t *domain.Trip) Trip {
	return Trip{
		ID:          t.ID,
		UserID:      t.UserID,
		Name:        t.Name,
		Group:       t.Group,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
		Budget:      t.Budget,
		SyncColumns: syncColumns(t.Sync),
	}
}

func mapModelToTrip(m *Trip) *domain.Trip {
	return &domain.Trip{
		ID:        m.ID,
		UserID:    m.UserID,
		Name:      m.Name,
		Group:     m.Group,
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
		Budget:    m.Budget,
		Sync:      m.SyncColumns.meta(),
	}
}

func mapParticipantToModel(p *domain.TripParticipant) TripParticipant {
	return TripParticipant{
		ID:           p.ID,
		TripID:       p.TripID,
		Name:         p.Name,
		CurrentUser:  p.CurrentUser,
		LinkedUserID: p.LinkedUserID,
		Color:        p.Color,
		SyncColumns:  syncColumns(p.Sync),
	}
}

func mapModelToParticipant(m *TripParticipant) *domain.TripParticipant {
	return &domain.TripParticipant{
		ID:           m.ID,
		TripID:       m.TripID,
		Name:         m.Name,
		CurrentUser:  m.CurrentUser,
		LinkedUserID: m.LinkedUserID,
		Color:        m.Color,
		Sync:         m.SyncColumns.meta(),
	}
}

func mapExpenseToModel(e *domain.TripExpense) (TripExpense, error) {
	split, err := json.Marshal(e.Split)
	if err != nil {
		return TripExpense{}, err
	}
	var computed []byte
	if e.ComputedSplits != nil {
		if computed, err = json.Marshal(e.ComputedSplits); err != nil {
			return TripExpense{}, err
		}
	}
	return TripExpense{
		ID:             e.ID,
		TripID:         e.TripID,
		TransactionID:  e.TransactionID,
		PaidByID:       e.PaidByID,
		Split:          split,
		ComputedSplits: computed,
		SyncColumns:    syncColumns(e.Sync),
	}, nil
}

func mapModelToExpense(m *TripExpense) (*domain.TripExpense, error) {
	e := &domain.TripExpense{
		ID:            m.ID,
		TripID:        m.TripID,
		TransactionID: m.TransactionID,
		PaidByID:      m.PaidByID,
		Sync:          m.SyncColumns.meta(),
	}
	if len(m.Split) > 0 {
		if err := json.Unmarshal(m.Split, &e.Split); err != nil {
			return nil, err
		}
	}
	if len(m.ComputedSplits) > 0 {
		if err := json.Unmarshal(m.ComputedSplits, &e.ComputedSplits); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func mapSettlementToModel(s *domain.TripSettlement) TripSettlement {
	return TripSettlement{
		ID:          s.ID,
		TripID:      s.TripID,
		FromID:      s.FromID,
		ToID:        s.ToID,
		Amount:      s.Amount,
		Date:        s.Date,
		Note:        s.Note,
		SyncColumns: syncColumns(s.Sync),
	}
}

func mapModelToSettlement(m *TripSettlement) *domain.TripSettlement {
	return &domain.TripSettlement{
		ID:     m.ID,
		TripID: m.TripID,
		FromID: m.FromID,
		ToID:   m.ToID,
		Amount: m.Amount,
		Date:   m.Date,
		Note:   m.Note,
		Sync:   m.SyncColumns.meta(),
	}
}
