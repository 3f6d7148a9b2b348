// Package service provides the business operations of the trip ledger:
// authoring ledger rows, managing shared trip expenses and settlements, and
// answering balance queries. Every write runs inside one unit-of-work
// transaction and leaves the touched rows dirty for the next sync pass.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/ledgersync/pkg/domain"
	"github.com/amirasaad/ledgersync/pkg/dto"
	"github.com/amirasaad/ledgersync/pkg/eventbus"
	"github.com/amirasaad/ledgersync/pkg/idempotency"
	"github.com/amirasaad/ledgersync/pkg/repository"
	"github.com/go-playground/validator/v10"
)

// Notifier is poked after every successful local write so the sync layer
// can schedule a debounced push. Nil notifiers are allowed in tests.
type Notifier interface {
	NotifyLocalChange()
}

// LedgerService manages user-authored ledger rows: plain transactions,
// account transfers and balance adjustments.
type LedgerService struct {
	uow      repository.UnitOfWork
	bus      eventbus.EventBus
	notifier Notifier
	validate *validator.Validate
	userID   string
	logger   *slog.Logger
	now      func() time.Time
}

// NewLedgerService creates a ledger service for one user's device store.
func NewLedgerService(
	uow repository.UnitOfWork,
	bus eventbus.EventBus,
	notifier Notifier,
	userID string,
	logger *slog.Logger,
) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{
		uow:      uow,
		bus:      bus,
		notifier: notifier,
		validate: validator.New(),
		userID:   userID,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateTransaction books a plain expense or income row.
func (s *LedgerService) CreateTransaction(
	ctx context.Context,
	create dto.TransactionCreate,
) (*dto.TransactionRead, error) {
	if err := s.validate.Struct(create); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	now := s.now()
	tx := domain.NewTransaction(s.userID, create.Amount, domain.TxType(create.Type), now)
	tx.Description = create.Description
	tx.AccountID = create.AccountID
	tx.CategoryID = create.CategoryID
	if !create.Date.IsZero() {
		tx.Date = create.Date
	}

	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		return uow.Transactions().Upsert(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx)
	return dto.NewTransactionRead(tx), nil
}

// CreateTransfer books a paired outgoing and incoming row between two
// accounts. Row ids derive from the transfer's content, so an accidental
// double submit within the dedup window lands on the same rows instead of
// duplicating them.
func (s *LedgerService) CreateTransfer(
	ctx context.Context,
	create dto.TransferCreate,
) ([]*dto.TransactionRead, error) {
	if err := s.validate.Struct(create); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	now := s.now()
	date := create.Date
	if date.IsZero() {
		date = now
	}
	fields := map[string]any{
		"from":   create.FromAccountID,
		"to":     create.ToAccountID,
		"amount": create.Amount,
		"date":   date.Format(time.RFC3339),
	}

	out := &domain.Transaction{
		ID:          idempotency.Key("transfer-out", fields, now),
		UserID:      s.userID,
		Amount:      create.Amount,
		Type:        domain.TxTypeExpense,
		SystemKind:  domain.SystemKindTransfer,
		Description: create.Description,
		Date:        date,
		AccountID:   &create.FromAccountID,
		Sync:        domain.NewSyncMeta(now),
	}
	in := &domain.Transaction{
		ID:          idempotency.Key("transfer-in", fields, now),
		UserID:      s.userID,
		Amount:      create.Amount,
		Type:        domain.TxTypeIncome,
		SystemKind:  domain.SystemKindTransfer,
		Description: create.Description,
		Date:        date,
		AccountID:   &create.ToAccountID,
		Sync:        domain.NewSyncMeta(now),
	}

	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		return uow.Transactions().Upsert(ctx, out, in)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx)
	return []*dto.TransactionRead{
		dto.NewTransactionRead(out),
		dto.NewTransactionRead(in),
	}, nil
}

// CreateAdjustment books a balance correction against one account.
func (s *LedgerService) CreateAdjustment(
	ctx context.Context,
	create dto.AdjustmentCreate,
) (*dto.TransactionRead, error) {
	if err := s.validate.Struct(create); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	now := s.now()
	date := create.Date
	if date.IsZero() {
		date = now
	}
	tx := &domain.Transaction{
		ID: idempotency.Key("adjustment", map[string]any{
			"account": create.AccountID,
			"amount":  create.Amount,
			"type":    create.Type,
			"date":    date.Format(time.RFC3339),
		}, now),
		UserID:      s.userID,
		Amount:      create.Amount,
		Type:        domain.TxType(create.Type),
		SystemKind:  domain.SystemKindAdjustment,
		Description: create.Description,
		Date:        date,
		AccountID:   &create.AccountID,
		Sync:        domain.NewSyncMeta(now),
	}

	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		return uow.Transactions().Upsert(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx)
	return dto.NewTransactionRead(tx), nil
}

// DeleteTransaction tombstones a user-authored row. Derived rows belong to
// the reconciler and cannot be deleted directly.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		tx, err := uow.Transactions().Get(ctx, id)
		if err != nil {
			return err
		}
		if tx.IsDerived() {
			return fmt.Errorf("%w: derived rows are managed automatically", domain.ErrValidation)
		}
		return uow.Transactions().SoftDelete(ctx, s.now(), id)
	})
	if err != nil {
		return err
	}
	s.changed(ctx)
	return nil
}

// ListTransactions returns the user's live ledger rows.
func (s *LedgerService) ListTransactions(ctx context.Context) ([]*dto.TransactionRead, error) {
	var rows []*domain.Transaction
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		var err error
		rows, err = uow.Transactions().ListByUser(ctx, s.userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]*dto.TransactionRead, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.NewTransactionRead(row))
	}
	return out, nil
}

// ListByAccount returns an account's live ledger rows.
func (s *LedgerService) ListByAccount(
	ctx context.Context,
	accountID string,
) ([]*dto.TransactionRead, error) {
	var rows []*domain.Transaction
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		var err error
		rows, err = uow.Transactions().ListByAccount(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]*dto.TransactionRead, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.NewTransactionRead(row))
	}
	return out, nil
}

func (s *LedgerService) changed(ctx context.Context) {
	if s.bus != nil {
		if err := s.bus.Publish(ctx, domain.TransactionsChanged{UserID: s.userID}); err != nil {
			s.logger.Error("publish failed", "event", "TransactionsChanged", "error", err)
		}
	}
	if s.notifier != nil {
		s.notifier.NotifyLocalChange()
	}
}
