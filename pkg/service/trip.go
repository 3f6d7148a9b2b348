package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/amirasaad/ledgersync/pkg/debt"
	"github.com/amirasaad/ledgersync/pkg/domain"
	"github.com/amirasaad/ledgersync/pkg/dto"
	"github.com/amirasaad/ledgersync/pkg/eventbus"
	"github.com/amirasaad/ledgersync/pkg/idempotency"
	"github.com/amirasaad/ledgersync/pkg/repository"
	"github.com/amirasaad/ledgersync/pkg/split"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// TripService manages trips, shared expenses and settlements, and answers
// the balance queries built on them.
type TripService struct {
	uow      repository.UnitOfWork
	bus      eventbus.EventBus
	notifier Notifier
	validate *validator.Validate
	userID   string
	logger   *slog.Logger
	now      func() time.Time
}

// NewTripService creates a trip service for one user's device store.
func NewTripService(
	uow repository.UnitOfWork,
	bus eventbus.EventBus,
	notifier Notifier,
	userID string,
	logger *slog.Logger,
) *TripService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TripService{
		uow:      uow,
		bus:      bus,
		notifier: notifier,
		validate: validator.New(),
		userID:   userID,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateTrip creates a trip with a single current-user seat.
func (s *TripService) CreateTrip(
	ctx context.Context,
	name string,
	group bool,
) (*domain.Trip, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: trip name required", domain.ErrValidation)
	}
	now := s.now()
	trip := domain.NewTrip(s.userID, name, group, now)
	me := &domain.TripParticipant{
		ID:          uuid.NewString(),
		TripID:      trip.ID,
		Name:        "Me",
		CurrentUser: true,
		Sync:        domain.NewSyncMeta(now),
	}
	if group {
		uid := s.userID
		me.LinkedUserID = &uid
	}

	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		if err := uow.Trips().UpsertTrips(ctx, trip); err != nil {
			return err
		}
		return uow.Trips().UpsertParticipants(ctx, me)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, trip.ID, "")
	return trip, nil
}

// AddParticipant adds a seat to a trip.
func (s *TripService) AddParticipant(
	ctx context.Context,
	tripID, name string,
	linkedUserID *string,
) (*domain.TripParticipant, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: participant name required", domain.ErrValidation)
	}
	now := s.now()
	p := &domain.TripParticipant{
		ID:           uuid.NewString(),
		TripID:       tripID,
		Name:         name,
		LinkedUserID: linkedUserID,
		Sync:         domain.NewSyncMeta(now),
	}
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		if _, err := uow.Trips().Get(ctx, tripID); err != nil {
			return err
		}
		return uow.Trips().UpsertParticipants(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, tripID, "")
	return p, nil
}

// CreateExpense creates a shared expense and its backing ledger row in one
// transaction. The resolved per-participant splits are validated and cached
// on the expense at write time. The expense id derives from the expense's
// content, so a double-submitted create within the dedup window lands on
// the already-stored expense instead of duplicating it.
func (s *TripService) CreateExpense(
	ctx context.Context,
	create dto.ExpenseCreate,
) (*domain.TripExpense, error) {
	if err := s.validate.Struct(create); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	in := create.Split.Domain()
	if err := split.Validate(in, create.Amount); err != nil {
		return nil, err
	}

	now := s.now()
	date := create.Date
	if date.IsZero() {
		date = now
	}
	expenseID := idempotency.Key("expense", expenseKeyFields(create, in, date), now)

	tx := &domain.Transaction{
		ID:            uuid.NewString(),
		UserID:        s.userID,
		Amount:        create.Amount,
		Type:          domain.TxTypeExpense,
		Description:   create.Description,
		Date:          date,
		CategoryID:    create.CategoryID,
		TripExpenseID: &expenseID,
		Sync:          domain.NewSyncMeta(now),
	}
	expense := &domain.TripExpense{
		ID:            expenseID,
		TripID:        create.TripID,
		TransactionID: tx.ID,
		PaidByID:      create.PaidByID,
		Split:         in,
		Sync:          domain.NewSyncMeta(now),
	}

	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		participants, err := s.tripParticipants(ctx, uow, create.TripID)
		if err != nil {
			return err
		}
		if err := s.requireSeat(participants, create.PaidByID); err != nil {
			return err
		}
		existing, err := uow.Trips().GetExpense(ctx, expenseID)
		if err == nil && !existing.Sync.IsDeleted() {
			expense = existing
			return nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		expense.ComputedSplits = split.Calculate(create.Amount, in, participants)
		if err := uow.Transactions().Upsert(ctx, tx); err != nil {
			return err
		}
		return uow.Trips().UpsertExpenses(ctx, expense)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, create.TripID, expense.ID)
	return expense, nil
}

// UpdateExpense edits a shared expense and its backing row. Changed amounts
// or split inputs recompute the cached splits.
func (s *TripService) UpdateExpense(
	ctx context.Context,
	expenseID string,
	update dto.ExpenseUpdate,
) (*domain.TripExpense, error) {
	if err := s.validate.Struct(update); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	now := s.now()
	var expense *domain.TripExpense
	var tripID string
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		var err error
		expense, err = uow.Trips().GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}
		if expense.Sync.IsDeleted() {
			return domain.ErrNotFound
		}
		tripID = expense.TripID
		tx, err := uow.Transactions().Get(ctx, expense.TransactionID)
		if err != nil {
			return err
		}

		if update.Amount != nil {
			tx.Amount = *update.Amount
		}
		if update.Description != nil {
			tx.Description = *update.Description
		}
		if update.Date != nil {
			tx.Date = *update.Date
		}
		if update.PaidByID != nil {
			expense.PaidByID = *update.PaidByID
		}
		if update.Split != nil {
			expense.Split = update.Split.Domain()
		}

		participants, err := s.tripParticipants(ctx, uow, expense.TripID)
		if err != nil {
			return err
		}
		if err := s.requireSeat(participants, expense.PaidByID); err != nil {
			return err
		}
		if err := split.Validate(expense.Split, tx.Amount); err != nil {
			return err
		}
		expense.ComputedSplits = split.Calculate(tx.Amount, expense.Split, participants)

		tx.Sync.Touch(now)
		expense.Sync.Touch(now)
		if err := uow.Transactions().Upsert(ctx, tx); err != nil {
			return err
		}
		return uow.Trips().UpsertExpenses(ctx, expense)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, tripID, expenseID)
	return expense, nil
}

// DeleteExpense tombstones a shared expense together with its backing row.
func (s *TripService) DeleteExpense(ctx context.Context, expenseID string) error {
	now := s.now()
	var tripID string
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		expense, err := uow.Trips().GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}
		if expense.Sync.IsDeleted() {
			return domain.ErrNotFound
		}
		tripID = expense.TripID
		if err := uow.Trips().SoftDeleteExpenses(ctx, now, expenseID); err != nil {
			return err
		}
		return uow.Transactions().SoftDelete(ctx, now, expense.TransactionID)
	})
	if err != nil {
		return err
	}
	s.changed(ctx, tripID, expenseID)
	return nil
}

// RecordSettlement records a settle-up payment. The settlement id derives
// from the payment's content, so a double tap within the dedup window lands
// on the same row instead of recording the payment twice.
func (s *TripService) RecordSettlement(
	ctx context.Context,
	create dto.SettlementCreate,
) (*domain.TripSettlement, error) {
	if err := s.validate.Struct(create); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	now := s.now()
	date := create.Date
	if date.IsZero() {
		date = now
	}
	settlement := &domain.TripSettlement{
		ID: idempotency.Key("settlement", map[string]any{
			"trip":   create.TripID,
			"from":   create.FromID,
			"to":     create.ToID,
			"amount": create.Amount,
		}, now),
		TripID: create.TripID,
		FromID: create.FromID,
		ToID:   create.ToID,
		Amount: create.Amount,
		Date:   date,
		Note:   create.Note,
		Sync:   domain.NewSyncMeta(now),
	}

	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		participants, err := s.tripParticipants(ctx, uow, create.TripID)
		if err != nil {
			return err
		}
		if err := s.requireSeat(participants, create.FromID); err != nil {
			return err
		}
		if err := s.requireSeat(participants, create.ToID); err != nil {
			return err
		}
		existing, err := uow.Trips().Settlements(ctx, create.TripID)
		if err != nil {
			return err
		}
		for _, st := range existing {
			if st.ID == settlement.ID {
				settlement = st
				return nil
			}
		}
		return uow.Trips().UpsertSettlements(ctx, settlement)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, create.TripID, "")
	return settlement, nil
}

// DeleteSettlement tombstones a recorded settlement.
func (s *TripService) DeleteSettlement(ctx context.Context, tripID, settlementID string) error {
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		return uow.Trips().SoftDeleteSettlements(ctx, s.now(), settlementID)
	})
	if err != nil {
		return err
	}
	s.changed(ctx, tripID, "")
	return nil
}

// Balances returns every participant's position in a trip, sorted by
// participant id.
func (s *TripService) Balances(ctx context.Context, tripID string) ([]dto.BalanceRead, error) {
	participants, balances, err := s.tripBalances(ctx, tripID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.ID] = p.Name
	}

	out := make([]dto.BalanceRead, 0, len(balances))
	for _, b := range balances {
		out = append(out, dto.BalanceRead{
			ParticipantID: b.ParticipantID,
			Name:          names[b.ParticipantID],
			Paid:          b.Paid,
			Owed:          b.Owed,
			Net:           b.Net,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out, nil
}

// SettlePlan returns the minimal transfer plan that zeroes the trip's
// balances.
func (s *TripService) SettlePlan(ctx context.Context, tripID string) ([]dto.TransferRead, error) {
	_, balances, err := s.tripBalances(ctx, tripID)
	if err != nil {
		return nil, err
	}
	transfers := debt.SimplifyDebts(balances)
	out := make([]dto.TransferRead, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, dto.TransferRead{FromID: t.FromID, ToID: t.ToID, Amount: t.Amount})
	}
	return out, nil
}

// Summary reduces the current user's trip position to the two home-screen
// figures.
func (s *TripService) Summary(ctx context.Context, tripID string) (dto.SummaryRead, error) {
	participants, balances, err := s.tripBalances(ctx, tripID)
	if err != nil {
		return dto.SummaryRead{}, err
	}
	var meID string
	for _, p := range participants {
		if p.IsMe(s.userID) {
			meID = p.ID
			break
		}
	}
	summary := debt.CurrentUserSummary(balances, meID)
	return dto.SummaryRead{Owes: summary.Owes, GetsBack: summary.GetsBack}, nil
}

func (s *TripService) tripBalances(
	ctx context.Context,
	tripID string,
) ([]domain.TripParticipant, map[string]*debt.Balance, error) {
	var participants []domain.TripParticipant
	var expenses []debt.Expense
	var settlements []domain.TripSettlement

	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		if _, err := uow.Trips().Get(ctx, tripID); err != nil {
			return err
		}
		ps, err := uow.Trips().Participants(ctx, tripID)
		if err != nil {
			return err
		}
		for _, p := range ps {
			participants = append(participants, *p)
		}

		es, err := uow.Trips().Expenses(ctx, tripID)
		if err != nil {
			return err
		}
		for _, e := range es {
			tx, err := uow.Transactions().Get(ctx, e.TransactionID)
			if err != nil {
				return fmt.Errorf("expense %s backing row: %w", e.ID, err)
			}
			splits := e.ComputedSplits
			if splits == nil {
				splits = split.Calculate(tx.Amount, e.Split, participants)
			}
			expenses = append(expenses, debt.Expense{
				ID:         e.ID,
				PaidByID:   e.PaidByID,
				TotalCents: tx.Amount,
				Splits:     splits,
			})
		}

		ss, err := uow.Trips().Settlements(ctx, tripID)
		if err != nil {
			return err
		}
		for _, st := range ss {
			settlements = append(settlements, *st)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return participants, debt.CalculateBalances(participants, expenses, settlements), nil
}

func (s *TripService) tripParticipants(
	ctx context.Context,
	uow repository.UnitOfWork,
	tripID string,
) ([]domain.TripParticipant, error) {
	if _, err := uow.Trips().Get(ctx, tripID); err != nil {
		return nil, err
	}
	ps, err := uow.Trips().Participants(ctx, tripID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TripParticipant, 0, len(ps))
	for _, p := range ps {
		out = append(out, *p)
	}
	return out, nil
}

// expenseKeyFields flattens an expense's identifying content, split input
// included, into the field set its idempotency key derives from.
func expenseKeyFields(
	create dto.ExpenseCreate,
	in domain.SplitInput,
	date time.Time,
) map[string]any {
	entries := make([]string, 0, len(in.Entries))
	for _, e := range in.Entries {
		entries = append(entries, e.ParticipantID+"="+strconv.FormatFloat(e.Value, 'g', -1, 64))
	}
	sort.Strings(entries)
	return map[string]any{
		"trip":   create.TripID,
		"paidBy": create.PaidByID,
		"amount": create.Amount,
		"date":   date.UTC().Format(time.RFC3339),
		"split":  append([]string{string(in.Kind)}, entries...),
	}
}

func (s *TripService) requireSeat(participants []domain.TripParticipant, id string) error {
	for _, p := range participants {
		if p.ID == id {
			return nil
		}
	}
	return fmt.Errorf("%w: participant %s is not on this trip", domain.ErrValidation, id)
}

func (s *TripService) changed(ctx context.Context, tripID, expenseID string) {
	if s.bus != nil {
		event := domain.TripChanged{TripID: tripID, ExpenseID: expenseID}
		if err := s.bus.Publish(ctx, event); err != nil {
			s.logger.Error("publish failed", "event", event.EventType(), "error", err)
		}
	}
	if s.notifier != nil {
		s.notifier.NotifyLocalChange()
	}
}
