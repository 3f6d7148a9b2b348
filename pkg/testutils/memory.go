// Package testutils provides in-memory Local Store and cursor-store
// implementations used by reconciler and sync-engine tests.
package testutils

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/amirasaad/ledgersync/pkg/domain"
	"github.com/amirasaad/ledgersync/pkg/repository"
)

// MemoryStore implements repository.UnitOfWork over plain maps. Do runs the
// function directly; the store itself acts as the transaction session.
// Writes counts mutating repository calls, letting tests assert that a
// replayed reconciliation produced zero additional writes.
type MemoryStore struct {
	mu sync.Mutex

	TransactionRows map[string]*domain.Transaction
	TripRows        map[string]*domain.Trip
	ParticipantRows map[string]*domain.TripParticipant
	ExpenseRows     map[string]*domain.TripExpense
	SettlementRows  map[string]*domain.TripSettlement

	Writes int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		TransactionRows: map[string]*domain.Transaction{},
		TripRows:        map[string]*domain.Trip{},
		ParticipantRows: map[string]*domain.TripParticipant{},
		ExpenseRows:     map[string]*domain.TripExpense{},
		SettlementRows:  map[string]*domain.TripSettlement{},
	}
}

// Do implements repository.UnitOfWork.
func (s *MemoryStore) Do(_ context.Context, fn func(uow repository.UnitOfWork) error) error {
	return fn(s)
}

// Transactions implements repository.UnitOfWork.
func (s *MemoryStore) Transactions() repository.TransactionRepository {
	return (*memTransactions)(s)
}

// Trips implements repository.UnitOfWork.
func (s *MemoryStore) Trips() repository.TripRepository {
	return (*memTrips)(s)
}

// Seed inserts entities without counting writes.
func (s *MemoryStore) Seed(entities ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		switch v := e.(type) {
		case *domain.Transaction:
			s.TransactionRows[v.ID] = v
		case *domain.Trip:
			s.TripRows[v.ID] = v
		case *domain.TripParticipant:
			s.ParticipantRows[v.ID] = v
		case *domain.TripExpense:
			s.ExpenseRows[v.ID] = v
		case *domain.TripSettlement:
			s.SettlementRows[v.ID] = v
		default:
			panic("testutils: unknown entity type")
		}
	}
}

type memTransactions MemoryStore

func (r *memTransactions) Get(_ context.Context, id string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.TransactionRows[id]
	if !ok || row.Sync.IsDeleted() {
		return nil, domain.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *memTransactions) ListByAccount(_ context.Context, accountID string) ([]*domain.Transaction, error) {
	return r.list(func(t *domain.Transaction) bool {
		return !t.Sync.IsDeleted() && t.AccountID != nil && *t.AccountID == accountID
	}), nil
}

func (r *memTransactions) ListByUser(_ context.Context, userID string) ([]*domain.Transaction, error) {
	return r.list(func(t *domain.Transaction) bool {
		return !t.Sync.IsDeleted() && t.UserID == userID
	}), nil
}

func (r *memTransactions) ListDerivedBySources(_ context.Context, sourceIDs []string) ([]*domain.Transaction, error) {
	wanted := map[string]bool{}
	for _, id := range sourceIDs {
		wanted[id] = true
	}
	return r.list(func(t *domain.Transaction) bool {
		return t.IsDerived() && wanted[t.SourceID()]
	}), nil
}

func (r *memTransactions) ListDirty(_ context.Context) ([]*domain.Transaction, error) {
	return r.list(func(t *domain.Transaction) bool { return t.Sync.Dirty }), nil
}

func (r *memTransactions) Upsert(_ context.Context, rows ...*domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		cp := *row
		r.TransactionRows[row.ID] = &cp
		r.Writes++
	}
	return nil
}

func (r *memTransactions) SoftDelete(_ context.Context, now time.Time, ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if row, ok := r.TransactionRows[id]; ok {
			row.Sync.Tombstone(now)
			r.Writes++
		}
	}
	return nil
}

func (r *memTransactions) MarkClean(_ context.Context, versions map[string]int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, version := range versions {
		if row, ok := r.TransactionRows[id]; ok && row.Sync.Version == version {
			row.Sync.MarkSynced()
		}
	}
	return nil
}

func (r *memTransactions) ApplyRemote(_ context.Context, rows ...*domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		cp := *row
		cp.Sync.Dirty = false
		r.TransactionRows[row.ID] = &cp
		r.Writes++
	}
	return nil
}

func (r *memTransactions) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.TransactionRows)), nil
}

func (r *memTransactions) list(keep func(*domain.Transaction) bool) []*domain.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for _, row := range r.TransactionRows {
		if keep(row) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memTrips MemoryStore

func (r *memTrips) Get(_ context.Context, id string) (*domain.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	trip, ok := r.TripRows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *trip
	return &cp, nil
}

func (r *memTrips) List(_ context.Context, userID string) ([]*domain.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Trip
	for _, t := range r.TripRows {
		if t.UserID == userID && !t.Sync.IsDeleted() {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTrips) Participants(_ context.Context, tripID string) ([]*domain.TripParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TripParticipant
	for _, p := range r.ParticipantRows {
		if p.TripID == tripID && !p.Sync.IsDeleted() {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTrips) Expenses(_ context.Context, tripID string) ([]*domain.TripExpense, error) {
	return r.expenses(tripID, false), nil
}

func (r *memTrips) ExpensesIncludingDeleted(_ context.Context, tripID string) ([]*domain.TripExpense, error) {
	return r.expenses(tripID, true), nil
}

func (r *memTrips) GetExpense(_ context.Context, id string) (*domain.TripExpense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.ExpenseRows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memTrips) Settlements(_ context.Context, tripID string) ([]*domain.TripSettlement, error) {
	return r.settlements(tripID, false), nil
}

func (r *memTrips) SettlementsIncludingDeleted(_ context.Context, tripID string) ([]*domain.TripSettlement, error) {
	return r.settlements(tripID, true), nil
}

func (r *memTrips) expenses(tripID string, includeDeleted bool) []*domain.TripExpense {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TripExpense
	for _, e := range r.ExpenseRows {
		if e.TripID != tripID {
			continue
		}
		if !includeDeleted && e.Sync.IsDeleted() {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memTrips) settlements(tripID string, includeDeleted bool) []*domain.TripSettlement {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TripSettlement
	for _, s := range r.SettlementRows {
		if s.TripID != tripID {
			continue
		}
		if !includeDeleted && s.Sync.IsDeleted() {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memTrips) UpsertTrips(_ context.Context, trips ...*domain.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range trips {
		cp := *t
		r.TripRows[t.ID] = &cp
		r.Writes++
	}
	return nil
}

func (r *memTrips) UpsertParticipants(_ context.Context, ps ...*domain.TripParticipant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range ps {
		cp := *p
		r.ParticipantRows[p.ID] = &cp
		r.Writes++
	}
	return nil
}

func (r *memTrips) UpsertExpenses(_ context.Context, es ...*domain.TripExpense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range es {
		cp := *e
		r.ExpenseRows[e.ID] = &cp
		r.Writes++
	}
	return nil
}

func (r *memTrips) UpsertSettlements(_ context.Context, ss ...*domain.TripSettlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range ss {
		cp := *s
		r.SettlementRows[s.ID] = &cp
		r.Writes++
	}
	return nil
}

func (r *memTrips) SoftDeleteTrips(_ context.Context, now time.Time, ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if t, ok := r.TripRows[id]; ok {
			t.Sync.Tombstone(now)
			r.Writes++
		}
	}
	return nil
}

func (r *memTrips) SoftDeleteExpenses(_ context.Context, now time.Time, ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if e, ok := r.ExpenseRows[id]; ok {
			e.Sync.Tombstone(now)
			r.Writes++
		}
	}
	return nil
}

func (r *memTrips) SoftDeleteSettlements(_ context.Context, now time.Time, ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if s, ok := r.SettlementRows[id]; ok {
			s.Sync.Tombstone(now)
			r.Writes++
		}
	}
	return nil
}

func (r *memTrips) DirtyTrips(context.Context) ([]*domain.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Trip
	for _, t := range r.TripRows {
		if t.Sync.Dirty {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTrips) DirtyParticipants(context.Context) ([]*domain.TripParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TripParticipant
	for _, p := range r.ParticipantRows {
		if p.Sync.Dirty {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTrips) DirtyExpenses(context.Context) ([]*domain.TripExpense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TripExpense
	for _, e := range r.ExpenseRows {
		if e.Sync.Dirty {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTrips) DirtySettlements(context.Context) ([]*domain.TripSettlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TripSettlement
	for _, s := range r.SettlementRows {
		if s.Sync.Dirty {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTrips) MarkTripsClean(_ context.Context, versions map[string]int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, version := range versions {
		if t, ok := r.TripRows[id]; ok && t.Sync.Version == version {
			t.Sync.MarkSynced()
		}
	}
	return nil
}

func (r *memTrips) MarkParticipantsClean(_ context.Context, versions map[string]int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, version := range versions {
		if p, ok := r.ParticipantRows[id]; ok && p.Sync.Version == version {
			p.Sync.MarkSynced()
		}
	}
	return nil
}

func (r *memTrips) MarkExpensesClean(_ context.Context, versions map[string]int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, version := range versions {
		if e, ok := r.ExpenseRows[id]; ok && e.Sync.Version == version {
			e.Sync.MarkSynced()
		}
	}
	return nil
}

func (r *memTrips) MarkSettlementsClean(_ context.Context, versions map[string]int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, version := range versions {
		if s, ok := r.SettlementRows[id]; ok && s.Sync.Version == version {
			s.Sync.MarkSynced()
		}
	}
	return nil
}

func (r *memTrips) ApplyRemoteTrips(_ context.Context, trips ...*domain.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range trips {
		cp := *t
		cp.Sync.Dirty = false
		r.TripRows[t.ID] = &cp
		r.Writes++
	}
	return nil
}

func (r *memTrips) ApplyRemoteParticipants(_ context.Context, ps ...*domain.TripParticipant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range ps {
		cp := *p
		cp.Sync.Dirty = false
		r.ParticipantRows[p.ID] = &cp
		r.Writes++
	}
	return nil
}

func (r *memTrips) ApplyRemoteExpenses(_ context.Context, es ...*domain.TripExpense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range es {
		cp := *e
		cp.Sync.Dirty = false
		r.ExpenseRows[e.ID] = &cp
		r.Writes++
	}
	return nil
}

func (r *memTrips) ApplyRemoteSettlements(_ context.Context, ss ...*domain.TripSettlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range ss {
		cp := *s
		cp.Sync.Dirty = false
		r.SettlementRows[s.ID] = &cp
		r.Writes++
	}
	return nil
}

// MemoryCursorStore implements repository.CursorStore over a map.
type MemoryCursorStore struct {
	mu      sync.Mutex
	cursors map[string]int64
}

// NewMemoryCursorStore creates an empty cursor store.
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{cursors: map[string]int64{}}
}

// Get implements repository.CursorStore; missing keys read as 0.
func (c *MemoryCursorStore) Get(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursors[key], nil
}

// Set implements repository.CursorStore.
func (c *MemoryCursorStore) Set(_ context.Context, key string, seq int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursors[key] = seq
	return nil
}

// Delete implements repository.CursorStore.
func (c *MemoryCursorStore) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cursors, key)
	return nil
}

// List implements repository.CursorStore.
func (c *MemoryCursorStore) List(_ context.Context, prefix string) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]int64{}
	for k, v := range c.cursors {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out[k] = v
		}
	}
	return out, nil
}
