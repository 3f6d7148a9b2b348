package repository

import (
	"context"
	"time"

	"github.com/amirasaad/ledgersync/pkg/domain"
	repo "github.com/amirasaad/ledgersync/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type tripRepository struct {
	db *gorm.DB
}

// NewTripRepository creates a trip repository bound to the given gorm
// session.
func NewTripRepository(db *gorm.DB) repo.TripRepository {
	return &tripRepository{db: db}
}

func (r *tripRepository) Get(ctx context.Context, id string) (*domain.Trip, error) {
	var m Trip
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapGormError(err)
	}
	if m.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	return mapModelToTrip(&m), nil
}

func (r *tripRepository) List(ctx context.Context, userID string) ([]*domain.Trip, error) {
	var models []Trip
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Order("name, id").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Trip, 0, len(models))
	for i := range models {
		out = append(out, mapModelToTrip(&models[i]))
	}
	return out, nil
}

func (r *tripRepository) Participants(
	ctx context.Context,
	tripID string,
) ([]*domain.TripParticipant, error) {
	var models []TripParticipant
	if err := r.db.WithContext(ctx).
		Where("trip_id = ? AND deleted_at IS NULL", tripID).
		Order("id").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.TripParticipant, 0, len(models))
	for i := range models {
		out = append(out, mapModelToParticipant(&models[i]))
	}
	return out, nil
}

func (r *tripRepository) Expenses(
	ctx context.Context,
	tripID string,
) ([]*domain.TripExpense, error) {
	return r.listExpenses(ctx, "trip_id = ? AND deleted_at IS NULL", tripID)
}

func (r *tripRepository) ExpensesIncludingDeleted(
	ctx context.Context,
	tripID string,
) ([]*domain.TripExpense, error) {
	return r.listExpenses(ctx, "trip_id = ?", tripID)
}

func (r *tripRepository) GetExpense(
	ctx context.Context,
	id string,
) (*domain.TripExpense, error) {
	var m TripExpense
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapGormError(err)
	}
	return mapModelToExpense(&m)
}

func (r *tripRepository) Settlements(
	ctx context.Context,
	tripID string,
) ([]*domain.TripSettlement, error) {
	return r.listSettlements(ctx, "trip_id = ? AND deleted_at IS NULL", tripID)
}

func (r *tripRepository) SettlementsIncludingDeleted(
	ctx context.Context,
	tripID string,
) ([]*domain.TripSettlement, error) {
	return r.listSettlements(ctx, "trip_id = ?", tripID)
}

func (r *tripRepository) UpsertTrips(ctx context.Context, trips ...*domain.Trip) error {
	if len(trips) == 0 {
		return nil
	}
	models := make([]Trip, 0, len(trips))
	for _, t := range trips {
		models = append(models, mapTripToModel(t))
	}
	return r.upsert(ctx, &models)
}

func (r *tripRepository) UpsertParticipants(
	ctx context.Context,
	ps ...*domain.TripParticipant,
) error {
	if len(ps) == 0 {
		return nil
	}
	models := make([]TripParticipant, 0, len(ps))
	for _, p := range ps {
		models = append(models, mapParticipantToModel(p))
	}
	return r.upsert(ctx, &models)
}

func (r *tripRepository) UpsertExpenses(
	ctx context.Context,
	es ...*domain.TripExpense,
) error {
	if len(es) == 0 {
		return nil
	}
	models := make([]TripExpense, 0, len(es))
	for _, e := range es {
		m, err := mapExpenseToModel(e)
		if err != nil {
			return err
		}
		models = append(models, m)
	}
	return r.upsert(ctx, &models)
}

func (r *tripRepository) UpsertSettlements(
	ctx context.Context,
	ss ...*domain.TripSettlement,
) error {
	if len(ss) == 0 {
		return nil
	}
	models := make([]TripSettlement, 0, len(ss))
	for _, s := range ss {
		models = append(models, mapSettlementToModel(s))
	}
	return r.upsert(ctx, &models)
}

func (r *tripRepository) SoftDeleteTrips(
	ctx context.Context,
	now time.Time,
	ids ...string,
) error {
	return r.softDelete(ctx, &Trip{}, now, ids)
}

func (r *tripRepository) SoftDeleteExpenses(
	ctx context.Context,
	now time.Time,
	ids ...string,
) error {
	return r.softDelete(ctx, &TripExpense{}, now, ids)
}

func (r *tripRepository) SoftDeleteSettlements(
	ctx context.Context,
	now time.Time,
	ids ...string,
) error {
	return r.softDelete(ctx, &TripSettlement{}, now, ids)
}

func (r *tripRepository) DirtyTrips(ctx context.Context) ([]*domain.Trip, error) {
	var models []Trip
	if err := r.db.WithContext(ctx).
		Where("dirty = ?", true).Order("id").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Trip, 0, len(models))
	for i := range models {
		out = append(out, mapModelToTrip(&models[i]))
	}
	return out, nil
}

func (r *tripRepository) DirtyParticipants(
	ctx context.Context,
) ([]*domain.TripParticipant, error) {
	var models []TripParticipant
	if err := r.db.WithContext(ctx).
		Where("dirty = ?", true).Order("id").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.TripParticipant, 0, len(models))
	for i := range models {
		out = append(out, mapModelToParticipant(&models[i]))
	}
	return out, nil
}

func (r *tripRepository) DirtyExpenses(
	ctx context.Context,
) ([]*domain.TripExpense, error) {
	return r.listExpenses(ctx, "dirty = ?", true)
}

func (r *tripRepository) DirtySettlements(
	ctx context.Context,
) ([]*domain.TripSettlement, error) {
	return r.listSettlements(ctx, "dirty = ?", true)
}

func (r *tripRepository) MarkTripsClean(ctx context.Context, versions map[string]int64) error {
	return r.markClean(ctx, &Trip{}, versions)
}

func (r *tripRepository) MarkParticipantsClean(ctx context.Context, versions map[string]int64) error {
	return r.markClean(ctx, &TripParticipant{}, versions)
}

func (r *tripRepository) MarkExpensesClean(ctx context.Context, versions map[string]int64) error {
	return r.markClean(ctx, &TripExpense{}, versions)
}

func (r *tripRepository) MarkSettlementsClean(ctx context.Context, versions map[string]int64) error {
	return r.markClean(ctx, &TripSettlement{}, versions)
}

func (r *tripRepository) ApplyRemoteTrips(ctx context.Context, trips ...*domain.Trip) error {
	clean := make([]*domain.Trip, 0, len(trips))
	for _, t := range trips {
		c := *t
		c.Sync.Dirty = false
		clean = append(clean, &c)
	}
	return r.UpsertTrips(ctx, clean...)
}

func (r *tripRepository) ApplyRemoteParticipants(
	ctx context.Context,
	ps ...*domain.TripParticipant,
) error {
	clean := make([]*domain.TripParticipant, 0, len(ps))
	for _, p := range ps {
		c := *p
		c.Sync.Dirty = false
		clean = append(clean, &c)
	}
	return r.UpsertParticipants(ctx, clean...)
}

func (r *tripRepository) ApplyRemoteExpenses(
	ctx context.Context,
	es ...*domain.TripExpense,
) error {
	clean := make([]*domain.TripExpense, 0, len(es))
	for _, e := range es {
		c := *e
		c.Sync.Dirty = false
		clean = append(clean, &c)
	}
	return r.UpsertExpenses(ctx, clean...)
}

func (r *tripRepository) ApplyRemoteSettlements(
	ctx context.Context,
	ss ...*domain.TripSettlement,
) error {
	clean := make([]*domain.TripSettlement, 0, len(ss))
	for _, s := range ss {
		c := *s
		c.Sync.Dirty = false
		clean = append(clean, &c)
	}
	return r.UpsertSettlements(ctx, clean...)
}

// --- shared helpers ---

func (r *tripRepository) upsert(ctx context.Context, models any) error {
	return r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		},
	).Create(models).Error
}

func (r *tripRepository) softDelete(
	ctx context.Context,
	model any,
	now time.Time,
	ids []string,
) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(model).
		Where("id IN ? AND deleted_at IS NULL", ids).
		Updates(map[string]any{
			"deleted_at": now,
			"updated_at": now,
			"dirty":      true,
			"version":    gorm.Expr("version + 1"),
		}).Error
}

// markClean clears dirty per row, guarded on the version captured when the
// row was batched. A mid-push edit bumps the version and keeps the flag.
func (r *tripRepository) markClean(ctx context.Context, model any, versions map[string]int64) error {
	for id, version := range versions {
		if err := r.db.WithContext(ctx).
			Model(model).
			Where("id = ? AND version = ?", id, version).
			Update("dirty", false).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *tripRepository) listExpenses(
	ctx context.Context,
	query string,
	args ...any,
) ([]*domain.TripExpense, error) {
	var models []TripExpense
	if err := r.db.WithContext(ctx).
		Where(query, args...).Order("id").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.TripExpense, 0, len(models))
	for i := range models {
		e, err := mapModelToExpense(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *tripRepository) listSettlements(
	ctx context.Context,
	query string,
	args ...any,
) ([]*domain.TripSettlement, error) {
	var models []TripSettlement
	if err := r.db.WithContext(ctx).
		Where(query, args...).Order("id").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.TripSettlement, 0, len(models))
	for i := range models {
		out = append(out, mapModelToSettlement(&models[i]))
	}
	return out, nil
}
