package repository

import (
	"context"
	"time"

	"github.com/amirasaad/ledgersync/pkg/domain"
	repo "github.com/amirasaad/ledgersync/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a ledger-row repository bound to the
// given gorm session.
func NewTransactionRepository(db *gorm.DB) repo.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Get(
	ctx context.Context,
	id string,
) (*domain.Transaction, error) {
	var m Transaction
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapGormError(err)
	}
	if m.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	return mapModelToTransaction(&m), nil
}

func (r *transactionRepository) ListByAccount(
	ctx context.Context,
	accountID string,
) ([]*domain.Transaction, error) {
	return r.list(ctx, "account_id = ? AND deleted_at IS NULL", accountID)
}

func (r *transactionRepository) ListByUser(
	ctx context.Context,
	userID string,
) ([]*domain.Transaction, error) {
	return r.list(ctx, "user_id = ? AND deleted_at IS NULL", userID)
}

func (r *transactionRepository) ListDerivedBySources(
	ctx context.Context,
	sourceIDs []string,
) ([]*domain.Transaction, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}
	return r.list(
		ctx,
		"source_trip_expense_id IN ? OR source_trip_settlement_id IN ?",
		sourceIDs, sourceIDs,
	)
}

func (r *transactionRepository) ListDirty(
	ctx context.Context,
) ([]*domain.Transaction, error) {
	return r.list(ctx, "dirty = ?", true)
}

func (r *transactionRepository) Upsert(
	ctx context.Context,
	rows ...*domain.Transaction,
) error {
	if len(rows) == 0 {
		return nil
	}
	models := make([]Transaction, 0, len(rows))
	for _, row := range rows {
		models = append(models, mapTransactionToModel(row))
	}
	return r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		},
	).Create(&models).Error
}

func (r *transactionRepository) SoftDelete(
	ctx context.Context,
	now time.Time,
	ids ...string,
) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("id IN ? AND deleted_at IS NULL", ids).
		Updates(map[string]any{
			"deleted_at": now,
			"updated_at": now,
			"dirty":      true,
			"version":    gorm.Expr("version + 1"),
		}).Error
}

func (r *transactionRepository) MarkClean(
	ctx context.Context,
	versions map[string]int64,
) error {
	for id, version := range versions {
		if err := r.db.WithContext(ctx).
			Model(&Transaction{}).
			Where("id = ? AND version = ?", id, version).
			Update("dirty", false).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *transactionRepository) ApplyRemote(
	ctx context.Context,
	rows ...*domain.Transaction,
) error {
	if len(rows) == 0 {
		return nil
	}
	models := make([]Transaction, 0, len(rows))
	for _, row := range rows {
		m := mapTransactionToModel(row)
		m.Dirty = false
		models = append(models, m)
	}
	return r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		},
	).Create(&models).Error
}

func (r *transactionRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Transaction{}).Count(&n).Error
	return n, err
}

func (r *transactionRepository) list(
	ctx context.Context,
	query string,
	args ...any,
) ([]*domain.Transaction, error) {
	var models []Transaction
	if err := r.db.WithContext(ctx).
		Where(query, args...).
		Order("date, id").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Transaction, 0, len(models))
	for i := range models {
		out = append(out, mapModelToTransaction(&models[i]))
	}
	return out, nil
}
