package repository

import (
	"errors"

	"github.com/amirasaad/ledgersync/pkg/domain"
	"gorm.io/gorm"
)

// mapGormError converts gorm errors to domain errors so callers never see
// the persistence layer's sentinel values.
func mapGormError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
