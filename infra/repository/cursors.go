package repository

import (
	"context"
	"errors"
	"strings"

	repo "github.com/amirasaad/ledgersync/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Cursor is one persisted replication cursor. Missing keys read as 0.
type Cursor struct {
	Key string `gorm:"primaryKey;size:160"`
	Seq int64  `gorm:"not null"`
}

type cursorStore struct {
	db *gorm.DB
}

// NewCursorStore creates a durable cursor store on the given gorm session.
func NewCursorStore(db *gorm.DB) repo.CursorStore {
	return &cursorStore{db: db}
}

func (s *cursorStore) Get(ctx context.Context, key string) (int64, error) {
	var c Cursor
	err := s.db.WithContext(ctx).First(&c, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return c.Seq, nil
}

func (s *cursorStore) Set(ctx context.Context, key string, seq int64) error {
	return s.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"seq"}),
		},
	).Create(&Cursor{Key: key, Seq: seq}).Error
}

func (s *cursorStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&Cursor{}, "key = ?", key).Error
}

func (s *cursorStore) List(ctx context.Context, prefix string) (map[string]int64, error) {
	var cursors []Cursor
	if err := s.db.WithContext(ctx).
		Where("key LIKE ?", likePrefix(prefix)).
		Find(&cursors).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(cursors))
	for _, c := range cursors {
		out[c.Key] = c.Seq
	}
	return out, nil
}

// likePrefix escapes LIKE metacharacters so a literal prefix match never
// widens into a pattern match.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
