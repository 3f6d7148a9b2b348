package domain

import "time"

// SyncMeta is the replication metadata carried by every synced entity.
// Dirty marks rows pending push; Version increments on every local edit;
// DeletedAt is the tombstone marker. Tombstoned rows are never hard-deleted
// while their metadata is live, so the tombstone itself replicates.
type SyncMeta struct {
	Dirty     bool       `json:"dirty"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// NewSyncMeta returns metadata for a freshly created local entity, already
// marked dirty so the next push replicates it.
func NewSyncMeta(now time.Time) SyncMeta {
	return SyncMeta{
		Dirty:     true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch records a local edit: bumps the version and re-dirties the row.
func (m *SyncMeta) Touch(now time.Time) {
	m.Version++
	m.Dirty = true
	m.UpdatedAt = now
}

// Tombstone soft-deletes the entity. The row stays in the store and keeps
// replicating until the remote has acknowledged the deletion.
func (m *SyncMeta) Tombstone(now time.Time) {
	if m.DeletedAt == nil {
		t := now
		m.DeletedAt = &t
	}
	m.Touch(now)
}

// IsDeleted reports whether the entity is tombstoned.
func (m *SyncMeta) IsDeleted() bool { return m.DeletedAt != nil }

// MarkSynced clears the dirty flag after a push has been acknowledged.
func (m *SyncMeta) MarkSynced() { m.Dirty = false }
