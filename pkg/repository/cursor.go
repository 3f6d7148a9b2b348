package repository

import (
	"context"
	"fmt"
)

// CursorStore is durable key-value storage for replication cursors. A cursor
// records the last remote sequence number successfully applied for one sync
// scope and must survive process restart. Missing keys read as 0.
type CursorStore interface {
	Get(ctx context.Context, key string) (int64, error)
	Set(ctx context.Context, key string, seq int64) error
	Delete(ctx context.Context, key string) error
	// List returns every stored key with the given prefix.
	List(ctx context.Context, prefix string) (map[string]int64, error)
}

// UserCursorKey scopes the flat user-level replication cursor.
func UserCursorKey(userID string) string {
	return "user:" + userID
}

// TripCursorKey scopes the independent per-(user, trip) cursor of a shared
// trip.
func TripCursorKey(userID, tripID string) string {
	return fmt.Sprintf("trip:%s:%s", userID, tripID)
}

// TripCursorPrefix is the prefix of all of a user's shared-trip cursors.
func TripCursorPrefix(userID string) string {
	return fmt.Sprintf("trip:%s:", userID)
}

// MembershipKey stores the signature of the user's last-seen shared-trip
// membership set.
func MembershipKey(userID string) string {
	return "memberships:" + userID
}
