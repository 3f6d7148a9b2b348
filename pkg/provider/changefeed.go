// Package provider defines the external collaborators of the sync core: the
// remote changefeed the engine pushes to and pulls from, and the account
// provider supplying the default account for derived cashflow rows.
package provider

import (
	"context"
	"encoding/json"
	"errors"
)

// Table names used to key push batches and pull deltas.
const (
	TableTransactions = "transactions"
	TableTrips        = "trips"
	TableParticipants = "trip_participants"
	TableExpenses     = "trip_expenses"
	TableSettlements  = "trip_settlements"
)

// Row is one replicated row snapshot on the wire. Payload is the full entity
// including its replication metadata; Seq is assigned by the remote and only
// meaningful on pull.
type Row struct {
	ID      string          `json:"id"`
	Seq     int64           `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Batch is one outbound push: every locally dirty row across owned tables,
// keyed by table name. Application is id-keyed and idempotent on the remote
// side, so at-least-once delivery is safe.
type Batch struct {
	UserID string           `json:"userId"`
	Tables map[string][]Row `json:"tables"`
}

// Empty reports whether the batch carries no rows.
func (b Batch) Empty() bool {
	for _, rows := range b.Tables {
		if len(rows) > 0 {
			return false
		}
	}
	return true
}

// PullRequest asks for all remote changes with sequence number greater than
// Since (0 = from the beginning). TripID scopes the request to one shared
// trip's feed; empty means the flat user scope.
type PullRequest struct {
	UserID string `json:"userId"`
	TripID string `json:"tripId,omitempty"`
	Since  int64  `json:"since"`
}

// Delta is the result of a pull: changed rows per table, tombstones
// included, plus the remote feed's latest sequence number. LatestSeq must be
// persisted only after the rows applied locally.
type Delta struct {
	Tables    map[string][]Row `json:"tables"`
	LatestSeq int64            `json:"latestSeq"`
}

// Changefeed is the remote store the engine replicates against. The feed's
// own sequence numbers are the conflict-resolution order (last writer wins
// by server sequence, not by local timestamps).
type Changefeed interface {
	Push(ctx context.Context, batch Batch) error
	Pull(ctx context.Context, req PullRequest) (*Delta, error)
	// Memberships returns the ids of the shared trips the user currently
	// belongs to.
	Memberships(ctx context.Context, userID string) ([]string, error)
}

// Sentinel errors a Changefeed implementation maps its failures onto.
var (
	// ErrTransientNetwork marks failures worth retrying on the normal
	// trigger cadence.
	ErrTransientNetwork = errors.New("transient network failure")
	// ErrRemoteRejected marks a malformed push payload; the batch aborts
	// and no row is marked clean.
	ErrRemoteRejected = errors.New("remote rejected payload")
)
