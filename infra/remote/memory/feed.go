// Package memory provides an in-memory Changefeed used by sync-engine tests
// and as a reference of the remote contract: a single monotonically
// increasing sequence per feed, id-keyed idempotent push application, and
// per-(user) and per-(trip) scoped pulls.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/amirasaad/ledgersync/pkg/provider"
)

type storedRow struct {
	provider.Row
}

// Feed is an in-memory remote store. Exported error fields let tests inject
// failures; call counters let them assert delivery behavior.
type Feed struct {
	mu          sync.Mutex
	seq         int64
	scopes      map[string]map[string]map[string]storedRow // scope -> table -> id
	sharedTrips map[string]bool
	memberships map[string][]string

	PushErr        error
	PullErr        error
	MembershipsErr error
	PushCalls      int
	PullCalls      int
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{
		scopes:      map[string]map[string]map[string]storedRow{},
		sharedTrips: map[string]bool{},
		memberships: map[string][]string{},
	}
}

func userScope(userID string) string { return "user:" + userID }
func tripScope(tripID string) string { return "trip:" + tripID }

// RegisterSharedTrip routes future rows of the trip into its own scoped
// feed instead of the pusher's flat user feed.
func (f *Feed) RegisterSharedTrip(tripID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sharedTrips[tripID] = true
}

// SetMemberships fixes the shared-trip membership set reported for a user.
func (f *Feed) SetMemberships(userID string, tripIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberships[userID] = tripIDs
}

// SeedUser stores an entity in a user's flat feed, assigning the next
// sequence number. The entity is marshaled as its own wire payload.
func (f *Feed) SeedUser(userID, table, id string, entity any) int64 {
	return f.seed(userScope(userID), table, id, entity)
}

// SeedTrip stores an entity in a shared trip's feed.
func (f *Feed) SeedTrip(tripID, table, id string, entity any) int64 {
	f.RegisterSharedTrip(tripID)
	return f.seed(tripScope(tripID), table, id, entity)
}

func (f *Feed) seed(scope, table, id string, entity any) int64 {
	payload, err := json.Marshal(entity)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store(scope, table, provider.Row{ID: id, Payload: payload})
}

// store must be called with the lock held.
func (f *Feed) store(scope, table string, row provider.Row) int64 {
	f.seq++
	row.Seq = f.seq
	tables, ok := f.scopes[scope]
	if !ok {
		tables = map[string]map[string]storedRow{}
		f.scopes[scope] = tables
	}
	rows, ok := tables[table]
	if !ok {
		rows = map[string]storedRow{}
		tables[table] = rows
	}
	rows[row.ID] = storedRow{Row: row}
	return f.seq
}

// Push implements provider.Changefeed. Application is idempotent per row
// id: a re-pushed row replaces its previous snapshot under a new sequence.
func (f *Feed) Push(_ context.Context, batch provider.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PushCalls++
	if f.PushErr != nil {
		return f.PushErr
	}
	for table, rows := range batch.Tables {
		for _, row := range rows {
			scope := userScope(batch.UserID)
			if tripID := f.routeTrip(table, row); tripID != "" {
				scope = tripScope(tripID)
			}
			f.store(scope, table, row)
		}
	}
	return nil
}

// routeTrip decides whether a pushed row belongs to a shared trip's feed.
// Must be called with the lock held.
func (f *Feed) routeTrip(table string, row provider.Row) string {
	if table == provider.TableTrips {
		if f.sharedTrips[row.ID] {
			return row.ID
		}
		return ""
	}
	var probe struct {
		TripID string `json:"tripId"`
	}
	if err := json.Unmarshal(row.Payload, &probe); err != nil {
		return ""
	}
	if f.sharedTrips[probe.TripID] {
		return probe.TripID
	}
	return ""
}

// Pull implements provider.Changefeed: every row in the requested scope
// with a sequence greater than Since, plus the feed's global latest
// sequence.
func (f *Feed) Pull(_ context.Context, req provider.PullRequest) (*provider.Delta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PullCalls++
	if f.PullErr != nil {
		return nil, f.PullErr
	}

	scope := userScope(req.UserID)
	if req.TripID != "" {
		scope = tripScope(req.TripID)
	}

	delta := &provider.Delta{Tables: map[string][]provider.Row{}, LatestSeq: f.seq}
	for table, rows := range f.scopes[scope] {
		for _, row := range rows {
			if row.Seq > req.Since {
				delta.Tables[table] = append(delta.Tables[table], row.Row)
			}
		}
	}
	return delta, nil
}

// Memberships implements provider.Changefeed.
func (f *Feed) Memberships(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MembershipsErr != nil {
		return nil, f.MembershipsErr
	}
	out := make([]string, len(f.memberships[userID]))
	copy(out, f.memberships[userID])
	return out, nil
}
