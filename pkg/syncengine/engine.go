// Package syncengine replicates the Local Store against the remote
// changefeed: it pushes locally dirty rows, pulls remote deltas past the
// persisted cursors, applies them remote-wins, and re-reconciles derived
// rows for every trip a pull touched. It is the only component with network
// I/O.
package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strings"

	"github.com/amirasaad/ledgersync/pkg/domain"
	"github.com/amirasaad/ledgersync/pkg/eventbus"
	"github.com/amirasaad/ledgersync/pkg/provider"
	"github.com/amirasaad/ledgersync/pkg/repository"
)

// Mode selects what a sync pass does. Full pushes first and then pulls, so
// the device's own edits are reflected server-side before it re-pulls
// instead of racing to see them as "new" remote changes.
type Mode string

const (
	ModePush Mode = "push"
	ModePull Mode = "pull"
	ModeFull Mode = "full"
)

// Request describes one requested sync pass. AllowPush=false suppresses the
// push half even in full mode.
type Request struct {
	Mode      Mode
	AllowPush bool
}

// Error taxonomy surfaced to the caller; retry and backoff policy belong to
// the external trigger layer.
var (
	ErrTransientNetwork = provider.ErrTransientNetwork
	ErrRemoteRejected   = provider.ErrRemoteRejected
	// ErrLocalStore wraps a failed Local Store transaction; the pass aborts
	// and nothing is marked clean or advanced.
	ErrLocalStore = errors.New("local store failure")
)

// TripReconciler is the derived-row reconciler the engine invokes for every
// trip a pull changed.
type TripReconciler interface {
	ReconcileTrip(ctx context.Context, tripID string) error
}

// Engine orchestrates push and pull passes for one user's device store.
type Engine struct {
	uow        repository.UnitOfWork
	cursors    repository.CursorStore
	remote     provider.Changefeed
	reconciler TripReconciler
	bus        eventbus.EventBus
	userID     string
	logger     *slog.Logger
}

// New creates a sync engine. bus may be nil when nothing listens for
// completion events.
func New(
	uow repository.UnitOfWork,
	cursors repository.CursorStore,
	remote provider.Changefeed,
	reconciler TripReconciler,
	bus eventbus.EventBus,
	userID string,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		uow:        uow,
		cursors:    cursors,
		remote:     remote,
		reconciler: reconciler,
		bus:        bus,
		userID:     userID,
		logger:     logger,
	}
}

// Sync runs one pass. Push failures never mark dirty rows clean; pull
// failures never advance a cursor.
func (e *Engine) Sync(ctx context.Context, req Request) error {
	pushed := false
	if (req.Mode == ModePush || req.Mode == ModeFull) && req.AllowPush {
		did, err := e.push(ctx)
		if err != nil {
			return err
		}
		pushed = did
	}

	pulled := false
	var affected []string
	if req.Mode == ModePull || req.Mode == ModeFull {
		var err error
		pulled, affected, err = e.pull(ctx)
		if err != nil {
			return err
		}
		for _, tripID := range affected {
			if err := e.reconciler.ReconcileTrip(ctx, tripID); err != nil {
				return err
			}
		}
	}

	if e.bus != nil {
		_ = e.bus.Publish(ctx, domain.SyncCompleted{
			UserID: e.userID, Pushed: pushed, Pulled: pulled, TripIDs: affected,
		})
	}
	return nil
}

// push batches every dirty row across owned tables into one outbound call
// and marks them clean only after the remote acknowledged, and only where
// the row's version still matches the batched snapshot: an edit landing
// while the remote call is in flight stays dirty for the next pass.
// Delivery is at-least-once; remote application is id-keyed and idempotent.
func (e *Engine) push(ctx context.Context) (bool, error) {
	batch := provider.Batch{UserID: e.userID, Tables: map[string][]provider.Row{}}
	versions := map[string]map[string]int64{}

	err := e.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		txs, err := uow.Transactions().ListDirty(ctx)
		if err != nil {
			return err
		}
		if err := addRows(batch.Tables, versions, provider.TableTransactions, txs, func(t *domain.Transaction) (string, int64) { return t.ID, t.Sync.Version }); err != nil {
			return err
		}
		trips, err := uow.Trips().DirtyTrips(ctx)
		if err != nil {
			return err
		}
		if err := addRows(batch.Tables, versions, provider.TableTrips, trips, func(t *domain.Trip) (string, int64) { return t.ID, t.Sync.Version }); err != nil {
			return err
		}
		ps, err := uow.Trips().DirtyParticipants(ctx)
		if err != nil {
			return err
		}
		if err := addRows(batch.Tables, versions, provider.TableParticipants, ps, func(p *domain.TripParticipant) (string, int64) { return p.ID, p.Sync.Version }); err != nil {
			return err
		}
		es, err := uow.Trips().DirtyExpenses(ctx)
		if err != nil {
			return err
		}
		if err := addRows(batch.Tables, versions, provider.TableExpenses, es, func(x *domain.TripExpense) (string, int64) { return x.ID, x.Sync.Version }); err != nil {
			return err
		}
		ss, err := uow.Trips().DirtySettlements(ctx)
		if err != nil {
			return err
		}
		return addRows(batch.Tables, versions, provider.TableSettlements, ss, func(s *domain.TripSettlement) (string, int64) { return s.ID, s.Sync.Version })
	})
	if err != nil {
		return false, fmt.Errorf("%w: collecting dirty rows: %v", ErrLocalStore, err)
	}

	if batch.Empty() {
		return false, nil
	}

	if err := e.remote.Push(ctx, batch); err != nil {
		return false, fmt.Errorf("push: %w", err)
	}

	err = e.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		if err := uow.Transactions().MarkClean(ctx, versions[provider.TableTransactions]); err != nil {
			return err
		}
		if err := uow.Trips().MarkTripsClean(ctx, versions[provider.TableTrips]); err != nil {
			return err
		}
		if err := uow.Trips().MarkParticipantsClean(ctx, versions[provider.TableParticipants]); err != nil {
			return err
		}
		if err := uow.Trips().MarkExpensesClean(ctx, versions[provider.TableExpenses]); err != nil {
			return err
		}
		return uow.Trips().MarkSettlementsClean(ctx, versions[provider.TableSettlements])
	})
	if err != nil {
		return false, fmt.Errorf("%w: marking rows clean: %v", ErrLocalStore, err)
	}

	e.logger.Info("pushed dirty rows", "tables", len(batch.Tables))
	return true, nil
}

// pull applies the flat user feed and the per-trip feeds of every shared
// trip currently belonged to, returning the ids of trips whose state
// changed.
func (e *Engine) pull(ctx context.Context) (bool, []string, error) {
	if err := e.selfHealCursor(ctx); err != nil {
		return false, nil, err
	}

	affected := map[string]bool{}
	pulled, err := e.pullScope(ctx, repository.UserCursorKey(e.userID), "", affected)
	if err != nil {
		return false, nil, err
	}

	tripPulled, err := e.pullSharedTrips(ctx, affected)
	if err != nil {
		return false, nil, err
	}

	out := make([]string, 0, len(affected))
	for id := range affected {
		out = append(out, id)
	}
	sort.Strings(out)
	return pulled || tripPulled, out, nil
}

// pullScope pulls one feed (user scope when tripID is empty) and applies it
// in a single transaction. The cursor advances to the server-reported
// latest sequence only after local application succeeded, and never
// regresses.
func (e *Engine) pullScope(ctx context.Context, cursorKey, tripID string, affected map[string]bool) (bool, error) {
	since, err := e.cursors.Get(ctx, cursorKey)
	if err != nil {
		return false, fmt.Errorf("%w: cursor read: %v", ErrLocalStore, err)
	}

	delta, err := e.remote.Pull(ctx, provider.PullRequest{
		UserID: e.userID, TripID: tripID, Since: since,
	})
	if err != nil {
		return false, fmt.Errorf("pull: %w", err)
	}

	changed := false
	err = e.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		applied, err := e.applyDelta(ctx, uow, delta, affected)
		changed = applied
		return err
	})
	if err != nil {
		return false, fmt.Errorf("%w: applying delta: %v", ErrLocalStore, err)
	}

	if delta.LatestSeq > since {
		if err := e.cursors.Set(ctx, cursorKey, delta.LatestSeq); err != nil {
			return false, fmt.Errorf("%w: cursor write: %v", ErrLocalStore, err)
		}
	}
	if tripID != "" && changed {
		affected[tripID] = true
	}
	return changed, nil
}

// applyDelta upserts pulled rows remote-wins, tombstones included, and
// records which trips the delta touched.
func (e *Engine) applyDelta(
	ctx context.Context,
	uow repository.UnitOfWork,
	delta *provider.Delta,
	affected map[string]bool,
) (bool, error) {
	changed := false

	txs, err := decodeRows[domain.Transaction](delta.Tables[provider.TableTransactions])
	if err != nil {
		return false, err
	}
	if len(txs) > 0 {
		changed = true
		if err := uow.Transactions().ApplyRemote(ctx, txs...); err != nil {
			return false, err
		}
	}

	trips, err := decodeRows[domain.Trip](delta.Tables[provider.TableTrips])
	if err != nil {
		return false, err
	}
	if len(trips) > 0 {
		changed = true
		for _, t := range trips {
			affected[t.ID] = true
		}
		if err := uow.Trips().ApplyRemoteTrips(ctx, trips...); err != nil {
			return false, err
		}
	}

	ps, err := decodeRows[domain.TripParticipant](delta.Tables[provider.TableParticipants])
	if err != nil {
		return false, err
	}
	if len(ps) > 0 {
		changed = true
		for _, p := range ps {
			affected[p.TripID] = true
		}
		if err := uow.Trips().ApplyRemoteParticipants(ctx, ps...); err != nil {
			return false, err
		}
	}

	es, err := decodeRows[domain.TripExpense](delta.Tables[provider.TableExpenses])
	if err != nil {
		return false, err
	}
	if len(es) > 0 {
		changed = true
		for _, x := range es {
			affected[x.TripID] = true
		}
		if err := uow.Trips().ApplyRemoteExpenses(ctx, es...); err != nil {
			return false, err
		}
	}

	ss, err := decodeRows[domain.TripSettlement](delta.Tables[provider.TableSettlements])
	if err != nil {
		return false, err
	}
	if len(ss) > 0 {
		changed = true
		for _, s := range ss {
			affected[s.TripID] = true
		}
		if err := uow.Trips().ApplyRemoteSettlements(ctx, ss...); err != nil {
			return false, err
		}
	}
	return changed, nil
}

// pullSharedTrips re-fetches current memberships, syncs exactly the trips
// belonged to with their independent cursors, and prunes cursors of
// departed memberships. A membership change marks every current trip
// affected so its derived rows re-reconcile.
func (e *Engine) pullSharedTrips(ctx context.Context, affected map[string]bool) (bool, error) {
	memberships, err := e.remote.Memberships(ctx, e.userID)
	if err != nil {
		return false, fmt.Errorf("memberships: %w", err)
	}
	sort.Strings(memberships)

	sig := membershipSignature(memberships)
	sigKey := repository.MembershipKey(e.userID)
	lastSig, err := e.cursors.Get(ctx, sigKey)
	if err != nil {
		return false, fmt.Errorf("%w: membership signature read: %v", ErrLocalStore, err)
	}
	membershipChanged := sig != lastSig

	current := map[string]bool{}
	pulled := false
	for _, tripID := range memberships {
		current[tripID] = true
		key := repository.TripCursorKey(e.userID, tripID)
		changed, err := e.pullScope(ctx, key, tripID, affected)
		if err != nil {
			return false, err
		}
		pulled = pulled || changed
		if membershipChanged {
			affected[tripID] = true
		}
	}

	// Departed memberships prune their local cursor state.
	prefix := repository.TripCursorPrefix(e.userID)
	stored, err := e.cursors.List(ctx, prefix)
	if err != nil {
		return false, fmt.Errorf("%w: cursor scan: %v", ErrLocalStore, err)
	}
	for key := range stored {
		tripID := strings.TrimPrefix(key, prefix)
		if !current[tripID] {
			if err := e.cursors.Delete(ctx, key); err != nil {
				return false, fmt.Errorf("%w: cursor prune: %v", ErrLocalStore, err)
			}
			e.logger.Info("pruned cursor for departed trip", "trip_id", tripID)
		}
	}

	if membershipChanged {
		if err := e.cursors.Set(ctx, sigKey, sig); err != nil {
			return false, fmt.Errorf("%w: membership signature write: %v", ErrLocalStore, err)
		}
	}
	return pulled, nil
}

// selfHealCursor detects a cursor pointing past an empty Local Store (a
// reinstalled app with surviving cursor storage) and resets it to force a
// full resync. Not a user-visible error.
func (e *Engine) selfHealCursor(ctx context.Context) error {
	var count int64
	err := e.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		var err error
		count, err = uow.Transactions().Count(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: counting rows: %v", ErrLocalStore, err)
	}
	if count > 0 {
		return nil
	}

	key := repository.UserCursorKey(e.userID)
	cursor, err := e.cursors.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: cursor read: %v", ErrLocalStore, err)
	}
	if cursor == 0 {
		return nil
	}

	e.logger.Warn("local store empty but cursor nonzero, resetting for full resync",
		"cursor", cursor)
	if err := e.cursors.Set(ctx, key, 0); err != nil {
		return fmt.Errorf("%w: cursor reset: %v", ErrLocalStore, err)
	}
	trips, err := e.cursors.List(ctx, repository.TripCursorPrefix(e.userID))
	if err != nil {
		return fmt.Errorf("%w: cursor scan: %v", ErrLocalStore, err)
	}
	for key := range trips {
		if err := e.cursors.Set(ctx, key, 0); err != nil {
			return fmt.Errorf("%w: cursor reset: %v", ErrLocalStore, err)
		}
	}
	return nil
}

// membershipSignature is a cheap order-independent fingerprint of a sorted
// membership set.
func membershipSignature(sortedTripIDs []string) int64 {
	if len(sortedTripIDs) == 0 {
		return 0
	}
	h := fnv.New64a()
	for _, id := range sortedTripIDs {
		_, _ = h.Write([]byte(id))
		_, _ = h.Write([]byte{0})
	}
	sig := int64(h.Sum64())
	if sig == 0 {
		sig = 1
	}
	return sig
}

// addRows marshals entities into a push batch table and records each row's
// version at batching time for the post-ack mark-clean guard.
func addRows[T any](
	tables map[string][]provider.Row,
	versions map[string]map[string]int64,
	table string,
	entities []*T,
	key func(*T) (string, int64),
) error {
	for _, entity := range entities {
		payload, err := json.Marshal(entity)
		if err != nil {
			return err
		}
		id, version := key(entity)
		tables[table] = append(tables[table], provider.Row{ID: id, Payload: payload})
		if versions[table] == nil {
			versions[table] = map[string]int64{}
		}
		versions[table][id] = version
	}
	return nil
}

// decodeRows unmarshals one pull table into entities.
func decodeRows[T any](rows []provider.Row) ([]*T, error) {
	out := make([]*T, 0, len(rows))
	for _, row := range rows {
		var entity T
		if err := json.Unmarshal(row.Payload, &entity); err != nil {
			return nil, fmt.Errorf("decoding row %s: %w", row.ID, err)
		}
		out = append(out, &entity)
	}
	return out, nil
}
