package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirasaad/ledgersync/pkg/domain"
	"github.com/amirasaad/ledgersync/pkg/eventbus"
	"github.com/amirasaad/ledgersync/pkg/service"
	"github.com/amirasaad/ledgersync/pkg/syncengine"
	"github.com/amirasaad/ledgersync/pkg/testutils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRequester struct {
	requests []syncengine.Request
	err      error
}

func (f *fakeRequester) RequestSync(_ context.Context, req syncengine.Request) error {
	f.requests = append(f.requests, req)
	return f.err
}

type apiFixture struct {
	app       *fiber.App
	store     *testutils.MemoryStore
	requester *fakeRequester
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := testutils.NewMemoryStore()
	bus := eventbus.NewMemory()
	requester := &fakeRequester{}
	app := NewApp(Services{
		Ledger: service.NewLedgerService(store, bus, nil, "user-1", nil),
		Trips:  service.NewTripService(store, bus, nil, "user-1", nil),
		Sync:   requester,
	})
	return &apiFixture{app: app, store: store, requester: requester}
}

func (f *apiFixture) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeData[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Data
}

func (f *apiFixture) seedTrip(t *testing.T) string {
	t.Helper()
	now := time.Unix(1_699_000_000, 0)
	f.store.Seed(
		&domain.Trip{ID: "trip-1", UserID: "user-1", Name: "Lisbon", Sync: domain.NewSyncMeta(now)},
		&domain.TripParticipant{
			ID: "p-me", TripID: "trip-1", Name: "Me",
			CurrentUser: true, Sync: domain.NewSyncMeta(now),
		},
		&domain.TripParticipant{
			ID: "p-ana", TripID: "trip-1", Name: "Ana", Sync: domain.NewSyncMeta(now),
		},
	)
	return "trip-1"
}

func TestHealthRoute(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.request(t, fiber.MethodGet, "/", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCreateAndListTransactions(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, fiber.MethodPost, "/transactions", fiber.Map{
		"amount":      4200,
		"type":        "expense",
		"description": "groceries",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = f.request(t, fiber.MethodGet, "/transactions", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	rows := decodeData[[]map[string]any](t, resp)
	require.Len(t, rows, 1)
	assert.Equal(t, "groceries", rows[0]["description"])
}

func TestCreateTransaction_ValidationFails(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.request(t, fiber.MethodPost, "/transactions", fiber.Map{
		"amount": -5,
		"type":   "expense",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestExpenseFlowThroughBalances(t *testing.T) {
	f := newAPIFixture(t)
	tripID := f.seedTrip(t)

	resp := f.request(t, fiber.MethodPost, "/trips/"+tripID+"/expenses", fiber.Map{
		"amount":   9000,
		"paidById": "p-me",
		"split":    fiber.Map{"kind": "equal"},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = f.request(t, fiber.MethodGet, "/trips/"+tripID+"/balances", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	balances := decodeData[[]map[string]any](t, resp)
	require.Len(t, balances, 2)
	assert.Equal(t, float64(-4500), balances[0]["net"]) // p-ana
	assert.Equal(t, float64(4500), balances[1]["net"])  // p-me

	resp = f.request(t, fiber.MethodGet, "/trips/"+tripID+"/settle-plan", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	plan := decodeData[[]map[string]any](t, resp)
	require.Len(t, plan, 1)
	assert.Equal(t, "p-ana", plan[0]["fromId"])
	assert.Equal(t, "p-me", plan[0]["toId"])
	assert.Equal(t, float64(4500), plan[0]["amount"])
}

func TestBalances_UnknownTripIs404(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.request(t, fiber.MethodGet, "/trips/nope/balances", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestTriggerSync(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, fiber.MethodPost, "/sync", fiber.Map{"mode": "pull"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, f.requester.requests, 1)
	assert.Equal(t, syncengine.ModePull, f.requester.requests[0].Mode)
	assert.True(t, f.requester.requests[0].AllowPush)
}

func TestTriggerSync_TransientFailureIs503(t *testing.T) {
	f := newAPIFixture(t)
	f.requester.err = syncengine.ErrTransientNetwork

	resp := f.request(t, fiber.MethodPost, "/sync", fiber.Map{})
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
