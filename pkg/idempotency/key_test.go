package idempotency_test

import (
	"strings"
	"testing"
	"time"

	"github.com/amirasaad/ledgersync/pkg/idempotency"
	"github.com/stretchr/testify/assert"
)

func TestKey_SameInputsSameBucket(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC)
	fields := map[string]any{
		"tripId": "trip-1",
		"from":   "alice",
		"to":     "bob",
		"amount": int64(2500),
	}

	k1 := idempotency.Key("settlement", fields, at)
	k2 := idempotency.Key("settlement", fields, at.Add(2*time.Second))

	assert.Equal(t, k1, k2, "retry within the same bucket must collapse")
	assert.True(t, strings.HasPrefix(k1, "settlement-"))
}

func TestKey_FieldOrderIndependent(t *testing.T) {
	at := time.Now()
	k1 := idempotency.Key("transfer", map[string]any{
		"from": "acc-1", "to": "acc-2", "amount": int64(100),
	}, at)
	k2 := idempotency.Key("transfer", map[string]any{
		"amount": int64(100), "to": "acc-2", "from": "acc-1",
	}, at)
	assert.Equal(t, k1, k2)
}

func TestKey_DifferentFieldDifferentKey(t *testing.T) {
	at := time.Now()
	base := map[string]any{"tripId": "trip-1", "amount": int64(2500)}
	other := map[string]any{"tripId": "trip-1", "amount": int64(2501)}

	assert.NotEqual(t,
		idempotency.Key("settlement", base, at),
		idempotency.Key("settlement", other, at),
	)
}

func TestKey_DifferentKindDifferentKey(t *testing.T) {
	at := time.Now()
	fields := map[string]any{"id": "x"}
	assert.NotEqual(t,
		idempotency.Key("transfer", fields, at),
		idempotency.Key("adjustment", fields, at),
	)
}

func TestKey_BucketBoundary(t *testing.T) {
	fields := map[string]any{"tripId": "trip-1"}
	// Unix 100 and 104 share bucket 20; 105 starts bucket 21.
	inBucket := idempotency.Key("settlement", fields, time.Unix(100, 0))
	sameBucket := idempotency.Key("settlement", fields, time.Unix(104, 0))
	nextBucket := idempotency.Key("settlement", fields, time.Unix(105, 0))

	assert.Equal(t, inBucket, sameBucket)
	assert.NotEqual(t, inBucket, nextBucket)
}

func TestKey_NestedFields(t *testing.T) {
	at := time.Unix(1000, 0)
	k1 := idempotency.Key("expense", map[string]any{
		"split": map[string]any{"a": 1, "b": 2},
		"ids":   []string{"p1", "p2"},
	}, at)
	k2 := idempotency.Key("expense", map[string]any{
		"ids":   []string{"p1", "p2"},
		"split": map[string]any{"b": 2, "a": 1},
	}, at)
	k3 := idempotency.Key("expense", map[string]any{
		"ids":   []string{"p2", "p1"}, // arrays keep position
		"split": map[string]any{"a": 1, "b": 2},
	}, at)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}
