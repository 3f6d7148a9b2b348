// Package idempotency derives deterministic ids for user-initiated,
// ledger-affecting actions that might be retried or double-submitted:
// settlements, transfers, adjustments, shared-trip expenses. Two submissions
// with the same kind and business fields inside the same time bucket collapse
// into one id, so the second write lands on the first row instead of
// duplicating it.
package idempotency

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BucketSeconds is the width of the deduplication window. Retries within the
// same bucket produce the same key; a timestamp crossing a bucket boundary
// produces a new one.
const BucketSeconds = 5

// Key derives a deterministic id from a kind discriminator, a set of
// business-identifying fields and an event timestamp. Identical
// (kind, fields, bucket) always yields the identical id.
//
// Omitting a semantically distinguishing field collapses unrelated events
// into one id; choosing the field set correctly is the caller's
// responsibility.
func Key(kind string, fields map[string]any, at time.Time) string {
	var b strings.Builder
	b.WriteString(kind)
	b.WriteByte('|')
	writeCanonical(&b, fields)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(at.Unix()/BucketSeconds, 10))

	h := fnv.New64a()
	_, _ = h.Write([]byte(b.String()))
	return kind + "-" + strconv.FormatUint(h.Sum64(), 36)
}

// writeCanonical renders a value into an order-independent encoding: map
// keys are visited in sorted order recursively, slices keep their position.
func writeCanonical(b *strings.Builder, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte(':')
			writeCanonical(b, val[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	case []string:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(item)
		}
		b.WriteByte(']')
	case string:
		b.WriteString(val)
	case int:
		b.WriteString(strconv.Itoa(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case bool:
		b.WriteString(strconv.FormatBool(val))
	case nil:
		b.WriteString("null")
	default:
		fmt.Fprintf(b, "%v", val)
	}
}
