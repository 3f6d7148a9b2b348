package reconcile

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Derivation kinds, doubling as the id prefix of the derived row.
const (
	KindCashflow   = "tcash"
	KindShare      = "tshare"
	KindSettlement = "tstl"
)

// Settlement directions relative to the owning user.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// DerivedID is a pure function of (owner key, source id, derivation kind
// and, for settlements, direction). Exactly one derived row exists per such
// tuple, so re-reconciliation after an edit upserts in place instead of
// delete-then-recreate.
func DerivedID(ownerKey, sourceID, kind, direction string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.Join([]string{ownerKey, sourceID, kind, direction}, "|")))
	id := kind + "-" + strconv.FormatUint(h.Sum64(), 36)
	if direction != "" {
		id = kind + "-" + direction + "-" + strconv.FormatUint(h.Sum64(), 36)
	}
	return id
}
