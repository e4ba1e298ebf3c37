package core

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// ItemID identifies a context item. IDs sort by creation time.
type ItemID string

// SnapshotID identifies a persisted session snapshot. IDs sort by creation time.
type SnapshotID string

// NewItemID returns a fresh context item ID stamped with t.
func NewItemID(t time.Time) ItemID {
	return ItemID("ctx_" + newULID(t))
}

// NewSnapshotID returns a fresh snapshot ID stamped with t.
func NewSnapshotID(t time.Time) SnapshotID {
	return SnapshotID("snap_" + newULID(t))
}

// SnapshotTime recovers the creation time encoded in a snapshot ID.
func SnapshotTime(id SnapshotID) (time.Time, bool) {
	raw := string(id)
	if len(raw) <= len("snap_") || raw[:len("snap_")] != "snap_" {
		return time.Time{}, false
	}

	parsed, err := ulid.ParseStrict(raw[len("snap_"):])
	if err != nil {
		return time.Time{}, false
	}

	return ulid.Time(parsed.Time()).UTC(), true
}

func newULID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}
