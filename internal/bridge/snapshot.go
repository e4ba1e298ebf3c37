// Package bridge persists and restores the combined state of the context
// store, the chat transcript and the remember queue.
package bridge

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erg0nix/recall/internal/contextstore"
	"github.com/erg0nix/recall/internal/conversation"
	"github.com/erg0nix/recall/internal/core"
	"github.com/erg0nix/recall/internal/remember"
)

// FormatVersion is written into every snapshot.
const FormatVersion = 1

// Snapshot is a full copy of the in-memory state at SnapshotAt.
type Snapshot struct {
	ID           core.SnapshotID     `json:"id"`
	Version      int                 `json:"version"`
	SnapshotAt   time.Time           `json:"snapshot_at"`
	ContextItems []contextstore.Item `json:"context_items"`
	Chat         conversation.State  `json:"chat_state"`
	Queue        remember.State      `json:"instruction_queue"`
}

// envelope guards the payload with a checksum so truncated or edited files
// are detected before they are applied.
type envelope struct {
	Checksum string          `json:"checksum"`
	Payload  json.RawMessage `json:"payload"`
}

func encode(s Snapshot) ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	sum := sha256.Sum256(payload)
	return json.Marshal(envelope{Checksum: hex.EncodeToString(sum[:]), Payload: payload})
}

func decode(data []byte) (Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", core.ErrStorageCorruption, err)
	}

	sum := sha256.Sum256(env.Payload)
	if hex.EncodeToString(sum[:]) != env.Checksum {
		return Snapshot{}, fmt.Errorf("%w: checksum mismatch", core.ErrStorageCorruption)
	}

	var s Snapshot
	if err := json.Unmarshal(env.Payload, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", core.ErrStorageCorruption, err)
	}
	if s.Version != FormatVersion {
		return Snapshot{}, fmt.Errorf("%w: unsupported snapshot version %d", core.ErrStorageCorruption, s.Version)
	}

	return s, nil
}
