package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"idlecraft/internal/game"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON snapshot per save slot + JSON Lines journal
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//   - "badger": Badger key/value directory
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// JournalEntry records one lifecycle event worth keeping (finishes, run
// ends, saves). Keep it compact and schema-stable.
type JournalEntry struct {
	At      time.Time `json:"at"`
	Session string    `json:"session"`
	Slot    string    `json:"slot"`
	Kind    string    `json:"kind"`
	Detail  string    `json:"detail,omitempty"`
}

// saveVersion is bumped on incompatible State layout changes.
const saveVersion = 1

// envelope wraps a saved state with its metadata. Every driver stores the
// same JSON document.
type envelope struct {
	Version int         `json:"version"`
	SavedAt time.Time   `json:"saved_at"`
	Session string      `json:"session,omitempty"`
	State   *game.State `json:"state"`
}

func encodeSave(st *game.State, session string) ([]byte, error) {
	if st == nil {
		return nil, errors.New("nil state")
	}
	return json.Marshal(envelope{Version: saveVersion, SavedAt: time.Now().UTC(), Session: session, State: st})
}

func decodeSave(b []byte) (*game.State, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode save: %w", err)
	}
	if env.Version > saveVersion {
		return nil, fmt.Errorf("save version %d is newer than supported %d", env.Version, saveVersion)
	}
	if env.State == nil {
		return nil, errors.New("decode save: missing state")
	}
	env.State.Normalize()
	return env.State, nil
}
