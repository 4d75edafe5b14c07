package storage

import (
	"context"
	"errors"
	"strings"

	"idlecraft/internal/game"
	logx "idlecraft/pkg/logx"
)

// Store is the persistence API used by the app.
type Store interface {
	LoadSave(ctx context.Context, slot string) (*game.State, bool, error)
	WriteSave(ctx context.Context, slot string, st *game.State) error
	AppendJournal(ctx context.Context, e JournalEntry) error
	Close() error
}

// Open initializes the configured store. session is stamped on saves.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, session string, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, session, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, session, log)
	case "badger":
		return openBadger(cfg, session, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

func validSlot(slot string) (string, error) {
	slot = strings.TrimSpace(slot)
	if slot == "" {
		return "", errors.New("save slot required")
	}
	if strings.ContainsAny(slot, `/\.`) {
		return "", errors.New("save slot must not contain path characters")
	}
	return slot, nil
}
