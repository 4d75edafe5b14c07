package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"idlecraft/internal/game"
	logx "idlecraft/pkg/logx"
)

// badgerStore keeps saves and the journal in one Badger directory.
//
// Key schema:
//   - save/<slot>
//   - journal/<unix-nano, zero padded>/<uuid>
type badgerStore struct {
	db      *badger.DB
	log     logx.Logger
	session string
}

func openBadger(cfg Config, session string, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("badger path is required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &badgerStore{db: db, log: log, session: session}, nil
}

func saveKey(slot string) []byte { return []byte("save/" + slot) }

func journalKey(at time.Time) []byte {
	return []byte(fmt.Sprintf("journal/%020d/%s", at.UnixNano(), uuid.NewString()))
}

func (s *badgerStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *badgerStore) LoadSave(ctx context.Context, slot string) (*game.State, bool, error) {
	_ = ctx
	slot, err := validSlot(slot)
	if err != nil {
		return nil, false, err
	}
	var st *game.State
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(saveKey(slot))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var derr error
			st, derr = decodeSave(val)
			return derr
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		s.log.Warn("save load failed", logx.String("slot", slot), logx.Err(err))
		return nil, false, err
	}
	return st, true, nil
}

func (s *badgerStore) WriteSave(ctx context.Context, slot string, st *game.State) error {
	_ = ctx
	slot, err := validSlot(slot)
	if err != nil {
		return err
	}
	b, err := encodeSave(st, s.session)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(saveKey(slot), b)
	}); err != nil {
		s.log.Warn("save write failed", logx.String("slot", slot), logx.Err(err))
		return err
	}
	s.log.Debug("save written", logx.String("slot", slot), logx.Int("bytes", len(b)))
	return nil
}

func (s *badgerStore) AppendJournal(ctx context.Context, e JournalEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.Session == "" {
		e.Session = s.session
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(journalKey(e.At), b)
	})
}

// journal lists entries in time order. Used by tests and diagnostics.
func (s *badgerStore) journal() ([]JournalEntry, error) {
	var out []JournalEntry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("journal/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var e JournalEntry
				if err := json.Unmarshal(val, &e); err != nil {
					return err
				}
				out = append(out, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}
