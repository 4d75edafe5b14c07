package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"idlecraft/internal/game"
	logx "idlecraft/pkg/logx"
)

// fileStore is the file backend.
//
// Files:
//   - <prefix>.<slot>.save.json (atomic snapshot per slot)
//   - <prefix>.journal.jsonl    (append-only JSON Lines)
type fileStore struct {
	log     logx.Logger
	session string
	prefix  string

	mu sync.Mutex

	journalFile *os.File
}

func openFile(cfg Config, session string, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	jf, err := os.OpenFile(prefix+".journal.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, session: session, prefix: prefix, journalFile: jf}, nil
}

func (s *fileStore) savePath(slot string) string {
	return s.prefix + "." + slot + ".save.json"
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return nil
	}
	err := s.journalFile.Close()
	s.journalFile = nil
	return err
}

func (s *fileStore) LoadSave(ctx context.Context, slot string) (*game.State, bool, error) {
	_ = ctx
	slot, err := validSlot(slot)
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.savePath(slot))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	st, err := decodeSave(b)
	if err != nil {
		s.log.Warn("save decode failed", logx.String("slot", slot), logx.Err(err))
		return nil, false, err
	}
	return st, true, nil
}

// WriteSave writes to a temp file and renames it over the slot file.
func (s *fileStore) WriteSave(ctx context.Context, slot string, st *game.State) error {
	_ = ctx
	slot, err := validSlot(slot)
	if err != nil {
		return err
	}
	b, err := encodeSave(st, s.session)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.savePath(slot)
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		s.log.Warn("save rename failed", logx.String("slot", slot), logx.Err(err))
		_ = os.Remove(tmp)
		return err
	}
	s.log.Debug("save written", logx.String("slot", slot), logx.Int("bytes", len(b)))
	return nil
}

func (s *fileStore) AppendJournal(ctx context.Context, e JournalEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.Session == "" {
		e.Session = s.session
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return errors.New("journal file closed")
	}
	if err := json.NewEncoder(s.journalFile).Encode(e); err != nil {
		s.log.Warn("journal append failed", logx.String("kind", e.Kind), logx.Err(err))
		return err
	}
	return nil
}
