package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"idlecraft/internal/game"
	logx "idlecraft/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// journalKeep bounds the journal table; older rows are pruned.
const journalKeep = 10000

type sqliteStore struct {
	db      *sql.DB
	log     logx.Logger
	session string

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, session string, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, session: session, pruneEvery: 500}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadSave(ctx context.Context, slot string) (*game.State, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, ErrDisabled
	}
	slot, err := validSlot(slot)
	if err != nil {
		return nil, false, err
	}
	var data []byte
	err = s.db.QueryRowContext(ctx, `SELECT data FROM saves WHERE slot = ?`, slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	st, err := decodeSave(data)
	if err != nil {
		return nil, false, err
	}
	return st, true, nil
}

func (s *sqliteStore) WriteSave(ctx context.Context, slot string, st *game.State) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	slot, err := validSlot(slot)
	if err != nil {
		return err
	}
	b, err := encodeSave(st, s.session)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO saves(slot, saved_at, session, job_seq, data) VALUES(?,?,?,?,?)
		 ON CONFLICT(slot) DO UPDATE SET saved_at=excluded.saved_at, session=excluded.session,
		   job_seq=excluded.job_seq, data=excluded.data`,
		slot, time.Now().UTC().Format(time.RFC3339Nano), nullStr(s.session), int64(st.JobSeq), b,
	)
	return err
}

func (s *sqliteStore) AppendJournal(ctx context.Context, e JournalEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.Session == "" {
		e.Session = s.session
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journal(at, session, slot, kind, detail) VALUES(?,?,?,?,?)`,
		e.At.UTC().Format(time.RFC3339Nano), nullStr(e.Session), e.Slot, e.Kind, nullStr(e.Detail),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		if perr := s.pruneJournal(pctx); perr != nil {
			s.log.Debug("journal prune failed", logx.Err(perr))
		}
		cancel()
	}
	return err
}

func (s *sqliteStore) pruneJournal(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM journal WHERE id <= (SELECT MAX(id) FROM journal) - ?`, journalKeep)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
