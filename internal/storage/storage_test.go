package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"idlecraft/internal/catalog"
	"idlecraft/internal/game"
	logx "idlecraft/pkg/logx"
)

func sampleState() *game.State {
	st := game.New()
	st.Inventory.Add("log_pine", 12)
	st.XP[catalog.Forestry] = 420
	st.Equipment.Tools[catalog.Forestry] = "axe_bronze"
	st.Equipment.Tome = &game.TomeSlot{Item: "tome_pine", Qty: 2}
	st.Action = &game.ActionSlot{Type: catalog.Craft, Key: "plank_pine", JobID: 9}
	st.JobSeq = 9
	return st
}

func driverPaths(t *testing.T) map[string]string {
	dir := t.TempDir()
	return map[string]string{
		"file":   filepath.Join(dir, "file", "idlecraft.db"),
		"sqlite": filepath.Join(dir, "sqlite", "idlecraft.sqlite"),
		"badger": filepath.Join(dir, "badger"),
	}
}

func TestStoresRoundTripSaves(t *testing.T) {
	t.Parallel()
	for driver, path := range driverPaths(t) {
		driver, path := driver, path
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s, err := Open(Config{Driver: driver, Path: path, BusyTimeout: time.Second}, "sess-1", logx.Nop())
			require.NoError(t, err)
			require.NotNil(t, s)
			defer s.Close()

			_, ok, err := s.LoadSave(ctx, "main")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, s.WriteSave(ctx, "main", sampleState()))
			got, ok, err := s.LoadSave(ctx, "main")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, 12, got.Inventory.QuantityOf("log_pine"))
			require.Equal(t, uint64(9), got.JobSeq)
			require.Equal(t, "axe_bronze", got.Equipment.Tools[catalog.Forestry])
			require.Equal(t, 2, got.Equipment.Tome.Qty)

			// Overwrite keeps one record per slot.
			next := sampleState()
			next.JobSeq = 10
			require.NoError(t, s.WriteSave(ctx, "main", next))
			got, _, err = s.LoadSave(ctx, "main")
			require.NoError(t, err)
			require.Equal(t, uint64(10), got.JobSeq)

			require.NoError(t, s.AppendJournal(ctx, JournalEntry{Slot: "main", Kind: "action.finished", Detail: `{"id":"plank_pine"}`}))
		})
	}
}

func TestSlotValidation(t *testing.T) {
	t.Parallel()
	s, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "x.db")}, "", logx.Nop())
	require.NoError(t, err)
	defer s.Close()
	require.Error(t, s.WriteSave(context.Background(), "../evil", game.New()))
	require.Error(t, s.WriteSave(context.Background(), " ", game.New()))
}

func TestOpenDisabledAndUnknown(t *testing.T) {
	t.Parallel()
	s, err := Open(Config{Driver: "none"}, "", logx.Nop())
	require.NoError(t, err)
	require.Nil(t, s)

	_, err = Open(Config{Driver: "postgres", Path: "x"}, "", logx.Nop())
	require.ErrorContains(t, err, "unknown storage driver")
}

func TestFileJournalIsJSONLines(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "game.db")}, "sess-7", logx.Nop())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.AppendJournal(ctx, JournalEntry{Slot: "main", Kind: "autorun.ended"}))
	require.NoError(t, s.AppendJournal(ctx, JournalEntry{Slot: "main", Kind: "save"}))
	require.NoError(t, s.Close())

	f, err := os.Open(filepath.Join(dir, "game.journal.jsonl"))
	require.NoError(t, err)
	defer f.Close()
	var kinds []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e JournalEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		require.Equal(t, "sess-7", e.Session)
		kinds = append(kinds, e.Kind)
	}
	require.Equal(t, []string{"autorun.ended", "save"}, kinds)
}

func TestBadgerJournalOrdered(t *testing.T) {
	t.Parallel()
	raw, err := openBadger(Config{Path: t.TempDir()}, "sess-b", logx.Nop())
	require.NoError(t, err)
	s := raw.(*badgerStore)
	defer s.Close()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, s.AppendJournal(ctx, JournalEntry{At: base.Add(2 * time.Second), Slot: "main", Kind: "b"}))
	require.NoError(t, s.AppendJournal(ctx, JournalEntry{At: base, Slot: "main", Kind: "a"}))

	entries, err := s.journal()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "a", entries[0].Kind)
	require.Equal(t, "sess-b", entries[1].Session)
}

func TestDecodeRejectsNewerVersion(t *testing.T) {
	t.Parallel()
	_, err := decodeSave([]byte(`{"version": 99, "state": {}}`))
	require.ErrorContains(t, err, "newer")
}

func TestFileStoreLogsWritesAndBadSaves(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "idlecraft.db")
	s, err := Open(Config{Driver: "file", Path: path}, "sess-1", logx.NewWriter(&buf, "debug"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteSave(ctx, "main", sampleState()))
	require.Contains(t, buf.String(), `"message":"save written"`)
	require.Contains(t, buf.String(), `"driver":"file"`)

	fs := s.(*fileStore)
	require.NoError(t, os.WriteFile(fs.savePath("main"), []byte("{not json"), 0o600))
	_, ok, err := s.LoadSave(ctx, "main")
	require.Error(t, err)
	require.False(t, ok)
	require.Contains(t, buf.String(), `"message":"save decode failed"`)
}
