package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"idlecraft/internal/eventbus"
	"idlecraft/internal/storage"
	"idlecraft/internal/task/engine"
	logx "idlecraft/pkg/logx"
)

const (
	flushTaskName = "save.flush"
	backupSlot    = "backup"
	flushTimeout  = 5 * time.Second
)

// SaveNow writes the current state to the configured slot.
func (a *App) SaveNow(ctx context.Context) error {
	return a.writeSlot(ctx, a.cfgm.Get().SaveSlot())
}

func (a *App) writeSlot(ctx context.Context, slot string) error {
	if a.store == nil {
		return storage.ErrDisabled
	}
	st := a.prod.Save()
	if err := a.store.WriteSave(ctx, slot, st); err != nil {
		return err
	}
	a.log.Debug("state saved", logx.String("slot", slot), logx.Uint64("job_seq", st.JobSeq))
	return nil
}

// flush is the save.flush task body.
func (a *App) flush(ctx context.Context) error {
	err := a.SaveNow(ctx)
	if errors.Is(err, storage.ErrDisabled) {
		return engine.NoRetry(err)
	}
	return err
}

func (a *App) backup(ctx context.Context) error {
	if err := a.writeSlot(ctx, backupSlot); err != nil {
		return err
	}
	a.log.Info("backup written", logx.String("slot", backupSlot))
	return nil
}

// onSettled is production's settle hook. It runs outside the production
// lock and only enqueues; the engine collapses bursts into one flush.
func (a *App) onSettled(reason string) {
	if a.store == nil || !a.cfgm.Get().Save.FlushOnFinish {
		return
	}
	err := a.engine.Enqueue(engine.Task{
		Name:    flushTaskName,
		Timeout: flushTimeout,
		Run:     a.flush,
		Opt:     engine.TaskOptions{Overlap: engine.OverlapSkipIfRunning},
	})
	switch {
	case err == nil, errors.Is(err, engine.ErrOverlapSkip):
	case errors.Is(err, engine.ErrDisabled):
		// No executor: save inline but off the caller's goroutine.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			if err := a.SaveNow(ctx); err != nil {
				a.log.Warn("inline flush failed", logx.String("reason", reason), logx.Err(err))
			}
		}()
	default:
		a.log.Warn("flush not queued", logx.String("reason", reason), logx.Err(err))
	}
}

// journaled lists the events worth a journal row; ticks are not.
var journaled = map[string]bool{
	eventbus.ActionFinished:   true,
	eventbus.ActionAborted:    true,
	eventbus.AutoRunStarted:   true,
	eventbus.AutoRunEnded:     true,
	eventbus.AutoRunCancelled: true,
	eventbus.AutoCookOpened:   true,
	eventbus.AutoCookClosed:   true,
	eventbus.TaskFailed:       true,
}

// journalLoop appends lifecycle events to the store until ctx is done.
func (a *App) journalLoop(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if !journaled[e.Type] {
				a.log.Trace("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				continue
			}
			entry := storage.JournalEntry{
				At:      e.Time,
				Session: a.session,
				Slot:    a.cfgm.Get().SaveSlot(),
				Kind:    e.Type,
			}
			if b, err := json.Marshal(e.Data); err == nil {
				entry.Detail = string(b)
			}
			wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := a.store.AppendJournal(wctx, entry)
			cancel()
			if err != nil && ctx.Err() == nil {
				a.log.Warn("journal append failed", logx.String("kind", e.Type), logx.Err(err))
			}
		}
	}
}
