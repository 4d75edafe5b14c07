// Package scheduler turns schedule strings into task engine triggers.
//
// It owns no execution: each trigger enqueues an engine.Task, so overlap
// gating, retries, and timeouts live in the engine. Autosave and the daily
// backup save are registered here by the app.
package scheduler
