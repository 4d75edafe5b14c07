// Package storage persists save slots and the lifecycle journal.
//
// It supports:
//   - Save slots: one JSON document per slot (the full game.State)
//   - Journal appends: finished actions, ended runs, flushes
//
// Loading a save never resumes in-flight actions or runs; callers restore
// through production.Service which drops them.
package storage
