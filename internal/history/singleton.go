package history

import (
	"log/slog"
	"sync"
)

// Process-wide store instance, lazily constructed on first access.
// sync.Once guarantees construct-once semantics under concurrent first
// access from simultaneous requests: a single winner builds the store, all
// others receive the same handle.
var (
	instanceOnce sync.Once
	instance     *Store
)

// Instance returns the process-wide Store, constructing it on first call.
// Subsequent calls return the existing instance and ignore their arguments.
//
// Components should still take the *Store by injection (see chat.Config);
// Instance exists so all request paths share one handle and one pool of
// underlying connections.
func Instance(db DB, maxLines int, logger *slog.Logger) *Store {
	instanceOnce.Do(func() {
		instance = New(NewQuerier(db), maxLines, logger)
	})
	return instance
}

// ResetInstanceForTesting resets the singleton so tests can construct it
// with different configurations. Not safe for concurrent use.
func ResetInstanceForTesting() {
	instanceOnce = sync.Once{}
	instance = nil
}
