package status

import (
	"sync"
	"time"
)

// DatabaseError is the last database failure observed at runtime.
type DatabaseError struct {
	Code int
	At   time.Time
}

// Tracker records the last database error code.
type Tracker interface {
	LastDatabaseError() DatabaseError
	RecordDatabaseError(code int, at time.Time)
	ClearDatabaseError()
}

// MemoryTracker keeps the last error in-memory and guards access with a RWMutex.
type MemoryTracker struct {
	mu   sync.RWMutex
	last DatabaseError
}

// NewMemoryTracker seeds the tracker with the code declared in the settings.
// A zero code means no error has been recorded.
func NewMemoryTracker(declaredCode int) *MemoryTracker {
	return &MemoryTracker{last: DatabaseError{Code: declaredCode}}
}

// LastDatabaseError returns the most recent error. Code is zero when the last
// probe succeeded or nothing was ever recorded.
func (t *MemoryTracker) LastDatabaseError() DatabaseError {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.last
}

// RecordDatabaseError stores code as the latest failure. A zero code is ignored.
func (t *MemoryTracker) RecordDatabaseError(code int, at time.Time) {
	if code == 0 {
		return
	}

	t.mu.Lock()
	t.last = DatabaseError{Code: code, At: at}
	t.mu.Unlock()
}

// ClearDatabaseError marks the database healthy again.
func (t *MemoryTracker) ClearDatabaseError() {
	t.mu.Lock()
	t.last = DatabaseError{}
	t.mu.Unlock()
}
