package transfer

import (
	"sync"
	"time"
)

// Tracker is the process-wide table of transfers. It is a liveness cache,
// not a durable record: entries do not survive restarts and terminal entries
// are evicted after the retention window. Consumers must treat a missing
// entry as "not started or forgotten", never as "does not exist upstream".
//
// Concurrency contract: many readers through Get/List, but only the fetcher
// that created an entry mutates it (through Update). Reads return copies so
// pollers never observe a half-applied mutation.
type Tracker struct {
	mu        sync.RWMutex
	transfers map[string]*Transfer
	retention time.Duration
}

// NewTracker creates a tracker that keeps terminal entries around for
// retention before Evict may drop them.
func NewTracker(retention time.Duration) *Tracker {
	return &Tracker{
		transfers: make(map[string]*Transfer),
		retention: retention,
	}
}

// Get returns a snapshot of the transfer with the given id.
func (tr *Tracker) Get(id string) (Transfer, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	t, ok := tr.transfers[id]
	if !ok {
		return Transfer{}, false
	}

	return *t, true
}

// List returns snapshots of all tracked transfers.
func (tr *Tracker) List() []Transfer {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	out := make([]Transfer, 0, len(tr.transfers))
	for _, t := range tr.transfers {
		out = append(out, *t)
	}

	return out
}

// Attach implements single-flight admission for a transfer id. If an active
// (non-terminal) transfer already exists the caller attaches to it and
// created is false. A terminal entry is superseded by a fresh pending record.
// The check and the registration happen under one lock, so two concurrent
// requests for the same id can never both own a download.
func (tr *Tracker) Attach(id, fileName, sourceURL string) (t Transfer, created bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if existing, ok := tr.transfers[id]; ok && !existing.Status.Terminal() {
		return *existing, false
	}

	now := time.Now()
	fresh := &Transfer{
		ID:        id,
		FileName:  fileName,
		SourceURL: sourceURL,
		Status:    StatusPending,
		StartedAt: now,
		UpdatedAt: now,
	}
	tr.transfers[id] = fresh

	return *fresh, true
}

// RecordCompleted registers a terminal completed entry, used when the
// artifact already exists and no fetch is needed.
func (tr *Tracker) RecordCompleted(id, fileName, sourceURL string, size int64) Transfer {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	now := time.Now()
	t := &Transfer{
		ID:               id,
		FileName:         fileName,
		SourceURL:        sourceURL,
		Status:           StatusCompleted,
		BytesTransferred: size,
		TotalBytes:       size,
		StartedAt:        now,
		UpdatedAt:        now,
	}
	tr.transfers[id] = t

	return *t
}

// Update applies fn to the transfer with the given id. Mutations of terminal
// entries are silently dropped, which keeps completed/failed records
// immutable even if a late progress callback fires.
func (tr *Tracker) Update(id string, fn func(*Transfer)) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	t, ok := tr.transfers[id]
	if !ok || t.Status.Terminal() {
		return
	}

	fn(t)
	t.UpdatedAt = time.Now()
}

// Evict drops terminal entries that have not been touched within the
// retention window and returns how many were removed.
func (tr *Tracker) Evict(now time.Time) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	evicted := 0

	for id, t := range tr.transfers {
		if t.Status.Terminal() && now.Sub(t.UpdatedAt) > tr.retention {
			delete(tr.transfers, id)
			evicted++
		}
	}

	return evicted
}
