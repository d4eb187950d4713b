package transfer

import "time"

// Status is the lifecycle state of a transfer. Terminal states are never
// mutated again once set.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Transfer is the record of an in-progress or finished fetch-and-store
// operation. It is owned by the fetcher that started it; everyone else reads
// snapshots through the Tracker.
type Transfer struct {
	ID               string
	FileName         string
	SourceURL        string
	Status           Status
	BytesTransferred int64
	TotalBytes       int64
	ErrorMessage     string
	StartedAt        time.Time
	UpdatedAt        time.Time
}

// Progress returns the completed percentage, floored and clamped to [0, 100].
// Unknown total size reports 0 until the origin response headers arrive.
func (t *Transfer) Progress() int {
	if t.TotalBytes <= 0 {
		if t.Status == StatusCompleted {
			return 100
		}

		return 0
	}

	p := int(t.BytesTransferred * 100 / t.TotalBytes)
	if p < 0 {
		return 0
	}

	if p > 100 {
		return 100
	}

	return p
}
