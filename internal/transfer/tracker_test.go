package transfer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress(t *testing.T) {
	tests := []struct {
		name string
		tr   Transfer
		want int
	}{
		{
			name: "unknown total reports zero",
			tr:   Transfer{BytesTransferred: 1024, TotalBytes: 0, Status: StatusDownloading},
			want: 0,
		},
		{
			name: "completed with unknown total reports full",
			tr:   Transfer{BytesTransferred: 1024, TotalBytes: 0, Status: StatusCompleted},
			want: 100,
		},
		{
			name: "floors the percentage",
			tr:   Transfer{BytesTransferred: 199, TotalBytes: 1000, Status: StatusDownloading},
			want: 19,
		},
		{
			name: "clamps above total",
			tr:   Transfer{BytesTransferred: 2000, TotalBytes: 1000, Status: StatusDownloading},
			want: 100,
		},
		{
			name: "done",
			tr:   Transfer{BytesTransferred: 1000, TotalBytes: 1000, Status: StatusCompleted},
			want: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tr.Progress())
		})
	}
}

func TestTracker_AttachSingleFlight(t *testing.T) {
	tracker := NewTracker(time.Hour)

	first, created := tracker.Attach("movie_42", "movie_42.mp4", "http://origin/a.mp4")
	require.True(t, created)
	require.Equal(t, StatusPending, first.Status)

	// A second caller for the same id attaches instead of starting over.
	second, created := tracker.Attach("movie_42", "movie_42.mp4", "http://origin/a.mp4")
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.StartedAt, second.StartedAt)
}

func TestTracker_AttachSupersedesTerminal(t *testing.T) {
	tracker := NewTracker(time.Hour)

	_, created := tracker.Attach("movie_42", "movie_42.mp4", "http://origin/a.mp4")
	require.True(t, created)

	tracker.Update("movie_42", func(tr *Transfer) {
		tr.Status = StatusFailed
		tr.ErrorMessage = "connection reset"
	})

	fresh, created := tracker.Attach("movie_42", "movie_42.mp4", "http://origin/a.mp4")
	require.True(t, created, "a failed transfer must not block a new attempt")
	require.Equal(t, StatusPending, fresh.Status)
	require.Empty(t, fresh.ErrorMessage)
}

func TestTracker_TerminalEntriesAreImmutable(t *testing.T) {
	tracker := NewTracker(time.Hour)

	tracker.Attach("movie_42", "movie_42.mp4", "http://origin/a.mp4")
	tracker.Update("movie_42", func(tr *Transfer) {
		tr.Status = StatusCompleted
		tr.BytesTransferred = 100
		tr.TotalBytes = 100
	})

	// A late progress callback must not resurrect a terminal entry.
	tracker.Update("movie_42", func(tr *Transfer) {
		tr.Status = StatusDownloading
		tr.BytesTransferred = 50
	})

	got, ok := tracker.Get("movie_42")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, int64(100), got.BytesTransferred)
}

func TestTracker_MonotonicProgressUnderConcurrentReads(t *testing.T) {
	tracker := NewTracker(time.Hour)
	tracker.Attach("movie_42", "movie_42.mp4", "http://origin/a.mp4")

	const total = int64(1000)

	var wg sync.WaitGroup

	stop := make(chan struct{})

	// Pollers assert that observed progress never goes backwards.
	for range 4 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			var last int64

			for {
				select {
				case <-stop:
					return
				default:
				}

				got, ok := tracker.Get("movie_42")
				require.True(t, ok)

				if got.BytesTransferred < last {
					t.Errorf("progress went backwards: %d after %d", got.BytesTransferred, last)

					return
				}

				last = got.BytesTransferred
			}
		}()
	}

	for i := int64(1); i <= total; i++ {
		tracker.Update("movie_42", func(tr *Transfer) {
			tr.Status = StatusDownloading
			tr.BytesTransferred = i
			tr.TotalBytes = total
		})
	}

	close(stop)
	wg.Wait()
}

func TestTracker_Evict(t *testing.T) {
	tracker := NewTracker(time.Minute)

	tracker.Attach("done", "done.mp4", "http://origin/a.mp4")
	tracker.Update("done", func(tr *Transfer) { tr.Status = StatusCompleted })

	tracker.Attach("active", "active.mp4", "http://origin/b.mp4")

	// Within the retention window nothing is evicted.
	require.Zero(t, tracker.Evict(time.Now()))

	evicted := tracker.Evict(time.Now().Add(2 * time.Minute))
	require.Equal(t, 1, evicted)

	_, ok := tracker.Get("done")
	assert.False(t, ok)

	// Active transfers survive eviction regardless of age.
	_, ok = tracker.Get("active")
	assert.True(t, ok)
}
