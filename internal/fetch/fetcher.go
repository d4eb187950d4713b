package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/streamvault/streamvault/internal/fetch/progress"
	"github.com/streamvault/streamvault/internal/logctx"
	"github.com/streamvault/streamvault/internal/storage"
	"github.com/streamvault/streamvault/internal/store"
	"github.com/streamvault/streamvault/internal/telemetry"
	"github.com/streamvault/streamvault/internal/transfer"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

// progressLogInterval throttles progress log lines, not tracker updates.
const progressLogInterval = 10 * 1024 * 1024 // 10MB

// Config tunes retry, backoff and parallelism for the fetcher.
type Config struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxParallel int
}

// Request identifies one artifact to fetch: the transfer id, the artifact
// file name in the store, and the origin to pull bytes from.
type Request struct {
	ID        string
	FileName  string
	SourceURL string
}

// Fetcher pulls media payloads from origin URLs into the local store with
// bounded retries and exponential backoff, reporting live progress through
// the transfer tracker. Admission is single-flight per transfer id: the
// tracker guarantees at most one running download per id.
type Fetcher struct {
	store   *store.Store
	tracker *transfer.Tracker
	repo    storage.ArtifactWriteRepository
	tel     *telemetry.Telemetry
	hc      *http.Client

	maxRetries  int
	baseBackoff time.Duration
	maxParallel int
}

// NewFetcher builds a fetcher with a tuned HTTP transport. The repo may be
// nil when no durable artifact index is wanted.
func NewFetcher(
	st *store.Store,
	tracker *transfer.Tracker,
	repo storage.ArtifactWriteRepository,
	tel *telemetry.Telemetry,
	cfg Config,
) *Fetcher {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}

	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 5
	}

	if tel == nil {
		tel = &telemetry.Telemetry{}
	}

	return &Fetcher{
		store:       st,
		tracker:     tracker,
		repo:        repo,
		tel:         tel,
		hc:          &http.Client{Transport: otelhttp.NewTransport(transport)},
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
		maxParallel: cfg.MaxParallel,
	}
}

// Fetch starts (or attaches to) the transfer for req. It returns immediately
// with a snapshot of the transfer record; the download itself runs in the
// background and is observed by polling the tracker. started is false when
// the caller attached to an existing transfer or the artifact already exists.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (t transfer.Transfer, started bool) {
	logger := logctx.LoggerFromContext(ctx)

	if size, err := f.store.Stat(req.FileName); err == nil {
		logger.Debug("artifact already stored", "file_name", req.FileName)

		return f.tracker.RecordCompleted(req.ID, req.FileName, req.SourceURL, size), false
	}

	t, created := f.tracker.Attach(req.ID, req.FileName, req.SourceURL)
	if !created {
		return t, false
	}

	// The download must outlive the triggering request, so cancellation is
	// cut while context values (logger, trace) are kept.
	go func() {
		if err := f.run(context.WithoutCancel(ctx), req); err != nil {
			logger.Error("transfer failed", "transfer_id", req.ID, "err", err)
		}
	}()

	return t, true
}

// Prefetch downloads every requested artifact with bounded parallelism and
// blocks until all of them settle. Artifacts already stored or already being
// fetched are skipped.
func (f *Fetcher) Prefetch(ctx context.Context, reqs []Request) error {
	wg, ctx := errgroup.WithContext(ctx)

	sem := make(chan struct{}, f.maxParallel)

	for i := range reqs {
		req := reqs[i]
		sem <- struct{}{}

		wg.Go(func() error {
			defer func() { <-sem }() // release the slot

			if f.store.Exists(req.FileName) {
				return nil
			}

			if _, created := f.tracker.Attach(req.ID, req.FileName, req.SourceURL); !created {
				return nil
			}

			return f.run(ctx, req)
		})
	}

	if err := wg.Wait(); err != nil {
		return fmt.Errorf("failed to prefetch artifacts: %w", err)
	}

	return nil
}

// run executes the download for an admitted transfer and settles the tracker
// entry to a terminal state. The caller must already own the transfer via
// Attach.
func (f *Fetcher) run(ctx context.Context, req Request) error {
	logger := logctx.LoggerFromContext(ctx).With("transfer_id", req.ID, "file_name", req.FileName)
	ctx = logctx.WithLogger(ctx, logger)

	err := f.tel.InstrumentFetch(ctx, func(ctx context.Context) error {
		return f.download(ctx, req)
	})
	if err != nil {
		if discardErr := f.store.Discard(req.FileName); discardErr != nil {
			logger.Error("failed to discard partial write", "err", discardErr)
		}

		f.tracker.Update(req.ID, func(t *transfer.Transfer) {
			t.Status = transfer.StatusFailed
			t.ErrorMessage = err.Error()
		})

		return err
	}

	f.tracker.Update(req.ID, func(t *transfer.Transfer) {
		t.Status = transfer.StatusCompleted
	})

	logger.Info("transfer completed")

	return nil
}

// download runs the retry loop. Transient failures (transport errors, 5xx,
// 429) are retried from the start of the payload after an exponential
// backoff; any other origin status fails immediately.
func (f *Fetcher) download(ctx context.Context, req Request) error {
	logger := logctx.LoggerFromContext(ctx)

	var lastErr error

	for attempt := range f.maxRetries {
		if attempt > 0 {
			delay := f.baseBackoff << (attempt - 1)
			logger.Warn("retrying fetch", "attempt", attempt, "delay", delay.String(), "err", lastErr)
			f.tel.RecordFetchRetry()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		retryable, err := f.attempt(ctx, req)
		if err == nil {
			return nil
		}

		if !retryable {
			return err
		}

		lastErr = err
	}

	return &transfer.UpstreamError{
		URL:      req.SourceURL,
		Attempts: f.maxRetries,
		Err:      lastErr,
	}
}

// attempt performs a single fetch-and-store pass. retryable reports whether
// the failure is transient.
func (f *Fetcher) attempt(ctx context.Context, req Request) (retryable bool, err error) {
	logger := logctx.LoggerFromContext(ctx)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.SourceURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create origin request: %w", err)
	}

	resp, err := f.hc.Do(httpReq)
	if err != nil {
		return true, fmt.Errorf("origin request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := &transfer.UpstreamError{
			URL:        req.SourceURL,
			StatusCode: resp.StatusCode,
			Attempts:   1,
		}

		return transientStatus(resp.StatusCode), err
	}

	totalBytes := resp.ContentLength
	if totalBytes < 0 {
		totalBytes = 0 // unknown until the body is drained
	}

	f.tracker.Update(req.ID, func(t *transfer.Transfer) {
		t.Status = transfer.StatusDownloading
		t.BytesTransferred = 0
		t.TotalBytes = totalBytes
	})

	logger.Info("downloading", "source", req.SourceURL, "size", humanize.Bytes(uint64(totalBytes)))

	out, err := f.store.BeginWrite(req.FileName)
	if err != nil {
		return false, &transfer.StorageError{Key: req.FileName, Op: "begin_write", Err: err}
	}

	var lastLogged int64

	pr := progress.NewReader(resp.Body, totalBytes, func(read, total int64) {
		f.tracker.Update(req.ID, func(t *transfer.Transfer) {
			t.BytesTransferred = read
		})

		if read-lastLogged >= progressLogInterval {
			lastLogged = read
			logger.Debug("download progress",
				"downloaded", humanize.Bytes(uint64(read)),
				"total", humanize.Bytes(uint64(total)),
			)
		}
	})

	written, err := io.Copy(out, pr)
	if err != nil {
		out.Close()

		// A torn body is transient; the next attempt restarts from zero.
		return true, fmt.Errorf("origin stream interrupted after %d bytes: %w", written, err)
	}

	if err := out.Close(); err != nil {
		return false, &transfer.StorageError{Key: req.FileName, Op: "close", Err: err}
	}

	if err := f.store.Finalize(req.FileName); err != nil {
		return false, &transfer.StorageError{Key: req.FileName, Op: "finalize", Err: err}
	}

	f.tel.AddBytesFetched(written)

	f.tracker.Update(req.ID, func(t *transfer.Transfer) {
		t.BytesTransferred = written
		t.TotalBytes = written
	})

	if f.repo != nil {
		rec := storage.ArtifactRecord{
			FileName:  req.FileName,
			SizeBytes: written,
			SourceURL: req.SourceURL,
			CreatedAt: time.Now(),
		}
		if err := f.repo.RecordArtifact(rec); err != nil {
			// The artifact itself is already finalized and servable; a failed
			// index write only weakens retention cleanup.
			logger.Error("failed to record artifact", "err", err)
		}
	}

	return false, nil
}

func transientStatus(code int) bool {
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}
