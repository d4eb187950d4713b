package cleanup

import (
	"context"
	"errors"
	"time"

	"github.com/streamvault/streamvault/internal/logctx"
	"github.com/streamvault/streamvault/internal/storage"
	"github.com/streamvault/streamvault/internal/store"
)

// Repository is the slice of the artifact index the janitor needs.
type Repository interface {
	storage.ArtifactReadRepository
	storage.ArtifactWriteRepository
}

// DeleteExpiredArtifacts removes artifacts older than keepDuration from both
// the store and the index. A file that disappeared out-of-band still gets its
// index row removed so the listing stays honest.
func DeleteExpiredArtifacts(ctx context.Context, repo Repository, st *store.Store, keepDuration time.Duration) error {
	logger := logctx.LoggerFromContext(ctx)
	now := time.Now()

	records, err := repo.GetArtifacts()
	if err != nil {
		return err
	}

	for _, rec := range records {
		if now.Sub(rec.CreatedAt) <= keepDuration {
			continue
		}

		if err := st.Remove(rec.FileName); err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.Error("failed to delete expired artifact", "file_name", rec.FileName, "err", err)

			return err
		}

		if err := repo.DeleteArtifact(rec.FileName); err != nil {
			logger.Error("failed to delete artifact record", "file_name", rec.FileName, "err", err)

			return err
		}

		logger.Info("deleted expired artifact", "file_name", rec.FileName, "age", now.Sub(rec.CreatedAt).String())
	}

	return nil
}
