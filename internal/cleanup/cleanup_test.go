package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/streamvault/internal/storage"
	"github.com/streamvault/streamvault/internal/storage/sqlite"
	"github.com/streamvault/streamvault/internal/store"
)

func newTestDeps(t *testing.T) (*sqlite.ArtifactRepository, *store.Store) {
	t.Helper()

	db, err := sqlite.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	return sqlite.NewArtifactRepository(db), st
}

func putArtifact(t *testing.T, st *store.Store, name string) {
	t.Helper()

	w, err := st.BeginWrite(name)
	require.NoError(t, err)

	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, st.Finalize(name))
}

func TestDeleteExpiredArtifacts(t *testing.T) {
	repo, st := newTestDeps(t)

	putArtifact(t, st, "old_1.mp4")
	putArtifact(t, st, "fresh_2.mp4")

	require.NoError(t, repo.RecordArtifact(storage.ArtifactRecord{
		FileName:  "old_1.mp4",
		SizeBytes: 7,
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}))
	require.NoError(t, repo.RecordArtifact(storage.ArtifactRecord{
		FileName:  "fresh_2.mp4",
		SizeBytes: 7,
		CreatedAt: time.Now().Add(-time.Hour),
	}))

	require.NoError(t, DeleteExpiredArtifacts(context.Background(), repo, st, 24*time.Hour))

	assert.False(t, st.Exists("old_1.mp4"))
	assert.True(t, st.Exists("fresh_2.mp4"))

	records, err := repo.GetArtifacts()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "fresh_2.mp4", records[0].FileName)
}

func TestDeleteExpiredArtifacts_MissingFileStillDropsRecord(t *testing.T) {
	repo, st := newTestDeps(t)

	// Index row without a backing file, e.g. deleted by hand.
	require.NoError(t, repo.RecordArtifact(storage.ArtifactRecord{
		FileName:  "gone_9.mp4",
		SizeBytes: 7,
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}))

	require.NoError(t, DeleteExpiredArtifacts(context.Background(), repo, st, 24*time.Hour))

	records, err := repo.GetArtifacts()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDeleteExpiredArtifacts_NothingExpired(t *testing.T) {
	repo, st := newTestDeps(t)

	putArtifact(t, st, "fresh_2.mp4")
	require.NoError(t, repo.RecordArtifact(storage.ArtifactRecord{
		FileName:  "fresh_2.mp4",
		SizeBytes: 7,
		CreatedAt: time.Now(),
	}))

	require.NoError(t, DeleteExpiredArtifacts(context.Background(), repo, st, 24*time.Hour))

	assert.True(t, st.Exists("fresh_2.mp4"))
}
