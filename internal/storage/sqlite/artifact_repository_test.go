package sqlite

import (
	"testing"
	"time"

	"github.com/streamvault/streamvault/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *ArtifactRepository {
	t.Helper()

	db, err := InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewArtifactRepository(db)
}

func TestArtifactRepository_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	created := time.Date(2024, 11, 2, 15, 4, 5, 0, time.UTC)

	require.NoError(t, repo.RecordArtifact(storage.ArtifactRecord{
		FileName:  "inception_27205.mp4",
		SizeBytes: 5_000_000,
		SourceURL: "http://origin/sample.mp4",
		CreatedAt: created,
	}))

	rec, err := repo.GetArtifact("inception_27205.mp4")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(5_000_000), rec.SizeBytes)
	assert.Equal(t, "http://origin/sample.mp4", rec.SourceURL)
	assert.True(t, rec.CreatedAt.Equal(created))

	all, err := repo.GetArtifacts()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestArtifactRepository_UpsertReplaces(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.RecordArtifact(storage.ArtifactRecord{
		FileName:  "a.mp4",
		SizeBytes: 10,
		CreatedAt: time.Now(),
	}))
	require.NoError(t, repo.RecordArtifact(storage.ArtifactRecord{
		FileName:  "a.mp4",
		SizeBytes: 20,
		CreatedAt: time.Now(),
	}))

	rec, err := repo.GetArtifact("a.mp4")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(20), rec.SizeBytes)

	all, err := repo.GetArtifacts()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestArtifactRepository_GetMissing(t *testing.T) {
	repo := newTestRepo(t)

	rec, err := repo.GetArtifact("nope.mp4")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestArtifactRepository_Delete(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.RecordArtifact(storage.ArtifactRecord{
		FileName:  "a.mp4",
		SizeBytes: 10,
		CreatedAt: time.Now(),
	}))
	require.NoError(t, repo.DeleteArtifact("a.mp4"))

	rec, err := repo.GetArtifact("a.mp4")
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Deleting a missing row is not an error.
	require.NoError(t, repo.DeleteArtifact("a.mp4"))
}
