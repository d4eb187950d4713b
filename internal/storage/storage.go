package storage

import "time"

// ArtifactRecord is the durable bookkeeping row for a finalized artifact.
// Unlike the in-memory transfer table, these records survive restarts and
// drive retention cleanup.
type ArtifactRecord struct {
	FileName  string
	SizeBytes int64
	SourceURL string
	CreatedAt time.Time
}

// ArtifactReadRepository reads finalized artifact records.
type ArtifactReadRepository interface {
	GetArtifacts() ([]ArtifactRecord, error)
	GetArtifact(fileName string) (*ArtifactRecord, error)
}

// ArtifactWriteRepository mutates the artifact index.
type ArtifactWriteRepository interface {
	RecordArtifact(rec ArtifactRecord) error
	DeleteArtifact(fileName string) error
}
