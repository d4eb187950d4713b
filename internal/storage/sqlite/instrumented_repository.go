package sqlite

import (
	"context"

	"github.com/streamvault/streamvault/internal/storage"
	"github.com/streamvault/streamvault/internal/telemetry"
)

// InstrumentedArtifactRepository wraps ArtifactRepository with telemetry.
type InstrumentedArtifactRepository struct {
	repo *ArtifactRepository
	tel  *telemetry.Telemetry
}

func NewInstrumentedArtifactRepository(repo *ArtifactRepository, tel *telemetry.Telemetry) *InstrumentedArtifactRepository {
	return &InstrumentedArtifactRepository{repo: repo, tel: tel}
}

func (r *InstrumentedArtifactRepository) RecordArtifact(rec storage.ArtifactRecord) error {
	return r.tel.InstrumentDBOperation(context.Background(), "record_artifact", func(ctx context.Context) error {
		return r.repo.RecordArtifact(rec)
	})
}

func (r *InstrumentedArtifactRepository) GetArtifacts() ([]storage.ArtifactRecord, error) {
	var result []storage.ArtifactRecord

	var err error

	instrumentedErr := r.tel.InstrumentDBOperation(context.Background(), "get_artifacts", func(ctx context.Context) error {
		result, err = r.repo.GetArtifacts()

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

func (r *InstrumentedArtifactRepository) GetArtifact(fileName string) (*storage.ArtifactRecord, error) {
	var result *storage.ArtifactRecord

	var err error

	instrumentedErr := r.tel.InstrumentDBOperation(context.Background(), "get_artifact", func(ctx context.Context) error {
		result, err = r.repo.GetArtifact(fileName)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

func (r *InstrumentedArtifactRepository) DeleteArtifact(fileName string) error {
	return r.tel.InstrumentDBOperation(context.Background(), "delete_artifact", func(ctx context.Context) error {
		return r.repo.DeleteArtifact(fileName)
	})
}
