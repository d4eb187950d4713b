package sqlite

import (
	"database/sql"
	"time"

	"github.com/streamvault/streamvault/internal/storage"
)

// ArtifactRepository persists the index of finalized artifacts.
type ArtifactRepository struct {
	db *sql.DB
}

func NewArtifactRepository(dbConn *sql.DB) *ArtifactRepository {
	return &ArtifactRepository{db: dbConn}
}

// RecordArtifact upserts the index row for a finalized artifact. A re-fetch
// of the same file name replaces the previous row.
func (r *ArtifactRepository) RecordArtifact(rec storage.ArtifactRecord) error {
	_, err := r.db.Exec(`
		INSERT INTO artifacts (file_name, size_bytes, source_url, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_name) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			source_url = excluded.source_url,
			created_at = excluded.created_at
	`, rec.FileName, rec.SizeBytes, rec.SourceURL, rec.CreatedAt.Format(time.RFC3339))

	return err
}

// GetArtifacts returns every indexed artifact.
func (r *ArtifactRepository) GetArtifacts() ([]storage.ArtifactRecord, error) {
	rows, err := r.db.Query(`SELECT file_name, size_bytes, source_url, created_at FROM artifacts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []storage.ArtifactRecord

	for rows.Next() {
		rec, err := scanArtifact(rows.Scan)
		if err != nil {
			return nil, err
		}

		records = append(records, *rec)
	}

	return records, rows.Err()
}

// GetArtifact returns the index row for fileName, or nil when absent.
func (r *ArtifactRepository) GetArtifact(fileName string) (*storage.ArtifactRecord, error) {
	row := r.db.QueryRow(`SELECT file_name, size_bytes, source_url, created_at FROM artifacts WHERE file_name = ?`, fileName)

	rec, err := scanArtifact(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return rec, nil
}

// DeleteArtifact removes the index row for fileName.
func (r *ArtifactRepository) DeleteArtifact(fileName string) error {
	_, err := r.db.Exec(`DELETE FROM artifacts WHERE file_name = ?`, fileName)

	return err
}

func scanArtifact(scan func(dest ...any) error) (*storage.ArtifactRecord, error) {
	var rec storage.ArtifactRecord

	var sourceURL sql.NullString

	var createdAt string

	if err := scan(&rec.FileName, &rec.SizeBytes, &sourceURL, &createdAt); err != nil {
		return nil, err
	}

	if sourceURL.Valid {
		rec.SourceURL = sourceURL.String
	}

	// Stored as RFC3339; fall back to the zero time on a corrupt row rather
	// than failing the whole listing.
	if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = parsed
	}

	return &rec, nil
}
