package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644

	// partSuffix marks in-progress writes. A .part file is never visible
	// through Exists/Open/List; only the atomic rename in Finalize promotes
	// it to an artifact.
	partSuffix = ".part"
)

// ErrNotFound is returned when an artifact key has no finalized file behind it.
var ErrNotFound = errors.New("artifact not found")

// Artifact describes a finalized, immutable media file.
type Artifact struct {
	FileName  string
	SizeBytes int64
	CreatedAt time.Time
}

// Store manages the on-disk layout of media artifacts. An artifact is either
// wholly absent, staged under a .part name, or finalized and immutable; there
// is no observable in-between.
type Store struct {
	dir string
}

// New creates the storage directory if needed and returns a store rooted there.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &Store{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// SanitizeFileName derives a filesystem-safe artifact name from a media title
// and id: non-alphanumeric runs collapse to underscores and the result is
// lower-cased, matching names like "big_buck_bunny_42.mp4".
func SanitizeFileName(title, id string) string {
	safe := unsafeChars.ReplaceAllString(title, "_")
	safe = strings.Trim(safe, "_")
	safe = strings.ToLower(safe)

	if safe == "" {
		safe = "media"
	}

	return safe + "_" + id + ".mp4"
}

// validKey rejects anything that could escape the storage directory.
func (s *Store) validKey(name string) bool {
	if name == "" || strings.HasSuffix(name, partSuffix) {
		return false
	}

	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}

	return true
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether a finalized artifact is present under name.
// Bytes staged by BeginWrite do not count until Finalize runs.
func (s *Store) Exists(name string) bool {
	if !s.validKey(name) {
		return false
	}

	info, err := os.Stat(s.path(name))

	return err == nil && info.Mode().IsRegular()
}

// Open returns a readable, seekable handle on a finalized artifact along
// with its size. Callers own the handle and must close it.
func (s *Store) Open(name string) (io.ReadSeekCloser, int64, error) {
	if !s.validKey(name) {
		return nil, 0, ErrNotFound
	}

	f, err := os.Open(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}

		return nil, 0, fmt.Errorf("failed to open artifact: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()

		return nil, 0, fmt.Errorf("failed to stat artifact: %w", err)
	}

	return f, info.Size(), nil
}

// Stat returns the size of a finalized artifact.
func (s *Store) Stat(name string) (int64, error) {
	if !s.validKey(name) {
		return 0, ErrNotFound
	}

	info, err := os.Stat(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotFound
		}

		return 0, fmt.Errorf("failed to stat artifact: %w", err)
	}

	return info.Size(), nil
}

// BeginWrite creates (or truncates) the staging file for name. The write is
// invisible to Exists/Open/List until Finalize promotes it.
func (s *Store) BeginWrite(name string) (io.WriteCloser, error) {
	if !s.validKey(name) {
		return nil, fmt.Errorf("invalid artifact name: %q", name)
	}

	f, err := os.OpenFile(s.path(name+partSuffix), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}

	return f, nil
}

// Finalize atomically promotes the staged bytes for name into a visible
// artifact. The rename guarantees readers never observe a truncated file.
func (s *Store) Finalize(name string) error {
	if !s.validKey(name) {
		return fmt.Errorf("invalid artifact name: %q", name)
	}

	if err := os.Rename(s.path(name+partSuffix), s.path(name)); err != nil {
		return fmt.Errorf("failed to finalize artifact: %w", err)
	}

	return nil
}

// Discard removes the staged bytes for name, if any. Used on failed
// transfers so a truncated file can never be mistaken for a complete one.
func (s *Store) Discard(name string) error {
	if !s.validKey(name) {
		return nil
	}

	if err := os.Remove(s.path(name + partSuffix)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to discard staging file: %w", err)
	}

	return nil
}

// Remove deletes a finalized artifact. Used by retention cleanup.
func (s *Store) Remove(name string) error {
	if !s.validKey(name) {
		return ErrNotFound
	}

	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artifact: %w", err)
	}

	return nil
}

// List returns the finalized artifacts in the store, sorted by file name.
// Staged .part files are skipped.
func (s *Store) List() ([]Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	artifacts := make([]Artifact, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), partSuffix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue // removed between ReadDir and Info
			}

			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}

		artifacts = append(artifacts, Artifact{
			FileName:  entry.Name(),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].FileName < artifacts[j].FileName
	})

	return artifacts, nil
}
