package catalog

import (
	"context"
	"errors"
	"fmt"
)

// MediaType is the class of catalog entry being resolved.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// Valid reports whether the media type is one the catalog understands.
func (m MediaType) Valid() bool {
	return m == MediaTypeMovie || m == MediaTypeTV
}

// Item is the narrow slice of catalog metadata the delivery core needs:
// a human title and the origin to fetch bytes from.
type Item struct {
	Title     string
	SourceURL string
}

// ErrNotFound is returned when the catalog has no entry for the id.
var ErrNotFound = errors.New("media not found in catalog")

// AuthError represents rejected or missing credentials at the metadata origin.
type AuthError struct {
	Backend string // Which catalog backend rejected us
	Err     error  // Underlying error, if any
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("catalog authentication failed for %s backend", e.Backend)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Resolver maps a logical media id to its title and origin URL. The delivery
// core depends only on this contract, not on any concrete metadata API.
type Resolver interface {
	Resolve(ctx context.Context, mediaType MediaType, id string) (*Item, error)
}
