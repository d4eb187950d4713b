package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/streamvault/streamvault/internal/catalog"
	"github.com/streamvault/streamvault/internal/logctx"
	"golang.org/x/oauth2"
)

// Client resolves media ids against the TMDB metadata API. TMDB only carries
// metadata, never video bytes, so the origin URL for the payload itself comes
// from configuration (the placeholder source the reference deployment used).
type Client struct {
	baseURL   string
	originURL string
	hc        *http.Client
}

// NewClient builds a TMDB resolver authenticated with the given read access
// token. The token rides on every request as a Bearer header via oauth2.
func NewClient(baseURL, token, originURL string) *Client {
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})

	return &Client{
		baseURL:   baseURL,
		originURL: originURL,
		hc:        oauth2.NewClient(context.Background(), tokenSource),
	}
}

// detailsResponse covers both movie and tv payloads: movies carry "title",
// tv shows carry "name".
type detailsResponse struct {
	Title string `json:"title"`
	Name  string `json:"name"`
}

// Resolve fetches /3/{movie|tv}/{id} and returns the title paired with the
// configured origin URL.
func (c *Client) Resolve(ctx context.Context, mediaType catalog.MediaType, id string) (*catalog.Item, error) {
	logger := logctx.LoggerFromContext(ctx).With("media_type", string(mediaType), "media_id", id)

	url := fmt.Sprintf("%s/3/%s/%s", c.baseURL, mediaType, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch media details: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, catalog.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &catalog.AuthError{Backend: "tmdb"}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d from metadata origin", resp.StatusCode)
	}

	var details detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("failed to decode media details: %w", err)
	}

	title := details.Title
	if title == "" {
		title = details.Name
	}

	if title == "" {
		return nil, catalog.ErrNotFound
	}

	logger.Debug("resolved media", "title", title)

	return &catalog.Item{
		Title:     title,
		SourceURL: c.originURL,
	}, nil
}
