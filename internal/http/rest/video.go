package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/streamvault/streamvault/internal/catalog"
	"github.com/streamvault/streamvault/internal/fetch"
	"github.com/streamvault/streamvault/internal/logctx"
	"github.com/streamvault/streamvault/internal/store"
	"github.com/streamvault/streamvault/internal/telemetry"
	"github.com/streamvault/streamvault/internal/transfer"
)

const videoContentType = "video/mp4"

// VideoHandler serves the delivery surface: artifact listing, range-aware
// streaming, and the asynchronous download trigger with its status poll.
type VideoHandler struct {
	store        *store.Store
	fetcher      *fetch.Fetcher
	tracker      *transfer.Tracker
	resolver     catalog.Resolver
	telemetry    *telemetry.Telemetry
	maxChunkSize int64
}

// NewVideoHandler creates a new video delivery handler.
func NewVideoHandler(
	st *store.Store,
	fetcher *fetch.Fetcher,
	tracker *transfer.Tracker,
	resolver catalog.Resolver,
	tel *telemetry.Telemetry,
	maxChunkSize int64,
) *VideoHandler {
	if tel == nil {
		tel = &telemetry.Telemetry{}
	}

	if maxChunkSize <= 0 {
		maxChunkSize = 1024 * 1024
	}

	return &VideoHandler{
		store:        st,
		fetcher:      fetcher,
		tracker:      tracker,
		resolver:     resolver,
		telemetry:    tel,
		maxChunkSize: maxChunkSize,
	}
}

func (h *VideoHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/videos/list", h.HandleList)
	r.Get("/videos/{fileName}", h.HandleStream)
	r.Post("/download/prefetch", h.HandlePrefetch)
	r.Get("/download/{mediaType}/{id}", h.HandleDownload)
	r.Get("/download/{mediaType}/{id}/status", h.HandleStatus)

	return r
}

type fileResponse struct {
	FileName  string    `json:"fileName"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

type listResponse struct {
	Success bool           `json:"success"`
	Files   []fileResponse `json:"files"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type transferResponse struct {
	ID               string `json:"id"`
	FileName         string `json:"fileName"`
	Status           string `json:"status"`
	Progress         int    `json:"progress"`
	BytesTransferred int64  `json:"bytesTransferred"`
	TotalBytes       int64  `json:"totalBytes"`
	Error            string `json:"error,omitempty"`
}

type downloadResponse struct {
	Success  bool             `json:"success"`
	Transfer transferResponse `json:"transfer"`
}

type prefetchItem struct {
	MediaType string `json:"mediaType"`
	ID        string `json:"id"`
}

type prefetchRequest struct {
	Items []prefetchItem `json:"items"`
}

type prefetchResponse struct {
	Success bool     `json:"success"`
	Files   []string `json:"files"`
}

func newTransferResponse(t transfer.Transfer) transferResponse {
	return transferResponse{
		ID:               t.ID,
		FileName:         t.FileName,
		Status:           string(t.Status),
		Progress:         t.Progress(),
		BytesTransferred: t.BytesTransferred,
		TotalBytes:       t.TotalBytes,
		Error:            t.ErrorMessage,
	}
}

// HandleList returns the finalized artifacts available for streaming.
func (h *VideoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	artifacts, err := h.store.List()
	if err != nil {
		logger.Error("failed to list artifacts", "err", err)
		writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Message: "Failed to list videos"})

		return
	}

	files := make([]fileResponse, 0, len(artifacts))
	for _, a := range artifacts {
		files = append(files, fileResponse{
			FileName:  a.FileName,
			Size:      a.SizeBytes,
			CreatedAt: a.CreatedAt,
		})
	}

	writeJSON(r.Context(), w, http.StatusOK, listResponse{Success: true, Files: files})
}

// HandleStream serves an artifact with byte-range semantics. The decision
// between a JSON error and a binary stream is made before the first body
// byte: once headers are out, a failed copy only terminates the connection.
func (h *VideoHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logctx.LoggerFromContext(ctx)
	fileName := chi.URLParam(r, "fileName")

	f, size, err := h.store.Open(fileName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.telemetry.RecordRangeRequest("404")
			writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "Video file not found"})

			return
		}

		logger.Error("failed to open artifact", "file_name", fileName, "err", err)
		h.telemetry.RecordRangeRequest("500")
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "Error streaming video"})

		return
	}

	defer f.Close()

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		h.streamFull(ctx, w, f, size)

		return
	}

	br, err := parseRange(rangeHeader, size, h.maxChunkSize)
	if err != nil {
		h.telemetry.RecordRangeRequest("416")
		w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(size, 10))
		writeJSON(ctx, w, http.StatusRequestedRangeNotSatisfiable, errorResponse{Message: "Requested range not satisfiable"})

		return
	}

	h.streamPartial(ctx, w, f, size, br)
}

func (h *VideoHandler) streamFull(ctx context.Context, w http.ResponseWriter, f io.ReadSeeker, size int64) {
	logger := logctx.LoggerFromContext(ctx)

	w.Header().Set("Content-Type", videoContentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)

	h.telemetry.RecordRangeRequest("200")

	written, err := io.Copy(w, f)

	h.telemetry.AddBytesStreamed(written)

	if err != nil {
		// Headers are already sent; the client sees a truncated body.
		logger.Debug("stream aborted", "written", written, "err", err)
	}
}

func (h *VideoHandler) streamPartial(ctx context.Context, w http.ResponseWriter, f io.ReadSeeker, size int64, br byteRange) {
	logger := logctx.LoggerFromContext(ctx)

	if _, err := f.Seek(br.start, io.SeekStart); err != nil {
		logger.Error("failed to seek artifact", "err", err)
		h.telemetry.RecordRangeRequest("500")
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "Error streaming video"})

		return
	}

	w.Header().Set("Content-Type", videoContentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Range", br.contentRange(size))
	w.Header().Set("Content-Length", strconv.FormatInt(br.length(), 10))
	w.WriteHeader(http.StatusPartialContent)

	h.telemetry.RecordRangeRequest("206")

	written, err := io.CopyN(w, f, br.length())

	h.telemetry.AddBytesStreamed(written)

	if err != nil {
		logger.Debug("stream aborted", "written", written, "err", err)
	}
}

// HandleDownload resolves the media id through the catalog and starts (or
// attaches to) a background transfer. Clients poll HandleStatus for
// progress; nothing is streamed here.
func (h *VideoHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logctx.LoggerFromContext(ctx)

	mediaType := catalog.MediaType(chi.URLParam(r, "mediaType"))
	id := chi.URLParam(r, "id")

	if !mediaType.Valid() {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Message: "Invalid content type"})

		return
	}

	item, err := h.resolver.Resolve(ctx, mediaType, id)
	if err != nil {
		h.writeResolveError(ctx, w, logger, err)

		return
	}

	req := fetch.Request{
		ID:        string(mediaType) + "_" + id,
		FileName:  store.SanitizeFileName(item.Title, id),
		SourceURL: item.SourceURL,
	}

	t, started := h.fetcher.Fetch(ctx, req)
	if started {
		logger.Info("transfer started", "transfer_id", t.ID, "file_name", t.FileName)
	}

	status := http.StatusAccepted
	if t.Status == transfer.StatusCompleted {
		status = http.StatusOK
	}

	writeJSON(ctx, w, status, downloadResponse{Success: true, Transfer: newTransferResponse(t)})
}

// HandlePrefetch resolves a batch of media ids and downloads them with
// bounded parallelism. Every item must resolve before anything is fetched,
// so a bad id rejects the whole batch instead of half-running it. The
// downloads themselves happen in the background; clients poll the per-item
// status endpoints.
func (h *VideoHandler) HandlePrefetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logctx.LoggerFromContext(ctx)

	var body prefetchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Message: "Invalid request body"})

		return
	}

	if len(body.Items) == 0 {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Message: "No items to prefetch"})

		return
	}

	reqs := make([]fetch.Request, 0, len(body.Items))
	files := make([]string, 0, len(body.Items))

	for _, item := range body.Items {
		mediaType := catalog.MediaType(item.MediaType)
		if !mediaType.Valid() {
			writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Message: "Invalid content type"})

			return
		}

		resolved, err := h.resolver.Resolve(ctx, mediaType, item.ID)
		if err != nil {
			h.writeResolveError(ctx, w, logger, err)

			return
		}

		fileName := store.SanitizeFileName(resolved.Title, item.ID)
		reqs = append(reqs, fetch.Request{
			ID:        string(mediaType) + "_" + item.ID,
			FileName:  fileName,
			SourceURL: resolved.SourceURL,
		})
		files = append(files, fileName)
	}

	logger.Info("prefetch accepted", "items", len(reqs))

	// Like single downloads, the batch must outlive the triggering request.
	go func() {
		if err := h.fetcher.Prefetch(context.WithoutCancel(ctx), reqs); err != nil {
			logger.Error("prefetch failed", "err", err)
		}
	}()

	writeJSON(ctx, w, http.StatusAccepted, prefetchResponse{Success: true, Files: files})
}

// HandleStatus reports the live state of a transfer. Absence means "not
// started or forgotten after the retention window", so clients restart the
// download rather than treating this as fatal.
func (h *VideoHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	mediaType := catalog.MediaType(chi.URLParam(r, "mediaType"))
	id := chi.URLParam(r, "id")

	if !mediaType.Valid() {
		writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Message: "Invalid content type"})

		return
	}

	t, ok := h.tracker.Get(string(mediaType) + "_" + id)
	if !ok {
		writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{Message: "Transfer not found"})

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, downloadResponse{Success: true, Transfer: newTransferResponse(t)})
}

func (h *VideoHandler) writeResolveError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	var authErr *catalog.AuthError

	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "Media not found"})
	case errors.As(err, &authErr):
		logger.Error("catalog authentication failed", "backend", authErr.Backend, "err", err)
		writeJSON(ctx, w, http.StatusBadGateway, errorResponse{Message: "Media not found or API authentication failed"})
	default:
		logger.Error("failed to resolve media", "err", err)
		writeJSON(ctx, w, http.StatusBadGateway, errorResponse{Message: "Failed to resolve media"})
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are out; nothing left to do but note it.
		logctx.LoggerFromContext(ctx).Debug("failed to encode response", "err", err)
	}
}
