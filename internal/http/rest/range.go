package rest

import (
	"fmt"
	"strconv"
	"strings"
)

// RangeError represents a Range header the server refuses to satisfy:
// malformed syntax, a non-numeric offset, or a start beyond the artifact.
// Mapped to 416 with "Content-Range: bytes */size".
type RangeError struct {
	Spec string // The Range header as received
	Size int64  // Total size of the artifact
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("unsatisfiable range %q for size %d", e.Spec, e.Size)
}

// byteRange is a resolved, clamped byte window. end is inclusive.
type byteRange struct {
	start int64
	end   int64
}

func (br byteRange) length() int64 {
	return br.end - br.start + 1
}

func (br byteRange) contentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", br.start, br.end, size)
}

// parseRange resolves a "bytes=start-end" specifier against an artifact of
// the given size. The start offset is mandatory and must fall inside the
// artifact. The end is clamped twice: to the last byte of the artifact and
// to maxChunk bytes per response, so a request for an arbitrarily wide (or
// open-ended) range never produces more than one bounded chunk.
func parseRange(spec string, size, maxChunk int64) (byteRange, error) {
	rangeErr := &RangeError{Spec: spec, Size: size}

	suffix, ok := strings.CutPrefix(spec, "bytes=")
	if !ok || strings.Contains(suffix, ",") {
		return byteRange{}, rangeErr
	}

	startStr, endStr, ok := strings.Cut(suffix, "-")
	if !ok {
		return byteRange{}, rangeErr
	}

	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 || start >= size {
		return byteRange{}, rangeErr
	}

	end := size - 1

	if endStr = strings.TrimSpace(endStr); endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return byteRange{}, rangeErr
		}
	}

	end = min(end, size-1, start+maxChunk-1)

	return byteRange{start: start, end: end}, nil
}
