package rest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	const mib = 1024 * 1024

	tests := []struct {
		name     string
		spec     string
		size     int64
		maxChunk int64
		want     byteRange
		wantErr  bool
	}{
		{
			name:     "open ended range is capped to one chunk",
			spec:     "bytes=0-",
			size:     5_000_000,
			maxChunk: mib,
			want:     byteRange{start: 0, end: mib - 1},
		},
		{
			name:     "explicit range within one chunk",
			spec:     "bytes=100-199",
			size:     5_000_000,
			maxChunk: mib,
			want:     byteRange{start: 100, end: 199},
		},
		{
			name:     "end clamped to last byte",
			spec:     "bytes=0-999999999",
			size:     500,
			maxChunk: mib,
			want:     byteRange{start: 0, end: 499},
		},
		{
			name:     "wide range clamped to chunk size",
			spec:     "bytes=1000-",
			size:     5_000_000,
			maxChunk: mib,
			want:     byteRange{start: 1000, end: 1000 + mib - 1},
		},
		{
			name:     "last byte",
			spec:     "bytes=4999999-",
			size:     5_000_000,
			maxChunk: mib,
			want:     byteRange{start: 4_999_999, end: 4_999_999},
		},
		{
			name:     "start at size is unsatisfiable",
			spec:     "bytes=5000000-",
			size:     5_000_000,
			maxChunk: mib,
			wantErr:  true,
		},
		{
			name:     "start beyond size is unsatisfiable",
			spec:     "bytes=6000000-6000100",
			size:     5_000_000,
			maxChunk: mib,
			wantErr:  true,
		},
		{
			name:     "negative start",
			spec:     "bytes=--5",
			size:     100,
			maxChunk: mib,
			wantErr:  true,
		},
		{
			name:     "suffix range is not supported",
			spec:     "bytes=-500",
			size:     5_000_000,
			maxChunk: mib,
			wantErr:  true,
		},
		{
			name:     "end before start",
			spec:     "bytes=200-100",
			size:     5_000_000,
			maxChunk: mib,
			wantErr:  true,
		},
		{
			name:     "missing unit prefix",
			spec:     "0-100",
			size:     5_000_000,
			maxChunk: mib,
			wantErr:  true,
		},
		{
			name:     "wrong unit",
			spec:     "items=0-100",
			size:     5_000_000,
			maxChunk: mib,
			wantErr:  true,
		},
		{
			name:     "multiple ranges rejected",
			spec:     "bytes=0-100,200-300",
			size:     5_000_000,
			maxChunk: mib,
			wantErr:  true,
		},
		{
			name:     "non numeric start",
			spec:     "bytes=abc-",
			size:     5_000_000,
			maxChunk: mib,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRange(tt.spec, tt.size, tt.maxChunk)
			if tt.wantErr {
				require.Error(t, err)

				var rangeErr *RangeError
				require.ErrorAs(t, err, &rangeErr)
				assert.Equal(t, tt.spec, rangeErr.Spec)
				assert.Equal(t, tt.size, rangeErr.Size)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestByteRangeHeaders(t *testing.T) {
	br := byteRange{start: 0, end: 1048575}

	assert.Equal(t, int64(1048576), br.length())
	assert.Equal(t, "bytes 0-1048575/5000000", br.contentRange(5_000_000))
}
