package progress

import "io"

// Reader wraps an io.Reader and reports the cumulative byte count to a
// callback after every successful read. The callback decides its own
// cadence for expensive work (logging, metrics); tracker updates are cheap
// enough to take every chunk.
type Reader struct {
	reader     io.Reader
	total      int64
	read       int64
	onProgress func(read, total int64)
}

func NewReader(r io.Reader, total int64, cb func(read, total int64)) *Reader {
	return &Reader{
		reader:     r,
		total:      total,
		onProgress: cb,
	}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)

		if pr.onProgress != nil {
			pr.onProgress(pr.read, pr.total)
		}
	}

	return n, err
}
