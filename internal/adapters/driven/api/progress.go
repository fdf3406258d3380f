package api

import (
	"io"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
)

// progressReader counts bytes as the transport reads the request body and
// reports after every chunk. A new reader is built for every attempt, so
// progress restarts from zero on retries.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress driven.ProgressFunc
}

func newProgressReader(r io.Reader, total int64, progress driven.ProgressFunc) io.Reader {
	if progress == nil {
		return r
	}
	progress(domain.NewUploadProgress(0, total))
	return &progressReader{r: r, total: total, progress: progress}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		p.progress(domain.NewUploadProgress(p.read, p.total))
	}
	return n, err
}
