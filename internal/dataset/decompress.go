package dataset

import (
	"fmt"
	"io"
	"path"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// decompress wraps rc with the decoder matching the extension of name:
// .gz, .zst or .lz4. Other names are returned as is.
func decompress(name string, rc io.ReadCloser) (io.ReadCloser, error) {
	switch path.Ext(name) {
	case ".gz":
		zr, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("opening gzip stream %s: %w", name, err)
		}
		return &readCloser{Reader: zr, closers: []func() error{zr.Close, rc.Close}}, nil
	case ".zst":
		zr, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("opening zstd stream %s: %w", name, err)
		}
		return &readCloser{Reader: zr, closers: []func() error{
			func() error { zr.Close(); return nil },
			rc.Close,
		}}, nil
	case ".lz4":
		return &readCloser{Reader: lz4.NewReader(rc), closers: []func() error{rc.Close}}, nil
	default:
		return rc, nil
	}
}
