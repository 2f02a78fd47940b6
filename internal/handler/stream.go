package handler

import (
	"bytes"
	"io"
	"iter"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
)

const chunkSize = 64 << 10

// chunks yields data in chunkSize pieces.
func chunks(data []byte) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for len(data) > 0 {
			n := min(chunkSize, len(data))
			if !yield(data[:n], nil) {
				return
			}
			data = data[n:]
		}
	}
}

// gzipChunks yields the gzip compression of data. Compression runs in a
// separate goroutine feeding a pipe; stopping early closes the pipe, which
// ends the goroutine.
func gzipChunks(data []byte) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		pr, pw := io.Pipe()
		defer pr.Close()

		go func() {
			zw := pgzip.NewWriter(pw)
			_, err := io.Copy(zw, bytes.NewReader(data))
			if closeErr := zw.Close(); err == nil {
				err = closeErr
			}
			pw.CloseWithError(err)
		}()

		buf := make([]byte, chunkSize)
		for {
			n, err := pr.Read(buf)
			if n > 0 && !yield(bytes.Clone(buf[:n]), nil) {
				return
			}
			switch {
			case errors.Is(err, io.EOF):
				return
			case err != nil:
				yield(nil, errors.Wrap(err, "compress"))
				return
			}
		}
	}
}
