package land

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/mcoot/townserver/internal/model"
)

// maxInflated caps decompressed town uploads
const maxInflated = 64 << 20

// decompress undoes a gzip or deflate Content-Encoding. Deflate bodies are
// tried as zlib first, then as raw deflate.
func decompress(encoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", model.ErrMalformedBody, err)
		}
		defer zr.Close()
		return inflate(zr, "gzip")
	case "deflate":
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer zr.Close()
			if out, err := inflate(zr, "zlib"); err == nil {
				return out, nil
			}
		}
		fr := flate.NewReader(bytes.NewReader(body))
		defer fr.Close()
		return inflate(fr, "deflate")
	default:
		return nil, fmt.Errorf("%w: unsupported content encoding %q", model.ErrMalformedBody, encoding)
	}
}

func inflate(r io.Reader, name string) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, maxInflated+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrMalformedBody, name, err)
	}
	if len(out) > maxInflated {
		return nil, fmt.Errorf("%w: %s body too large", model.ErrMalformedBody, name)
	}
	return out, nil
}
