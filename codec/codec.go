// Package codec is a reference decompressor registry keyed by
// entry.CompressionMethod. It is not part of the parsing core: record,
// bytesource, entry, central, and push never import it, and never will —
// decompression is explicitly out of scope for the parsing engines
// themselves. It exists so a caller of either engine has somewhere to turn
// compressed payload bytes into plain ones without reaching for a different
// library per method.
//
// Grounded on the teacher's internal/zip/zip.go, which wires compress/flate
// and compress/bzip2 the same way (a method-number switch selecting a
// decompressor constructor over a bounded section of the stream).
package codec

import (
	"bytes"
	"compress/bzip2"
	"compress/flate"
	"fmt"
	"io"

	"github.com/therootcompany/xz"

	"github.com/finchwright/zipcore/entry"
)

// ErrUnsupportedMethod is returned by Decompressor for any method this
// registry has no decoder for.
var ErrUnsupportedMethod = fmt.Errorf("codec: unsupported compression method")

// Decompressor returns an io.Reader that yields the decompressed bytes of
// r, which must contain exactly one entry's compressed payload (callers
// typically wrap an *entry.Entry in io.LimitReader(e, int64(e.CompressedSize))
// first, since Entry itself has no notion of its own length boundary).
func Decompressor(method entry.CompressionMethod, r io.Reader) (io.Reader, error) {
	switch method {
	case entry.Stored:
		return r, nil
	case entry.Deflated:
		return flate.NewReader(r), nil
	case entry.BZIP2:
		return bzip2.NewReader(r), nil
	case entry.LZMA, entry.XZ:
		return xz.NewReader(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
}

// DecompressAll is a convenience wrapper for small payloads: it reads r
// through the method's decompressor to the end and returns the output as a
// slice. count only sizes the initial buffer; it does not limit the read.
func DecompressAll(method entry.CompressionMethod, r io.Reader, count int) ([]byte, error) {
	dr, err := Decompressor(method, r)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	buf.Grow(count)
	if _, err := io.Copy(buf, dr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
