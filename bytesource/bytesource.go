// Package bytesource names the two capability contracts THE CORE depends
// on — sequential reads and, optionally, random access — and the couple of
// derived helpers (ReadExact, StreamLen) both parser engines share.
//
// Go's io.Reader and io.Seeker already express exactly the semantics spec.md
// §4.2 asks for (short reads allowed, zero-without-error is not EOF), so
// this package names them rather than inventing parallel interfaces — the
// teacher repo does the same thing throughout (open.go, fs.go) by composing
// stdlib io interfaces instead of declaring its own.
package bytesource

import (
	"io"
)

// Reader is a sequential byte source. A short read is not an error; a
// zero-length read with a nil error means no bytes are available right now,
// not necessarily end of stream.
type Reader = io.Reader

// Seeker is optional random-access capability over a Reader.
type Seeker = io.Seeker

// ReadSeeker is the capability directory-driven parsing requires.
type ReadSeeker = io.ReadSeeker

// Sizer is satisfied by sources that can report their own length without a
// seek round-trip, such as *bytes.Reader, *io.SectionReader, or FileSource.
type Sizer interface {
	Size() int64
}

// ReadExact loops Read until buf is full or an error occurs, as spec.md
// §4.2 requires of the derived read_exact operation.
func ReadExact(r Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrNoProgress
		}
	}
	return total, nil
}

// StreamLen reports the total length of s, or (0, false) if it cannot be
// determined without disturbing the source in a way this package is not
// willing to risk. Per spec.md §4.2, the caller falls back to push parsing
// when this returns false.
func StreamLen(s Seeker) (int64, bool) {
	if sz, ok := s.(Sizer); ok {
		return sz.Size(), true
	}
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, false
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, false
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return 0, false
	}
	return end, true
}
