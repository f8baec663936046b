package bytesource

import "os"

// FileSource wraps *os.File as a ReadSeeker+Sizer, caching the size from a
// single Stat call so repeated StreamLen calls (directory-driven parsing
// calls it once at Open, but callers may call it again) never re-stat.
type FileSource struct {
	*os.File
	size int64
}

// NewFileSource stats f once and wraps it.
func NewFileSource(f *os.File) (*FileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return &FileSource{File: f, size: info.Size()}, nil
}

// Size implements Sizer.
func (s *FileSource) Size() int64 { return s.size }
