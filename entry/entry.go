// Package entry is the value type carrying one archive member's parsed
// metadata plus a cursor for on-demand payload reads (spec.md §3, §4.3).
package entry

import (
	"github.com/finchwright/zipcore/zerr"
)

// CompressionMethod enumerates the method codes spec.md §3 lists. Numeric
// values match both the ZIP APPNOTE and original_source/src/lib.rs's
// CompressMethod one for one, since that Rust implementation is the
// authoritative source this spec was distilled from.
type CompressionMethod uint16

const (
	Stored    CompressionMethod = 0
	Shrunk    CompressionMethod = 1
	Reduced1  CompressionMethod = 2
	Reduced2  CompressionMethod = 3
	Reduced3  CompressionMethod = 4
	Reduced4  CompressionMethod = 5
	Imploded  CompressionMethod = 6
	Deflated  CompressionMethod = 8
	BZIP2     CompressionMethod = 12
	LZMA      CompressionMethod = 14
	LZ77z     CompressionMethod = 19
	Zstd      CompressionMethod = 93
	MP3       CompressionMethod = 94
	XZ        CompressionMethod = 95
	JPEG      CompressionMethod = 96
	Unknown   CompressionMethod = 0xFF
)

// CompressionMethodFromRaw maps a raw 16-bit field to the enum, falling
// back to Unknown for anything not in the catalogue above.
func CompressionMethodFromRaw(v uint16) CompressionMethod {
	switch v {
	case 0, 1, 2, 3, 4, 5, 6, 8, 12, 14, 19, 93, 94, 95, 96:
		return CompressionMethod(v)
	default:
		return Unknown
	}
}

func (m CompressionMethod) String() string {
	switch m {
	case Stored:
		return "Stored"
	case Shrunk:
		return "Shrunk"
	case Reduced1:
		return "Reduced1"
	case Reduced2:
		return "Reduced2"
	case Reduced3:
		return "Reduced3"
	case Reduced4:
		return "Reduced4"
	case Imploded:
		return "Imploded"
	case Deflated:
		return "Deflated"
	case BZIP2:
		return "BZIP2"
	case LZMA:
		return "LZMA"
	case LZ77z:
		return "LZ77z"
	case Zstd:
		return "Zstd"
	case MP3:
		return "MP3"
	case XZ:
		return "XZ"
	case JPEG:
		return "JPEG"
	default:
		return "Unknown"
	}
}

// Source is the narrow capability Entry needs from its owning archive: read
// into p from an absolute offset, on behalf of the entry identified by id.
// Implementations (central.Archive) must return zerr.ErrInvalidStream if id
// is not the archive's currently live entry, since only one Entry may be
// read at a time.
type Source interface {
	ReadAt(id uint64, p []byte, off int64) (int, error)
}

// Entry is one archive member's metadata plus an independent read cursor
// into the archive's payload bytes.
//
// Two reads on the same Entry observe contiguous bytes starting from the
// payload origin (spec.md §4.3); Entry does not itself enforce that reads
// stay within CompressedSize — that is the caller's responsibility for
// directory-driven reads, exactly as spec.md §3 specifies.
type Entry struct {
	Name              string
	Method            CompressionMethod
	CompressedSize    uint64
	UncompressedSize  uint64
	CRC32             uint32

	src           Source
	id            uint64
	payloadOrigin int64
	cursor        int64
}

// New constructs an Entry bound to src, identified by id, whose payload
// begins at payloadOrigin. Called by central when it produces an entry from
// the central directory walk.
func New(name string, method CompressionMethod, compressedSize, uncompressedSize uint64, crc32 uint32, src Source, id uint64, payloadOrigin int64) *Entry {
	return &Entry{
		Name:             name,
		Method:           method,
		CompressedSize:   compressedSize,
		UncompressedSize: uncompressedSize,
		CRC32:            crc32,
		src:              src,
		id:               id,
		payloadOrigin:    payloadOrigin,
	}
}

// Read implements io.Reader over the entry's payload bytes: it repositions
// the shared source to payloadOrigin+cursor, performs one read, and
// advances cursor by what was read (spec.md §4.3).
func (e *Entry) Read(p []byte) (int, error) {
	if e.src == nil {
		return 0, zerr.ErrInvalidStream
	}
	n, err := e.src.ReadAt(e.id, p, e.payloadOrigin+e.cursor)
	e.cursor += int64(n)
	return n, err
}

// PayloadOrigin is the absolute offset of the first payload byte.
func (e *Entry) PayloadOrigin() int64 { return e.payloadOrigin }
