// Package central is the directory-driven parsing engine (spec.md §4.4): it
// requires random access, locates the end-of-central-directory record by
// scanning backward from the end of the stream, and walks the central
// directory to produce entry.Entry values on demand.
//
// Grounded on the teacher's internal/zip/zip.go: getEOCD's backward scan,
// the central-directory walk loop, and the lazy local-header resolution in
// localHeaderReader are all ported from there, adapted from io.ReaderAt to
// bytesource.ReadSeeker and from building an fs.FS to producing entry.Entry
// values directly.
package central

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"

	"github.com/finchwright/zipcore/bytesource"
	"github.com/finchwright/zipcore/entry"
	"github.com/finchwright/zipcore/internal/headercache"
	"github.com/finchwright/zipcore/record"
	"github.com/finchwright/zipcore/zerr"
)

// maxCommentLen bounds the end-of-central-directory comment per spec.md §4.4:
// the scan never looks further back than 22+65535 bytes from the stream end.
const maxCommentLen = 65535

// defaultMaxNameLen is the default bound on a central-directory name;
// directory-driven parsing has no fixed array to overflow, and Open skips
// any entry whose name is longer than the bound. Name lengths are 16-bit
// fields, so this default never skips an entry.
const defaultMaxNameLen = 1 << 16

// indexedEntry is what the central directory walk records per member before
// any entry.Entry is materialized, so Lookup and Glob can work without
// re-walking the directory.
type indexedEntry struct {
	name             string
	method           entry.CompressionMethod
	compressedSize   uint64
	uncompressedSize uint64
	crc32            uint32
	localHeaderOff   int64
}

// Archive is an opened, directory-driven ZIP view over a random-access byte
// source. Its methods share src's seek position and the header cache without
// locking, so it is not safe for concurrent use. Per spec.md §4.3 only one
// entry.Entry produced by this Archive may be read from at a time: producing
// the next one (via Entries, Lookup or Glob) invalidates the previous one's
// read cursor.
type Archive struct {
	src    bytesource.ReadSeeker
	log    *slog.Logger
	cache  *headercache.Cache
	maxLen int

	entries []indexedEntry
	byName  map[uint64]int // xxhash(name) -> index into entries, last writer wins

	mu     sync.Mutex
	nextID uint64
	liveID uint64
}

// Option configures Open.
type Option func(*Archive)

// WithLogger attaches a diagnostic sink. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Archive) { a.log = l }
}

// WithCacheSize bounds how many local header blocks Entries/Lookup/Glob keep
// warm. Zero disables the cache.
func WithCacheSize(n int) Option {
	return func(a *Archive) { a.cache = headercache.New(n) }
}

// WithMaxNameLen bounds how long a single name may be before an entry is
// skipped with a diagnostic instead of indexed. Defaults to 64 KiB.
func WithMaxNameLen(n int) Option {
	return func(a *Archive) { a.maxLen = n }
}

// Open locates the end-of-central-directory record and indexes every member
// named by the central directory. It requires src to support Seek; callers
// whose source cannot report its own length (bytesource.StreamLen returns
// false) should use the push package instead, per spec.md §4.2.
func Open(src bytesource.ReadSeeker, opts ...Option) (*Archive, error) {
	a := &Archive{
		src:    src,
		log:    slog.Default(),
		cache:  headercache.New(128),
		maxLen: defaultMaxNameLen,
	}
	for _, opt := range opts {
		opt(a)
	}

	size, ok := bytesource.StreamLen(src)
	if !ok {
		return nil, fmt.Errorf("central: %w: source length not determinable", zerr.ErrInvalidStream)
	}

	eocdOffset, eocd, err := findEOCD(a.src, size)
	if err != nil {
		return nil, err
	}

	eocdRec, err := record.DecodeEndOfCentralDir(eocd)
	if err != nil {
		return nil, err
	}
	if eocdRec.DiskNumber != 0 || eocdRec.CDStartDisk != 0 {
		return nil, fmt.Errorf("central: %w: multi-disk archives", errors.ErrUnsupported)
	}

	centralOffset := int64(eocdRec.CDOffset)
	centralSize := int64(eocdRec.CDSize)
	if centralOffset > eocdOffset || centralOffset+centralSize > eocdOffset {
		return nil, fmt.Errorf("central: %w: central directory extends past EOCD", zerr.ErrInvalidCentralDirEnd)
	}

	dir := make([]byte, eocdOffset-centralOffset)
	if _, err := readAt(a.src, dir, centralOffset); err != nil {
		return nil, fmt.Errorf("central: reading central directory: %w", err)
	}

	a.byName = make(map[uint64]int)
	walked := 0
	for len(dir) > 0 {
		if record.TrySignature(dir) != record.KindCentralFileHeader {
			break
		}
		hdr, err := record.DecodeCentralFileHeader(dir)
		if err != nil {
			a.log.Warn("central: stopping directory walk on malformed header", "entry_index", walked, "err", err)
			break
		}
		total := hdr.TotalLen()
		if total > int64(len(dir)) {
			a.log.Warn("central: truncated trailing entry, stopping", "entry_index", walked)
			break
		}

		nameStart := record.CentralFileHeaderSize
		nameEnd := nameStart + int(hdr.NameLen)
		name := string(dir[nameStart:nameEnd])

		if hdr.DiskNumberStart != 0 {
			a.log.Warn("central: skipping entry on a different disk", "name", name, "disk", hdr.DiskNumberStart)
			dir = dir[total:]
			walked++
			continue
		}

		if len(name) > a.maxLen {
			a.log.Warn("central: name exceeds bound, skipping entry", "len", len(name), "max", a.maxLen)
			dir = dir[total:]
			walked++
			continue
		}

		idx := indexedEntry{
			name:             name,
			method:           entry.CompressionMethodFromRaw(hdr.CompressionMethod),
			compressedSize:   uint64(hdr.CompressedSize),
			uncompressedSize: uint64(hdr.UncompressedSize),
			crc32:            hdr.CRC32,
			localHeaderOff:   int64(hdr.LocalHeaderOffset),
		}
		a.entries = append(a.entries, idx)
		a.byName[xxhash.Sum64String(name)] = len(a.entries) - 1

		dir = dir[total:]
		walked++
	}

	return a, nil
}

// findEOCD scans backward from the end of src looking for a signature whose
// declared comment length matches how far back it was found, per spec.md
// §4.4 and §9. It tries the shortest comment interpretation first, so among
// several candidate signatures it returns the one closest to the end of the
// stream — tolerating ZIP-signature-shaped bytes earlier in a comment.
func findEOCD(src bytesource.ReadSeeker, size int64) (int64, []byte, error) {
	if size < int64(record.EndOfCentralDirSize) {
		return 0, nil, zerr.ErrInvalidCentralDirEnd
	}
	cmtMax := int(min(maxCommentLen, size-int64(record.EndOfCentralDirSize)))

	window := int64(record.EndOfCentralDirSize + cmtMax)
	buf := make([]byte, window)
	if _, err := readAt(src, buf, size-window); err != nil {
		return 0, nil, fmt.Errorf("central: reading EOCD search window: %w", err)
	}
	atNeg := func(off int) byte { return buf[len(buf)-1-off] }

	for cmtSize := 0; cmtSize <= cmtMax; cmtSize++ {
		if cmtSize > 0 {
			ch := atNeg(cmtSize - 1)
			if ch < 32 && ch != '\t' && ch != '\n' && ch != '\r' {
				return 0, nil, zerr.ErrInvalidCentralDirEnd
			}
		}
		if atNeg(cmtSize) != byte(cmtSize>>8) || atNeg(cmtSize+1) != byte(cmtSize) {
			continue
		}
		if atNeg(cmtSize+21) == 'P' && atNeg(cmtSize+20) == 'K' &&
			atNeg(cmtSize+19) == 5 && atNeg(cmtSize+18) == 6 {
			total := record.EndOfCentralDirSize + cmtSize
			rec := buf[len(buf)-total:]
			return size - int64(total), rec, nil
		}
	}
	return 0, nil, zerr.ErrInvalidCentralDirEnd
}

// readAt seeks src to off and reads len(p) bytes, looping on short reads.
func readAt(src bytesource.ReadSeeker, p []byte, off int64) (int, error) {
	if _, err := src.Seek(off, 0); err != nil {
		return 0, err
	}
	return bytesource.ReadExact(src, p)
}

// localPayloadOrigin reads the local file header at loc to learn where its
// payload actually begins: name and extra field lengths in the local header
// are not guaranteed to match the central directory's, so the offset cannot
// be derived from the central record alone (spec.md §4.4, step 3).
func (a *Archive) localPayloadOrigin(loc int64) (int64, error) {
	if cached, ok := a.cache.Get(loc); ok {
		return decodeLocalHeaderOrigin(loc, cached)
	}
	buf := make([]byte, record.LocalFileHeaderSize)
	if _, err := readAt(a.src, buf, loc); err != nil {
		return 0, fmt.Errorf("central: reading local file header: %w", err)
	}
	a.cache.Put(loc, buf)
	return decodeLocalHeaderOrigin(loc, buf)
}

func decodeLocalHeaderOrigin(loc int64, buf []byte) (int64, error) {
	hdr, err := record.DecodeLocalFileHeader(buf)
	if err != nil {
		return 0, err
	}
	return loc + hdr.TotalLen(), nil
}

// Entries walks the indexed central directory in file order, stopping at the
// first entry whose local header cannot be read or decoded. Each yielded
// *entry.Entry invalidates the previous one: reading from a stale Entry
// after advancing the iterator returns zerr.ErrInvalidStream (spec.md §4.3).
func (a *Archive) Entries() iter.Seq[*entry.Entry] {
	return func(yield func(*entry.Entry) bool) {
		for i := range a.entries {
			e, err := a.materialize(i)
			if err != nil {
				a.log.Warn("central: stopping at entry whose local header could not be resolved", "name", a.entries[i].name, "err", err)
				return
			}
			if !yield(e) {
				return
			}
		}
	}
}

// Lookup finds the entry with the given exact name, per spec.md §4.4's
// name-indexed lookup. If the central directory named the same path twice,
// the later entry wins, matching how a real unzip implementation resolves
// overwritten members.
func (a *Archive) Lookup(name string) (*entry.Entry, bool) {
	idx, ok := a.byName[xxhash.Sum64String(name)]
	if !ok || a.entries[idx].name != name {
		return nil, false
	}
	e, err := a.materialize(idx)
	if err != nil {
		a.log.Warn("central: lookup hit but local header unresolved", "name", name, "err", err)
		return nil, false
	}
	return e, true
}

// Glob yields every entry whose name matches pattern, using doublestar's
// glob syntax (spec.md §4.4 enrichment).
func (a *Archive) Glob(pattern string) iter.Seq[*entry.Entry] {
	return func(yield func(*entry.Entry) bool) {
		for i := range a.entries {
			ok, err := doublestar.Match(pattern, a.entries[i].name)
			if err != nil || !ok {
				continue
			}
			e, err := a.materialize(i)
			if err != nil {
				a.log.Warn("central: glob match skipped, local header unresolved", "name", a.entries[i].name, "err", err)
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// materialize resolves entry i's payload origin and mints a fresh
// entry.Entry bound to a new liveness id, invalidating whatever entry was
// previously live.
func (a *Archive) materialize(i int) (*entry.Entry, error) {
	ie := a.entries[i]
	origin, err := a.localPayloadOrigin(ie.localHeaderOff)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.nextID++
	id := a.nextID
	a.liveID = id
	a.mu.Unlock()

	return entry.New(ie.name, ie.method, ie.compressedSize, ie.uncompressedSize, ie.crc32, a, id, origin), nil
}

// ReadAt implements entry.Source: it rejects reads from any entry other
// than the most recently materialized one, then seeks the shared source and
// performs a single read (spec.md §4.3).
func (a *Archive) ReadAt(id uint64, p []byte, off int64) (int, error) {
	a.mu.Lock()
	live := a.liveID == id
	a.mu.Unlock()
	if !live {
		return 0, zerr.ErrInvalidStream
	}

	if _, err := a.src.Seek(off, 0); err != nil {
		return 0, err
	}
	return a.src.Read(p)
}

// Len reports how many members the central directory named.
func (a *Archive) Len() int { return len(a.entries) }
