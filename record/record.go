// Package record defines the three fixed ZIP record layouts and decodes
// them field-by-field with encoding/binary, the way internal/zip/zip.go in
// the teacher repo reads the central directory straight out of a byte slice
// rather than by casting a struct over it. No heap allocation, no panics:
// every decode either succeeds or returns a zerr sentinel.
package record

import (
	"encoding/binary"

	"github.com/finchwright/zipcore/zerr"
)

// Fixed sizes of the three record prefixes, signature included.
const (
	LocalFileHeaderSize   = 30
	CentralFileHeaderSize = 46
	EndOfCentralDirSize   = 22
)

const (
	localFileHeaderSignature   = 0x04034b50
	centralFileHeaderSignature = 0x02014b50
	endOfCentralDirSignature   = 0x06054b50
)

// Kind identifies which record a 4-byte signature prefix belongs to.
type Kind int

const (
	KindInvalidSignature Kind = iota
	KindDataNotEnough
	KindLocalFileHeader
	KindCentralFileHeader
	KindEndOfCentralDir
)

// TrySignature examines the first four bytes of b and reports which record
// kind they introduce, without decoding anything further.
func TrySignature(b []byte) Kind {
	if len(b) < 4 {
		return KindDataNotEnough
	}
	switch binary.LittleEndian.Uint32(b) {
	case localFileHeaderSignature:
		return KindLocalFileHeader
	case centralFileHeaderSignature:
		return KindCentralFileHeader
	case endOfCentralDirSignature:
		return KindEndOfCentralDir
	default:
		return KindInvalidSignature
	}
}

// LocalFileHeader is the 30-byte record immediately preceding an entry's
// name, extra field, and payload.
type LocalFileHeader struct {
	VersionNeeded     uint16
	Flags             uint16
	CompressionMethod uint16
	LastModTime       uint16
	LastModDate       uint16
	CRC32             uint32
	CompressedSize    uint32
	UncompressedSize  uint32
	NameLen           uint16
	ExtraLen          uint16
}

// DecodeLocalFileHeader validates the signature and decodes the fixed
// 30-byte prefix. b must be at least LocalFileHeaderSize bytes.
func DecodeLocalFileHeader(b []byte) (LocalFileHeader, error) {
	if len(b) < LocalFileHeaderSize {
		return LocalFileHeader{}, zerr.ErrDataNotEnough
	}
	if binary.LittleEndian.Uint32(b) != localFileHeaderSignature {
		return LocalFileHeader{}, zerr.ErrInvalidSignature
	}
	return LocalFileHeader{
		VersionNeeded:     binary.LittleEndian.Uint16(b[4:]),
		Flags:             binary.LittleEndian.Uint16(b[6:]),
		CompressionMethod: binary.LittleEndian.Uint16(b[8:]),
		LastModTime:       binary.LittleEndian.Uint16(b[10:]),
		LastModDate:       binary.LittleEndian.Uint16(b[12:]),
		CRC32:             binary.LittleEndian.Uint32(b[14:]),
		CompressedSize:    binary.LittleEndian.Uint32(b[18:]),
		UncompressedSize:  binary.LittleEndian.Uint32(b[22:]),
		NameLen:           binary.LittleEndian.Uint16(b[26:]),
		ExtraLen:          binary.LittleEndian.Uint16(b[28:]),
	}, nil
}

// TotalLen is LocalFileHeaderSize plus the variable-length name and extra
// field that immediately follow it.
func (h LocalFileHeader) TotalLen() int64 {
	return LocalFileHeaderSize + int64(h.NameLen) + int64(h.ExtraLen)
}

// CentralFileHeader is the 46-byte per-entry directory record.
type CentralFileHeader struct {
	VersionMadeBy      uint16
	VersionNeeded      uint16
	Flags              uint16
	CompressionMethod  uint16
	LastModTime        uint16
	LastModDate        uint16
	CRC32              uint32
	CompressedSize     uint32
	UncompressedSize   uint32
	NameLen            uint16
	ExtraLen           uint16
	CommentLen         uint16
	DiskNumberStart    uint16
	InternalAttributes uint16
	ExternalAttributes uint32
	LocalHeaderOffset  uint32
}

// DecodeCentralFileHeader validates the signature and decodes the fixed
// 46-byte prefix. b must be at least CentralFileHeaderSize bytes.
func DecodeCentralFileHeader(b []byte) (CentralFileHeader, error) {
	if len(b) < CentralFileHeaderSize {
		return CentralFileHeader{}, zerr.ErrDataNotEnough
	}
	if binary.LittleEndian.Uint32(b) != centralFileHeaderSignature {
		return CentralFileHeader{}, zerr.ErrInvalidSignature
	}
	return CentralFileHeader{
		VersionMadeBy:      binary.LittleEndian.Uint16(b[4:]),
		VersionNeeded:      binary.LittleEndian.Uint16(b[6:]),
		Flags:              binary.LittleEndian.Uint16(b[8:]),
		CompressionMethod:  binary.LittleEndian.Uint16(b[10:]),
		LastModTime:        binary.LittleEndian.Uint16(b[12:]),
		LastModDate:        binary.LittleEndian.Uint16(b[14:]),
		CRC32:              binary.LittleEndian.Uint32(b[16:]),
		CompressedSize:     binary.LittleEndian.Uint32(b[20:]),
		UncompressedSize:   binary.LittleEndian.Uint32(b[24:]),
		NameLen:            binary.LittleEndian.Uint16(b[28:]),
		ExtraLen:           binary.LittleEndian.Uint16(b[30:]),
		CommentLen:         binary.LittleEndian.Uint16(b[32:]),
		DiskNumberStart:    binary.LittleEndian.Uint16(b[34:]),
		InternalAttributes: binary.LittleEndian.Uint16(b[36:]),
		ExternalAttributes: binary.LittleEndian.Uint32(b[38:]),
		LocalHeaderOffset:  binary.LittleEndian.Uint32(b[42:]),
	}, nil
}

// TotalLen is CentralFileHeaderSize plus name, extra field, and comment.
func (h CentralFileHeader) TotalLen() int64 {
	return CentralFileHeaderSize + int64(h.NameLen) + int64(h.ExtraLen) + int64(h.CommentLen)
}

// EndOfCentralDir is the 22-byte archive terminator record.
type EndOfCentralDir struct {
	DiskNumber      uint16
	CDStartDisk     uint16
	EntriesThisDisk uint16
	EntriesTotal    uint16
	CDSize          uint32
	CDOffset        uint32
	CommentLen      uint16
}

// DecodeEndOfCentralDir validates the signature and decodes the fixed
// 22-byte prefix. b must be at least EndOfCentralDirSize bytes.
func DecodeEndOfCentralDir(b []byte) (EndOfCentralDir, error) {
	if len(b) < EndOfCentralDirSize {
		return EndOfCentralDir{}, zerr.ErrDataNotEnough
	}
	if binary.LittleEndian.Uint32(b) != endOfCentralDirSignature {
		return EndOfCentralDir{}, zerr.ErrInvalidSignature
	}
	return EndOfCentralDir{
		DiskNumber:      binary.LittleEndian.Uint16(b[4:]),
		CDStartDisk:     binary.LittleEndian.Uint16(b[6:]),
		EntriesThisDisk: binary.LittleEndian.Uint16(b[8:]),
		EntriesTotal:    binary.LittleEndian.Uint16(b[10:]),
		CDSize:          binary.LittleEndian.Uint32(b[12:]),
		CDOffset:        binary.LittleEndian.Uint32(b[16:]),
		CommentLen:      binary.LittleEndian.Uint16(b[20:]),
	}, nil
}
