// Package push is the incremental, no-random-access parsing engine (spec.md
// §4.5): callers feed it arbitrarily chunked bytes and it drives a callback
// with framing events, never buffering more than one fixed-size record plus
// one name at a time.
//
// The state machine is ported from original_source/src/lib.rs's
// PassiveParser.feed_data, the Rust reference implementation this spec was
// distilled from. Two deliberate changes from that original are documented
// on NameTooLong handling and on signature resynchronization below.
package push

import (
	"github.com/finchwright/zipcore/entry"
	"github.com/finchwright/zipcore/record"
	"github.com/finchwright/zipcore/zerr"
)

// Kind identifies which union member of Event is populated.
type Kind int

const (
	KindLocalFileHeader Kind = iota
	KindLocalFileData
	KindLocalFileEnd
	KindParsingError
	KindUserCancel
)

// LocalFileInfo is the local file header's decoded fields, delivered once
// per entry at KindLocalFileHeader, before any KindLocalFileData events for
// that entry.
type LocalFileInfo struct {
	Name             string
	Method           entry.CompressionMethod
	CompressedSize   uint64
	UncompressedSize uint64
}

// Event is pushed to the callback passed to Feed. Only the fields relevant
// to Kind are populated.
type Event struct {
	Kind      Kind
	FileIndex int

	Header *LocalFileInfo // KindLocalFileHeader

	DataOffset int    // KindLocalFileData: offset within this entry's payload
	Data       []byte // KindLocalFileData: valid only for the duration of the callback

	Err error // KindParsingError

	ConsumedBeforeCancel int // KindUserCancel
}

type headerKind int

const (
	headerSignature headerKind = iota
	headerLocalFile
	headerCentralFile
	headerCentralDirEnd
)

type state int

const (
	stateRecvHeader state = iota
	stateRecvLocalFileName
	stateRecvLocalFileExtraField
	stateRecvLocalFileData
	stateRecvCentralFileHeader
	stateRecvCentralDirEnd
)

// Parser is a resumable, byte-fed ZIP framer. It allocates its working
// buffers once, at construction, and never grows them afterward: a
// file name longer than MaxNameLen is truncated rather than causing
// unbounded allocation.
type Parser struct {
	maxNameLen int
	nameBuf    []byte

	headerBuf    [record.CentralFileHeaderSize]byte
	headerBufLen int
	curHeader    headerKind
	curHeaderLen int

	state state

	localIndex   int
	centralIndex int

	nameLen int
	nameIdx int

	extraLen int
	extraIdx int

	dataLen int
	dataIdx int

	centralHeaderLen int
	centralHeaderIdx int

	eocdLen int
	eocdIdx int

	curInfo      LocalFileInfo
	curInfoReady bool
}

// New constructs a Parser whose name buffer holds up to maxNameLen bytes.
// A declared name longer than this is reported via a ParsingError event and
// truncated, not overflowed.
func New(maxNameLen int) *Parser {
	p := &Parser{maxNameLen: maxNameLen, nameBuf: make([]byte, maxNameLen)}
	p.Reset()
	return p
}

// Reset returns the parser to its initial state, ready to parse a new
// archive from the beginning. The name buffer is reused, not reallocated.
func (p *Parser) Reset() {
	p.headerBufLen = 0
	p.curHeader = headerSignature
	p.curHeaderLen = 4
	p.state = stateRecvHeader

	p.localIndex = 0
	p.centralIndex = 0

	p.nameLen, p.nameIdx = 0, 0
	p.extraLen, p.extraIdx = 0, 0
	p.dataLen, p.dataIdx = 0, 0
	p.centralHeaderLen, p.centralHeaderIdx = 0, 0
	p.eocdLen, p.eocdIdx = 0, 0

	p.curInfo = LocalFileInfo{}
	p.curInfoReady = false
}

// Feed drives the state machine with data, calling onEvent for every
// framing event produced along the way. onEvent returns false to cancel
// mid-stream; Feed then emits one final KindUserCancel event and returns
// how many bytes of data were consumed before the cancellation. On a normal
// full pass it returns len(data).
func (p *Parser) Feed(data []byte, onEvent func(Event) bool) int {
	consumed := 0
	for consumed < len(data) {
		cont := true

		switch p.state {
		case stateRecvHeader:
			need := p.curHeaderLen - p.headerBufLen
			take := min(need, len(data)-consumed)
			copy(p.headerBuf[p.headerBufLen:], data[consumed:consumed+take])
			p.headerBufLen += take
			consumed += take
			if p.headerBufLen < p.curHeaderLen {
				continue
			}
			cont = p.headerComplete(onEvent)

		case stateRecvLocalFileName:
			var n int
			cont, n = p.recvName(data[consumed:], onEvent)
			consumed += n

		case stateRecvLocalFileExtraField:
			var n int
			cont, n = p.recvExtra(data[consumed:], onEvent)
			consumed += n

		case stateRecvLocalFileData:
			var n int
			cont, n = p.recvData(data[consumed:], onEvent)
			consumed += n

		case stateRecvCentralFileHeader:
			if p.centralHeaderIdx >= p.centralHeaderLen {
				p.centralIndex++
				p.centralHeaderIdx, p.centralHeaderLen = 0, 0
				p.toSignature()
			} else {
				take := min(p.centralHeaderLen-p.centralHeaderIdx, len(data)-consumed)
				p.centralHeaderIdx += take
				consumed += take
			}

		case stateRecvCentralDirEnd:
			if p.eocdIdx >= p.eocdLen {
				p.eocdIdx, p.eocdLen = 0, 0
				p.toSignature()
			} else {
				take := min(p.eocdLen-p.eocdIdx, len(data)-consumed)
				p.eocdIdx += take
				consumed += take
			}
		}

		if !cont {
			onEvent(Event{Kind: KindUserCancel, FileIndex: -1, ConsumedBeforeCancel: consumed})
			return consumed
		}
	}
	return consumed
}

func (p *Parser) toSignature() {
	p.curHeader = headerSignature
	p.curHeaderLen = 4
	p.headerBufLen = 0
	p.state = stateRecvHeader
}

// headerComplete runs once the fixed-size record named by curHeader has
// fully arrived in headerBuf.
func (p *Parser) headerComplete(onEvent func(Event) bool) bool {
	cont := true
	switch p.curHeader {
	case headerSignature:
		// The signature bytes already sitting in headerBuf are the first
		// four bytes of the full record: keep them and read only the
		// remainder, rather than re-reading the whole record from zero.
		switch record.TrySignature(p.headerBuf[:4]) {
		case record.KindLocalFileHeader:
			p.curHeader, p.curHeaderLen = headerLocalFile, record.LocalFileHeaderSize
		case record.KindCentralFileHeader:
			p.curHeader, p.curHeaderLen = headerCentralFile, record.CentralFileHeaderSize
		case record.KindEndOfCentralDir:
			p.curHeader, p.curHeaderLen = headerCentralDirEnd, record.EndOfCentralDirSize
		default:
			// Resynchronize by discarding exactly one byte, not the whole
			// 4-byte window: a false-signature byte inside entry padding
			// or a misaligned stream should cost one byte, not three
			// already-good ones. The original Rust parser discarded all
			// four and restarted the signature scan from scratch.
			cont = onEvent(Event{Kind: KindParsingError, FileIndex: p.localIndex, Err: zerr.ErrInvalidSignature})
			copy(p.headerBuf[:3], p.headerBuf[1:4])
			p.headerBufLen = 3
		}

	case headerLocalFile:
		hdr, err := record.DecodeLocalFileHeader(p.headerBuf[:record.LocalFileHeaderSize])
		if err != nil {
			cont = onEvent(Event{Kind: KindParsingError, FileIndex: p.localIndex, Err: zerr.ErrInvalidLocalFileHeader})
			p.toSignature()
			break
		}
		p.nameIdx, p.nameLen = 0, int(hdr.NameLen)
		p.extraIdx, p.extraLen = 0, int(hdr.ExtraLen)
		p.dataIdx, p.dataLen = 0, int(hdr.CompressedSize)
		p.curInfo = LocalFileInfo{
			Method:           entry.CompressionMethodFromRaw(hdr.CompressionMethod),
			CompressedSize:   uint64(hdr.CompressedSize),
			UncompressedSize: uint64(hdr.UncompressedSize),
		}
		p.curInfoReady = true
		p.state = stateRecvLocalFileName

	case headerCentralFile:
		hdr, err := record.DecodeCentralFileHeader(p.headerBuf[:record.CentralFileHeaderSize])
		if err != nil {
			cont = onEvent(Event{Kind: KindParsingError, FileIndex: p.localIndex, Err: zerr.ErrInvalidCentralFileHeader})
			p.centralHeaderLen, p.centralHeaderIdx = 0, 0
		} else {
			p.centralHeaderLen = int(hdr.NameLen) + int(hdr.ExtraLen) + int(hdr.CommentLen)
			p.centralHeaderIdx = 0
		}
		p.state = stateRecvCentralFileHeader

	case headerCentralDirEnd:
		hdr, err := record.DecodeEndOfCentralDir(p.headerBuf[:record.EndOfCentralDirSize])
		if err != nil {
			cont = onEvent(Event{Kind: KindParsingError, FileIndex: p.localIndex, Err: zerr.ErrInvalidCentralDirEnd})
			p.eocdLen, p.eocdIdx = 0, 0
		} else {
			p.eocdLen = int(hdr.CommentLen)
			p.eocdIdx = 0
		}
		p.state = stateRecvCentralDirEnd
	}
	return cont
}

// recvName copies the declared name into nameBuf, up to maxNameLen. Past
// that bound, bytes are still consumed (to keep the record framing
// aligned) but not written: the original Rust implementation instead
// indexed its fixed-size array past its bound here, which panics once
// file_name_len exceeds N. Truncating matches spec.md §8 scenario 4, which
// requires parsing to continue through to LocalFileEnd despite an
// oversized name.
func (p *Parser) recvName(data []byte, onEvent func(Event) bool) (bool, int) {
	consumed := 0
	if !p.curInfoReady {
		if !onEvent(Event{Kind: KindParsingError, FileIndex: p.localIndex, Err: &zerr.HeaderNotReceived{Index: p.localIndex}}) {
			return false, consumed
		}
	}
	if p.nameLen > p.maxNameLen {
		if !onEvent(Event{Kind: KindParsingError, FileIndex: p.localIndex, Err: &zerr.NameTooLong{Index: p.localIndex, Declared: p.nameLen}}) {
			return false, consumed
		}
	}

	if p.nameIdx >= p.nameLen {
		copied := min(p.nameLen, p.maxNameLen)
		p.curInfo.Name = string(p.nameBuf[:copied])
		p.state = stateRecvLocalFileExtraField
		return true, consumed
	}

	take := min(p.nameLen-p.nameIdx, len(data))
	if p.nameIdx < p.maxNameLen {
		copyLen := min(take, p.maxNameLen-p.nameIdx)
		copy(p.nameBuf[p.nameIdx:p.nameIdx+copyLen], data[:copyLen])
	}
	p.nameIdx += take
	consumed += take
	return true, consumed
}

func (p *Parser) recvExtra(data []byte, onEvent func(Event) bool) (bool, int) {
	if p.extraIdx >= p.extraLen {
		hdr := p.curInfo
		cont := onEvent(Event{Kind: KindLocalFileHeader, FileIndex: p.localIndex, Header: &hdr})
		p.state = stateRecvLocalFileData
		return cont, 0
	}
	take := min(p.extraLen-p.extraIdx, len(data))
	p.extraIdx += take
	return true, take
}

func (p *Parser) recvData(data []byte, onEvent func(Event) bool) (bool, int) {
	if p.dataIdx >= p.dataLen {
		cont := onEvent(Event{Kind: KindLocalFileEnd, FileIndex: p.localIndex})
		p.localIndex++
		p.curInfoReady = false
		p.toSignature()
		return cont, 0
	}
	take := min(p.dataLen-p.dataIdx, len(data))
	cont := onEvent(Event{Kind: KindLocalFileData, FileIndex: p.localIndex, DataOffset: p.dataIdx, Data: data[:take]})
	p.dataIdx += take
	return cont, take
}
