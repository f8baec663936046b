package push

import (
	"encoding/binary"
	"hash/crc32"
	"reflect"
	"testing"

	"github.com/finchwright/zipcore/entry"
)

// buildArchive assembles a minimal, valid ZIP archive (local headers, a
// central directory, and an EOCD) as a byte slice, for feeding to Parser
// without needing a real file.
func buildArchive(files map[string]string, order []string) []byte {
	var out []byte
	type central struct {
		name   string
		offset int
		crc    uint32
		size   int
	}
	var centrals []central

	for _, name := range order {
		content := files[name]
		offset := len(out)
		crc := crc32.ChecksumIEEE([]byte(content))

		local := make([]byte, 30)
		binary.LittleEndian.PutUint32(local[0:], 0x04034b50)
		binary.LittleEndian.PutUint32(local[14:], crc)
		binary.LittleEndian.PutUint32(local[18:], uint32(len(content)))
		binary.LittleEndian.PutUint32(local[22:], uint32(len(content)))
		binary.LittleEndian.PutUint16(local[26:], uint16(len(name)))
		out = append(out, local...)
		out = append(out, name...)
		out = append(out, content...)

		centrals = append(centrals, central{name, offset, crc, len(content)})
	}

	cdStart := len(out)
	for _, c := range centrals {
		rec := make([]byte, 46)
		binary.LittleEndian.PutUint32(rec[0:], 0x02014b50)
		binary.LittleEndian.PutUint32(rec[16:], c.crc)
		binary.LittleEndian.PutUint32(rec[20:], uint32(c.size))
		binary.LittleEndian.PutUint32(rec[24:], uint32(c.size))
		binary.LittleEndian.PutUint16(rec[28:], uint16(len(c.name)))
		binary.LittleEndian.PutUint32(rec[42:], uint32(c.offset))
		out = append(out, rec...)
		out = append(out, c.name...)
	}
	cdSize := len(out) - cdStart

	eocd := make([]byte, 22)
	binary.LittleEndian.PutUint32(eocd[0:], 0x06054b50)
	binary.LittleEndian.PutUint16(eocd[8:], uint16(len(centrals)))
	binary.LittleEndian.PutUint16(eocd[10:], uint16(len(centrals)))
	binary.LittleEndian.PutUint32(eocd[12:], uint32(cdSize))
	binary.LittleEndian.PutUint32(eocd[16:], uint32(cdStart))
	out = append(out, eocd...)

	return out
}

type recorded struct {
	kind Kind
	name string
	data string
}

func drive(data []byte, chunk int) []recorded {
	p := New(128)
	var got []recorded
	feedEvent := func(e Event) bool {
		// Data events follow the caller's chunking, so adjacent ones are
		// merged: feeds are compared on event kinds, order and the
		// concatenated payload of each entry.
		if e.Kind == KindLocalFileData && len(got) > 0 && got[len(got)-1].kind == KindLocalFileData {
			got[len(got)-1].data += string(e.Data)
			return true
		}
		r := recorded{kind: e.Kind}
		if e.Header != nil {
			r.name = e.Header.Name
		}
		if e.Data != nil {
			r.data = string(e.Data)
		}
		got = append(got, r)
		return true
	}
	if chunk <= 0 {
		p.Feed(data, feedEvent)
		return got
	}
	for off := 0; off < len(data); off += chunk {
		end := min(off+chunk, len(data))
		p.Feed(data[off:end], feedEvent)
	}
	return got
}

func TestWholeArchiveVsByteAtATime(t *testing.T) {
	data := buildArchive(map[string]string{"a.txt": "hi", "b.txt": "there!"}, []string{"a.txt", "b.txt"})

	whole := drive(data, 0)
	perByte := drive(data, 1)

	if !reflect.DeepEqual(whole, perByte) {
		t.Fatalf("event sequences differ:\nwhole:   %+v\nperByte: %+v", whole, perByte)
	}

	var headers, ends int
	for _, r := range whole {
		switch r.kind {
		case KindLocalFileHeader:
			headers++
		case KindLocalFileEnd:
			ends++
		}
	}
	if headers != 2 || ends != 2 {
		t.Fatalf("headers=%d ends=%d, want 2/2", headers, ends)
	}
}

func TestEmptyArchive(t *testing.T) {
	data := buildArchive(nil, nil)
	events := drive(data, 0)
	for _, e := range events {
		if e.kind == KindLocalFileHeader || e.kind == KindLocalFileEnd {
			t.Fatalf("unexpected file event in empty archive: %+v", e)
		}
	}
}

func TestSingleStoredEntryPayload(t *testing.T) {
	data := buildArchive(map[string]string{"only.bin": "payload-bytes"}, []string{"only.bin"})

	p := New(128)
	var name string
	var method entry.CompressionMethod
	var payload []byte
	p.Feed(data, func(e Event) bool {
		switch e.Kind {
		case KindLocalFileHeader:
			name = e.Header.Name
			method = e.Header.Method
		case KindLocalFileData:
			payload = append(payload, e.Data...)
		}
		return true
	})
	if name != "only.bin" {
		t.Fatalf("name = %q, want only.bin", name)
	}
	if method != entry.Stored {
		t.Fatalf("method = %v, want Stored", method)
	}
	if string(payload) != "payload-bytes" {
		t.Fatalf("payload = %q", payload)
	}
}

func TestNameTooLongTruncatesInsteadOfOverflowing(t *testing.T) {
	longName := ""
	for i := 0; i < 200; i++ {
		longName += "x"
	}
	data := buildArchive(map[string]string{longName: "body"}, []string{longName})

	p := New(128) // maxNameLen smaller than the 200-byte name
	var sawTooLong bool
	var header *LocalFileInfo
	var ended bool
	p.Feed(data, func(e Event) bool {
		switch e.Kind {
		case KindParsingError:
			sawTooLong = true
		case KindLocalFileHeader:
			header = e.Header
		case KindLocalFileEnd:
			ended = true
		}
		return true
	})
	if !sawTooLong {
		t.Fatal("expected a ParsingError event for the oversized name")
	}
	if header == nil || len(header.Name) != 128 {
		t.Fatalf("header = %+v, want name truncated to 128 bytes", header)
	}
	if !ended {
		t.Fatal("expected parsing to continue through to LocalFileEnd despite the oversized name")
	}
}

func TestCancelMidPayloadStopsConsuming(t *testing.T) {
	data := buildArchive(map[string]string{"a.txt": "hello world"}, []string{"a.txt"})

	p := New(128)
	var sawCancel bool
	n := p.Feed(data, func(e Event) bool {
		if e.Kind == KindLocalFileData {
			return false
		}
		if e.Kind == KindUserCancel {
			sawCancel = true
		}
		return true
	})
	if !sawCancel {
		t.Fatal("expected a UserCancel event once the callback returned false")
	}
	// Header, name and the one data slice delivered before cancelling.
	if want := 30 + len("a.txt") + len("hello world"); n != want {
		t.Fatalf("Feed consumed %d bytes, want %d", n, want)
	}
}

func TestGarbageBetweenEntriesResyncsByOneByte(t *testing.T) {
	first := buildArchive(map[string]string{"a.txt": "hi"}, []string{"a.txt"})
	// Splice three garbage bytes between the first entry and a second
	// archive's worth of bytes, none of which spell a valid signature.
	second := buildArchive(map[string]string{"b.txt": "yo"}, []string{"b.txt"})
	data := append(append(append([]byte{}, first...), 0x11, 0x22, 0x33), second...)

	var names []string
	var errCount int
	p := New(128)
	p.Feed(data, func(e Event) bool {
		switch e.Kind {
		case KindLocalFileHeader:
			names = append(names, e.Header.Name)
		case KindParsingError:
			errCount++
		}
		return true
	})
	wantNames := []string{"a.txt", "b.txt"}
	if !reflect.DeepEqual(names, wantNames) {
		t.Fatalf("names = %v, want %v (both entries recovered intact)", names, wantNames)
	}
	// Three garbage bytes, discarded one at a time, cost exactly three
	// failed signature checks before the real one realigns.
	if errCount != 3 {
		t.Fatalf("errCount = %d, want 3 (one InvalidSignature per discarded garbage byte)", errCount)
	}
}
