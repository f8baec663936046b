// Command zipls lists and extracts ZIP archive members using the
// directory-driven engine. When listing, it falls back to the push engine
// if the central directory cannot be opened; the fallback first seeks the
// input back to its start, so it does not work on an unseekable input such
// as a pipe. Extraction has no fallback.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/finchwright/zipcore/bytesource"
	"github.com/finchwright/zipcore/central"
	"github.com/finchwright/zipcore/codec"
	"github.com/finchwright/zipcore/push"
)

func main() {
	var (
		glob      = flag.String("glob", "", "only list names matching this doublestar pattern")
		extract   = flag.String("extract", "", "extract the single named entry to stdout instead of listing")
		cacheSize = flag.Int("cache", 128, "header blocks to keep warm for directory-driven listing")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: zipls [flags] <archive.zip>")
		os.Exit(2)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		slog.Error("open failed", "path", flag.Arg(0), "err", err)
		os.Exit(1)
	}
	defer f.Close()

	src, err := bytesource.NewFileSource(f)
	if err != nil {
		slog.Error("stat failed", "path", flag.Arg(0), "err", err)
		os.Exit(1)
	}

	if *extract != "" {
		if err := extractOne(src, *extract); err != nil {
			slog.Error("extract failed", "name", *extract, "err", err)
			os.Exit(1)
		}
		return
	}

	if err := list(src, *glob, *cacheSize); err != nil {
		slog.Error("list failed", "err", err)
		os.Exit(1)
	}
}

func list(src *bytesource.FileSource, pattern string, cacheSize int) error {
	a, err := central.Open(src, central.WithCacheSize(cacheSize))
	if err != nil {
		slog.Warn("directory-driven open failed, falling back to push parsing", "err", err)
		if _, serr := src.Seek(0, io.SeekStart); serr != nil {
			return serr
		}
		return listPush(src)
	}

	if pattern != "" {
		for e := range a.Glob(pattern) {
			fmt.Printf("%-10s %10d %10d %s\n", e.Method, e.CompressedSize, e.UncompressedSize, e.Name)
		}
		return nil
	}
	for e := range a.Entries() {
		fmt.Printf("%-10s %10d %10d %s\n", e.Method, e.CompressedSize, e.UncompressedSize, e.Name)
	}
	return nil
}

func listPush(src io.Reader) error {
	p := push.New(4096)
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			p.Feed(buf[:n], func(e push.Event) bool {
				if e.Kind == push.KindLocalFileHeader {
					fmt.Printf("%-10s %10d %10d %s\n", e.Header.Method, e.Header.CompressedSize, e.Header.UncompressedSize, e.Header.Name)
				}
				return true
			})
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func extractOne(src *bytesource.FileSource, name string) error {
	a, err := central.Open(src)
	if err != nil {
		return err
	}
	e, ok := a.Lookup(name)
	if !ok {
		return fmt.Errorf("zipls: %s not found", name)
	}
	dr, err := codec.Decompressor(e.Method, io.LimitReader(e, int64(e.CompressedSize)))
	if err != nil {
		return err
	}
	_, err = io.Copy(os.Stdout, dr)
	return err
}
