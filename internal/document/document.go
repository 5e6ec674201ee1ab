// Package document provides positioned, read-only access to a text file.
//
// All offsets are byte offsets into the file. Reads on a closed document
// return empty results instead of errors, so a caller racing a close
// simply sees end of file.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"
)

// scanBlock is the buffer size used by line scans.
const scanBlock = 512

// ErrFileAccess is returned when a document cannot be opened or stat'ed.
var ErrFileAccess = errors.New("file access error")

// Document is an open text file.
type Document struct {
	mu   sync.RWMutex
	path string
	file *os.File
	size int64
}

// Open opens the file at path for positioned reads.
func Open(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileAccess, err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileAccess, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrFileAccess, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileAccess, abs)
	}

	return &Document{
		path: abs,
		file: f,
		size: info.Size(),
	}, nil
}

// Path returns the absolute path the document was opened with.
func (d *Document) Path() string {
	return d.path
}

// Size returns the byte size recorded when the document was opened.
func (d *Document) Size() int64 {
	return d.size
}

// IsOpen reports whether the document still holds its file handle.
func (d *Document) IsOpen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.file != nil
}

// Close releases the file handle. Closing twice is a no-op.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// ReadChunk returns up to n bytes starting at pos. The result is shorter
// near end of file and empty at or past it. When the read stops before
// end of file, a trailing incomplete UTF-8 sequence is dropped so the
// next read can start on a rune boundary.
func (d *Document) ReadChunk(pos, n int64) string {
	if n <= 0 {
		return ""
	}
	end := pos + n
	if end > d.size {
		end = d.size
	}

	b := d.readRange(pos, end)
	if end < d.size {
		b = trimPartialRune(b)
	}
	return string(b)
}

// ReadBetween returns the bytes in [start, end), clamped to the file size.
func (d *Document) ReadBetween(start, end int64) string {
	if end > d.size {
		end = d.size
	}
	return string(d.readRange(start, end))
}

// LineStartBefore returns the offset of the first byte of the line that
// contains pos. It scans backward from pos, so the cost is proportional
// to the distance to the previous newline.
func (d *Document) LineStartBefore(pos int64) int64 {
	pos = d.clamp(pos)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.file == nil {
		return 0
	}

	buf := make([]byte, scanBlock)
	for pos > 0 {
		start := pos - scanBlock
		if start < 0 {
			start = 0
		}
		chunk := buf[:pos-start]
		if _, err := d.file.ReadAt(chunk, start); err != nil && !errors.Is(err, io.EOF) {
			return 0
		}
		if i := bytes.LastIndexByte(chunk, '\n'); i >= 0 {
			return start + int64(i) + 1
		}
		pos = start
	}
	return 0
}

// LineAt returns the full line containing pos, including its newline.
func (d *Document) LineAt(pos int64) string {
	start := d.LineStartBefore(pos)

	var line []byte
	for off := start; off < d.size; off += scanBlock {
		chunk := d.readRange(off, min(off+scanBlock, d.size))
		if len(chunk) == 0 {
			break
		}
		if i := bytes.IndexByte(chunk, '\n'); i >= 0 {
			return string(append(line, chunk[:i+1]...))
		}
		line = append(line, chunk...)
	}
	return string(line)
}

// LineNumberAt returns the 1-based line number of pos, or 0 when pos is
// negative or the document is closed.
func (d *Document) LineNumberAt(pos int64) int {
	if pos < 0 || !d.IsOpen() {
		return 0
	}
	pos = d.clamp(pos)

	lines := 1
	for off := int64(0); off < pos; off += scanBlock {
		chunk := d.readRange(off, min(off+scanBlock, pos))
		lines += bytes.Count(chunk, []byte{'\n'})
	}
	return lines
}

// ContextAround returns the text within radius bytes on either side of
// pos, and pos relative to the start of that text.
func (d *Document) ContextAround(pos, radius int64) (string, int64) {
	if !d.IsOpen() {
		return "", 0
	}
	pos = d.clamp(pos)
	if radius < 0 {
		radius = 0
	}

	start := max(pos-radius, 0)
	end := min(pos+radius, d.size)
	return string(d.readRange(start, end)), pos - start
}

func (d *Document) clamp(pos int64) int64 {
	return min(max(pos, 0), d.size)
}

// readRange reads [start, end) or returns nil for an empty or invalid range.
func (d *Document) readRange(start, end int64) []byte {
	if start < 0 || start >= end || start >= d.size {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.file == nil {
		return nil
	}

	buf := make([]byte, end-start)
	n, err := d.file.ReadAt(buf, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil
	}
	return buf[:n]
}

// trimPartialRune drops an incomplete UTF-8 sequence from the end of b.
// A buffer that is nothing but a partial sequence is returned unchanged.
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) && i > 0 {
				return b[:i]
			}
			return b
		}
	}
	return b
}
