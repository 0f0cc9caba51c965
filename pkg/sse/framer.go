package sse

import "bytes"

// LineFramer turns arbitrary byte chunks into complete "\n"-terminated lines.
//
// Bytes after the last "\n" are carried over to the next Push. Splitting is
// done on raw bytes, so a multi-byte UTF-8 sequence cut across two chunks is
// reassembled before any text conversion happens ('\n' never appears inside
// a multi-byte sequence).
type LineFramer struct {
	buf []byte
}

// Push appends chunk to the carry-over buffer and returns every line it
// completes, in order, without the terminating "\n" (and without a single
// trailing "\r", so CRLF input frames like LF input).
func (f *LineFramer) Push(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	f.buf = append(f.buf, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		line := f.buf[:i]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		lines = append(lines, string(line))
		f.buf = f.buf[i+1:]
	}

	// Compact so the backing array does not grow without bound.
	if len(f.buf) == 0 {
		f.buf = f.buf[:0:0]
	} else if cap(f.buf) > 4*len(f.buf) && cap(f.buf) > 64*1024 {
		f.buf = append([]byte(nil), f.buf...)
	}

	return lines
}

// Remainder returns the unterminated tail currently buffered. At end of
// stream this is the partial line that is dropped.
func (f *LineFramer) Remainder() []byte {
	return f.buf
}
