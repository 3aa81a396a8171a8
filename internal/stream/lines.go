package stream

import "bytes"

// LineDecoder splits an incoming byte stream into complete, newline-terminated lines. Bytes after the last
// newline of a chunk are carried over to the next one, so a line (or a multi-byte character) split across
// chunks is only decoded once all of it has arrived.
type LineDecoder struct {
	buf []byte

	flushRemainder bool
}

// NewLineDecoder creates a LineDecoder. If flushRemainder is true, Close returns an unterminated trailing
// line instead of discarding it.
func NewLineDecoder(flushRemainder bool) *LineDecoder {
	return &LineDecoder{flushRemainder: flushRemainder}
}

// Feed appends chunk to the pending bytes and returns every line completed by it, in order, without the
// terminating "\n" or "\r\n".
func (d *LineDecoder) Feed(chunk []byte) []string {
	d.buf = append(d.buf, chunk...)

	var lines []string
	start := 0
	for {
		i := bytes.IndexByte(d.buf[start:], '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimSuffix(d.buf[start:start+i], []byte("\r"))))
		start += i + 1
	}

	// Keep only the remainder at the front of the buffer, so the backing array doesn't grow with the
	// length of the whole stream.
	n := copy(d.buf, d.buf[start:])
	d.buf = d.buf[:n]

	return lines
}

// Close ends the stream. An unterminated remainder is dropped, unless the decoder was created with
// flushRemainder, in which case it is returned with ok set to true.
func (d *LineDecoder) Close() (line string, ok bool) {
	defer func() { d.buf = d.buf[:0] }()

	if !d.flushRemainder || len(d.buf) == 0 {
		return "", false
	}
	return string(bytes.TrimSuffix(d.buf, []byte("\r"))), true
}

// Pending returns the number of buffered bytes that don't form a complete line yet.
func (d *LineDecoder) Pending() int {
	return len(d.buf)
}
