// Package stream turns a chunked backend response into newline-delimited
// frames and decodes each frame into a typed event.
package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
)

// defaultReadSize is the chunk size used by Lines when reading a body.
const defaultReadSize = 4 * 1024

// Decoder splits successive chunks into complete lines. It holds the
// trailing partial line of the previous chunk until its newline arrives.
// The zero value is ready to use.
type Decoder struct {
	carry []byte
}

// Feed appends chunk to the carry-over buffer and returns every complete,
// non-blank line it now holds, in order. The unterminated tail is kept for
// the next call.
func (d *Decoder) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	d.carry = append(d.carry, chunk...)

	var lines []string
	for {
		idx := bytes.IndexByte(d.carry, '\n')
		if idx < 0 {
			break
		}
		if line := d.carry[:idx]; !isBlank(line) {
			lines = append(lines, string(line))
		}
		d.carry = d.carry[idx+1:]
	}

	// Compact so a long stream of short lines doesn't pin the old backing array.
	if len(d.carry) == 0 {
		d.carry = nil
	} else if cap(d.carry) > 4*len(d.carry) && cap(d.carry) > defaultReadSize {
		d.carry = append([]byte(nil), d.carry...)
	}
	return lines
}

// Flush returns the buffered partial line at end of stream. ok is false
// when nothing but whitespace was left over.
func (d *Decoder) Flush() (line string, ok bool) {
	rest := d.carry
	d.carry = nil
	if isBlank(rest) {
		return "", false
	}
	return string(rest), true
}

// Pending reports how many bytes are waiting for a newline.
func (d *Decoder) Pending() int {
	return len(d.carry)
}

// Lines reads r chunk by chunk and yields each decoded line. After EOF the
// carry-over buffer is flushed as a final line. A read failure other than
// io.EOF is yielded once, after every line that arrived before it.
func Lines(ctx context.Context, r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var dec Decoder
		buf := make([]byte, defaultReadSize)

		for {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}

			n, readErr := r.Read(buf)
			if n > 0 {
				for _, line := range dec.Feed(buf[:n]) {
					if !yield(line, nil) {
						return
					}
				}
			}

			if readErr == nil {
				continue
			}
			if line, ok := dec.Flush(); ok {
				if !yield(line, nil) {
					return
				}
			}
			if !errors.Is(readErr, io.EOF) {
				yield("", readErr)
			}
			return
		}
	}
}

func isBlank(b []byte) bool {
	return len(bytes.TrimSpace(b)) == 0
}
