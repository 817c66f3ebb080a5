// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/nexora-labs/nexora-tui/internal/transport"
)

// bufSize is the scratch buffer handed to the transformer.
const bufSize = 4096

// =============================================================================
// DECODER
// =============================================================================

// Decoder decodes a UTF-8 byte stream delivered in chunks.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	t       transform.Transformer
	pending []byte
	buf     []byte
}

// NewDecoder creates a decoder with no pending bytes.
func NewDecoder() *Decoder {
	return &Decoder{
		t:   unicode.UTF8.NewDecoder(),
		buf: make([]byte, bufSize),
	}
}

// Decode returns the text of every complete character available after
// appending chunk to the pending bytes. An incomplete trailing sequence is
// kept for the next call, so a chunk may decode to "".
func (d *Decoder) Decode(chunk []byte) string {
	return d.run(chunk, false)
}

// Flush ends the stream. Any incomplete sequence still pending is emitted
// as U+FFFD.
func (d *Decoder) Flush() string {
	out := d.run(nil, true)
	d.t.Reset()
	return out
}

// Pending reports how many bytes are waiting for the rest of a character.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

func (d *Decoder) run(chunk []byte, atEOF bool) string {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}

	var out strings.Builder
	for {
		nDst, nSrc, err := d.t.Transform(d.buf, src, atEOF)
		out.Write(d.buf[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			return out.String()
		case errors.Is(err, transform.ErrShortDst):
			continue
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
			return out.String()
		default:
			// not produced by the UTF-8 decoder
			out.WriteRune(utf8.RuneError)
			return out.String()
		}
	}
}

// =============================================================================
// READER
// =============================================================================

// Reader yields decoded fragments from a transport.ByteStream.
//
// Next returns one fragment per chunk in arrival order (possibly ""), then
// the flushed remainder if there is one, then io.EOF. Once Next has returned
// an error every later call returns the same error.
type Reader struct {
	src     transport.ByteStream
	dec     *Decoder
	err     error
	flushed bool
}

// NewReader creates a Reader over src.
func NewReader(src transport.ByteStream) *Reader {
	return &Reader{src: src, dec: NewDecoder()}
}

// Next returns the next fragment.
func (r *Reader) Next() (string, error) {
	if r.err != nil {
		return "", r.err
	}

	chunk, err := r.src.Next()
	if len(chunk) > 0 && err == nil {
		return r.dec.Decode(chunk), nil
	}
	if err == nil {
		return "", nil
	}

	if !errors.Is(err, io.EOF) {
		r.err = err
		return "", err
	}

	if !r.flushed {
		r.flushed = true
		if tail := r.dec.Decode(chunk) + r.dec.Flush(); tail != "" {
			return tail, nil
		}
	}
	r.err = io.EOF
	return "", io.EOF
}

// Close closes the underlying stream.
func (r *Reader) Close() error {
	return r.src.Close()
}
