package protocol

import (
	"encoding/binary"
	"errors"
	"strings"
)

// ErrNeedMoreData reports that the buffered bytes do not yet hold a complete
// frame. Feed more input and call Next again.
var ErrNeedMoreData = errors.New("protocol: need more data")

// ErrMalformed reports that corrupt bytes were found and skipped. The decoder
// has already advanced to the next plausible frame boundary; the caller
// should log and call Next again.
var ErrMalformed = errors.New("protocol: malformed frame")

// DecoderStats counts decoder activity for the session.
type DecoderStats struct {
	Frames         int64
	Resyncs        int64
	BytesDiscarded int64
}

// Decoder incrementally decodes length-prefixed frames from a byte stream.
// A single Feed may contain zero, one, or many frames, or a partial frame;
// decoding is invariant to chunk boundaries.
type Decoder struct {
	buf   []byte
	stats DecoderStats
}

// Feed appends raw bytes from the transport.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of bytes awaiting decode.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Stats returns decode counters.
func (d *Decoder) Stats() DecoderStats { return d.stats }

// Reset discards all buffered bytes. Used when a connection is torn down.
func (d *Decoder) Reset() { d.buf = nil }

// Next returns the next complete frame.
//
// Returns ErrNeedMoreData when the buffer holds no complete frame, and
// ErrMalformed after skipping corrupt input. Both are retryable; only the
// transport decides when the stream is dead.
func (d *Decoder) Next() (Message, error) {
	if len(d.buf) < 4 {
		return Message{}, ErrNeedMoreData
	}

	size := binary.BigEndian.Uint32(d.buf)
	if size > MaxFrameSize {
		d.resync()
		return Message{}, ErrMalformed
	}
	if len(d.buf) < 4+int(size) {
		return Message{}, ErrNeedMoreData
	}

	payload := d.buf[4 : 4+size]
	if size > 0 && payload[size-1] != 0 {
		// Fields are NUL-terminated; a frame not ending on a terminator
		// means the length prefix lied.
		d.resync()
		return Message{}, ErrMalformed
	}

	d.buf = d.buf[4+size:]
	d.stats.Frames++

	if size == 0 {
		return Message{}, nil
	}

	fields := strings.Split(string(payload[:size-1]), "\x00")
	return Message{Fields: fields}, nil
}

// resync drops the current byte and advances until the buffer starts with a
// plausible frame boundary: an in-range length prefix followed by an ASCII
// digit, since every message type field is numeric. Transient corruption
// costs bytes, not the session.
func (d *Decoder) resync() {
	d.stats.Resyncs++
	d.buf = d.buf[1:]
	d.stats.BytesDiscarded++

	for len(d.buf) >= 4 {
		size := binary.BigEndian.Uint32(d.buf)
		if size > 0 && size <= MaxFrameSize && (len(d.buf) == 4 || isDigit(d.buf[4])) {
			return
		}
		d.buf = d.buf[1:]
		d.stats.BytesDiscarded++
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
