package protocol

import (
	"encoding/binary"
	"strconv"
)

// MaxFrameSize bounds a plausible frame payload. Length prefixes beyond it
// are treated as stream corruption.
const MaxFrameSize = 1 << 24

// Message is one decoded frame: the message type followed by its fields.
type Message struct {
	Fields []string
}

// Type returns the message type field, or "" for an empty frame.
func (m Message) Type() string { return m.Field(0) }

// Field returns field i, or "" when the message has no such field.
func (m Message) Field(i int) string {
	if i < 0 || i >= len(m.Fields) {
		return ""
	}
	return m.Fields[i]
}

// Int parses field i as an int; absent or unparseable fields yield 0.
func (m Message) Int(i int) int {
	n, _ := strconv.Atoi(m.Field(i))
	return n
}

// Int64 parses field i as an int64; absent or unparseable fields yield 0.
func (m Message) Int64(i int) int64 {
	n, _ := strconv.ParseInt(m.Field(i), 10, 64)
	return n
}

// Float parses field i as a float64; absent or unparseable fields yield 0.
func (m Message) Float(i int) float64 {
	f, _ := strconv.ParseFloat(m.Field(i), 64)
	return f
}

// EncodeFrame builds a length-prefixed frame from NUL-terminated fields.
func EncodeFrame(fields ...string) []byte {
	size := 0
	for _, f := range fields {
		size += len(f) + 1
	}

	buf := make([]byte, 4, 4+size)
	binary.BigEndian.PutUint32(buf, uint32(size))
	for _, f := range fields {
		buf = append(buf, f...)
		buf = append(buf, 0)
	}
	return buf
}
