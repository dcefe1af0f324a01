// Package protocol implements the gateway wire codec.
//
// Frames are length-prefixed: [4-byte big-endian length][payload], where the
// payload is a sequence of NUL-terminated ASCII fields. The first field of
// every framed message is its numeric message type.
//
// The Decoder is resumable: bytes arrive in arbitrary chunks and complete
// frames are surfaced as they become available. Corrupt input is skipped by
// resynchronizing on the next plausible length prefix rather than failing
// the stream.
//
// The handshake exchange at connection start is the one part of the protocol
// that is not framed this way; see EncodeHandshake and ReadHandshakeAck.
package protocol
