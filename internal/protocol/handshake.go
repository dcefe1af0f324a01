package protocol

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// versionRange is the API version span offered during the handshake.
const versionRange = "v100..176"

// EncodeHandshake builds the connection-open message: the literal "API\0"
// prefix followed by a length-prefixed version range. This is the only
// client message sent outside normal framing.
func EncodeHandshake() []byte {
	buf := make([]byte, 0, 4+4+len(versionRange))
	buf = append(buf, 'A', 'P', 'I', 0)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(versionRange)))
	buf = append(buf, versionRange...)
	return buf
}

// EncodeStartAPI builds the startAPI frame sent after the handshake ack to
// bind the connection to a client id. The trailing field is the optional
// capabilities list, always empty here.
func EncodeStartAPI(clientID int) []byte {
	return EncodeFrame(OutStartAPI, "2", strconv.Itoa(clientID), "")
}

// ReadHandshakeAck consumes the server's two NUL-terminated handshake
// replies: the negotiated server version and the server time string. Normal
// framing begins immediately after.
func ReadHandshakeAck(r *bufio.Reader) (serverVersion int, serverTime string, err error) {
	versionStr, err := r.ReadString(0)
	if err != nil {
		return 0, "", fmt.Errorf("read server version: %w", err)
	}
	timeStr, err := r.ReadString(0)
	if err != nil {
		return 0, "", fmt.Errorf("read server time: %w", err)
	}

	versionStr = strings.TrimSpace(strings.TrimRight(versionStr, "\x00"))
	serverVersion, err = strconv.Atoi(versionStr)
	if err != nil {
		return 0, "", fmt.Errorf("parse server version %q: %w", versionStr, err)
	}

	return serverVersion, strings.TrimRight(timeStr, "\x00"), nil
}
