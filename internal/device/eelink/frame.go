package eelink

import (
	"encoding/binary"
	"time"
)

const (
	mark1 byte = 0x67
	mark2 byte = 0x67

	loginPacket     byte = 0x01
	heartbeatPacket byte = 0x03
	locationPacket  byte = 0x12
)

const (
	// anything carrying a sequence number is at least this long
	minPacket = 9
	// one location record including its own header
	recordSize = 74
	// login packets carry the IMEI at bytes 7..14
	minLoginPacket = 20
)

const (
	protocolVersion uint16 = 1
	psAction        byte   = 0
)

// decodeHeader validates the frame marker and extracts the command and
// sequence number. It needs only the 7-byte header prefix, the session
// separately enforces the 9-byte protocol minimum on inbound packets.
// A short or unmarked buffer is not an error, the caller discards it
// without replying.
func decodeHeader(p []byte) (cmd byte, seq uint16, ok bool) {
	if len(p) < 7 || p[0] != mark1 || p[1] != mark2 {
		return 0, 0, false
	}
	return p[2], binary.BigEndian.Uint16(p[5:7]), true
}

// newAck builds a response frame. The length field counts the sequence
// number plus the body, everything after the field itself.
func newAck(cmd byte, seq uint16, body []byte) []byte {
	frame := make([]byte, 7+len(body))
	frame[0] = mark1
	frame[1] = mark2
	frame[2] = cmd
	binary.BigEndian.PutUint16(frame[3:5], uint16(2+len(body)))
	binary.BigEndian.PutUint16(frame[5:7], seq)
	copy(frame[7:], body)
	return frame
}

// newLoginAck acknowledges a login with the server time so the device can
// synchronize its clock.
func newLoginAck(seq uint16, t time.Time) []byte {
	body := make([]byte, 7)
	binary.BigEndian.PutUint32(body[0:4], uint32(t.Unix()))
	binary.BigEndian.PutUint16(body[4:6], protocolVersion)
	body[6] = psAction
	return newAck(loginPacket, seq, body)
}
