package radio

import (
	"encoding/hex"
	"unicode/utf8"
)

// Address is a 16-bit module address, big-endian on the wire
type Address uint16

// Broadcast reaches every module on the channel
const Broadcast Address = 0xFFFF

// Channel is the offset in MHz above the band base frequency
type Channel uint8

// HeaderLen is the outbound header size
const HeaderLen = 6

// Frame is one decoded inbound packet
type Frame struct {
	Source  Address
	Channel Channel
	Payload []byte
	RSSI    byte
	HasRSSI bool
}

// Encode builds [dest_hi dest_lo ch src_hi src_lo ch] + payload.
// The channel byte is repeated in both triplets as the module firmware
// expects.
func Encode(dest, src Address, ch Channel, payload []byte) []byte {
	out := make([]byte, HeaderLen+len(payload))
	out[0] = byte(dest >> 8)
	out[1] = byte(dest)
	out[2] = byte(ch)
	out[3] = byte(src >> 8)
	out[4] = byte(src)
	out[5] = byte(ch)
	copy(out[HeaderLen:], payload)
	return out
}

// Delivered returns what the receiving module hands its host for an
// outbound frame: the transmitting firmware consumes the destination
// triplet, so the source triplet leads.
func Delivered(frame []byte) []byte {
	if len(frame) < 3 {
		return nil
	}
	return frame[3:]
}

// MinFrameLen is the shortest inbound buffer that carries a frame
func MinFrameLen(rssi bool) int {
	if rssi {
		return 5
	}
	return 4
}

// Decode parses an inbound buffer. It returns false when raw is too short
// to hold source, channel and at least one payload byte.
func Decode(raw []byte, rssi bool) (Frame, bool) {
	if len(raw) < MinFrameLen(rssi) {
		return Frame{}, false
	}

	f := Frame{
		Source:  Address(raw[0])<<8 | Address(raw[1]),
		Channel: Channel(raw[2]),
	}

	body := raw[3:]
	if rssi {
		f.RSSI = raw[len(raw)-1]
		f.HasRSSI = true
		body = raw[3 : len(raw)-1]
	}
	f.Payload = append([]byte(nil), body...)
	return f, true
}

// FrequencyMHz resolves the frame's channel against the band base
func (f Frame) FrequencyMHz(base int) int {
	return base + int(f.Channel)
}

// SignalDBm is the conventional reading of the RSSI byte, display only
func (f Frame) SignalDBm() int {
	return -(256 - int(f.RSSI))
}

// Text renders the payload for display
func (f Frame) Text() string {
	return PayloadText(f.Payload)
}

// PayloadText returns p as text when it is valid UTF-8, else lowercase hex
func PayloadText(p []byte) string {
	if utf8.Valid(p) {
		return string(p)
	}
	return hex.EncodeToString(p)
}
