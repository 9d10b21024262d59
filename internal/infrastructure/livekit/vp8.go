package livekit

import (
	"encoding/binary"

	"github.com/pion/rtp/codecs"
)

var vp8StartCode = [3]byte{0x9d, 0x01, 0x2a}

const vp8KeyframeHeaderLen = 10

// syntheticVP8Frame builds a frame with a valid VP8 frame tag padded to size
// bytes. Keyframes carry the uncompressed header with the frame dimensions,
// which is all receivers of the probe read back.
func syntheticVP8Frame(width, height int, keyframe bool, size int) []byte {
	if size < vp8KeyframeHeaderLen {
		size = vp8KeyframeHeaderLen
	}
	frame := make([]byte, size)

	// frame tag: bit 0 is the inverse key frame flag, bit 4 show_frame,
	// bits 5..23 the first partition size.
	partition := uint32(size - 3)
	tag := partition<<5 | 1<<4
	if !keyframe {
		tag |= 1
	}
	frame[0] = byte(tag)
	frame[1] = byte(tag >> 8)
	frame[2] = byte(tag >> 16)

	if keyframe {
		copy(frame[3:6], vp8StartCode[:])
		binary.LittleEndian.PutUint16(frame[6:8], uint16(width)&0x3fff)
		binary.LittleEndian.PutUint16(frame[8:10], uint16(height)&0x3fff)
	}
	return frame
}

// vp8Dimensions extracts the frame size from an RTP payload that starts a VP8
// keyframe. ok is false for every other packet.
func vp8Dimensions(payload []byte) (width, height int, ok bool) {
	var pkt codecs.VP8Packet
	frame, err := pkt.Unmarshal(payload)
	if err != nil || pkt.S != 1 || pkt.PID != 0 {
		return 0, 0, false
	}
	if len(frame) < vp8KeyframeHeaderLen || frame[0]&0x01 != 0 {
		return 0, 0, false
	}
	if frame[3] != vp8StartCode[0] || frame[4] != vp8StartCode[1] || frame[5] != vp8StartCode[2] {
		return 0, 0, false
	}
	width = int(binary.LittleEndian.Uint16(frame[6:8]) & 0x3fff)
	height = int(binary.LittleEndian.Uint16(frame[8:10]) & 0x3fff)
	return width, height, true
}

// opusSilence is a single 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}
