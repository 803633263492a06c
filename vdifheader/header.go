// Package vdifheader provides typed access to the VDIF header fields
// this engine consumes. It does not attempt to model VDIF packet
// semantics beyond those fields.
package vdifheader

import "encoding/binary"

// Size is the byte length of the leading VDIF header words this
// package reads. The full VDIF header is longer; everything past
// word 2 is opaque to this engine.
const Size = 16

// dfNumMask selects the 24-bit frame-in-second counter in the low bits
// of word 1; bits 24-29 of the same word hold the reference epoch.
const dfNumMask = 0x00FFFFFF

// Header is a read-only view of the header fields consulted by the
// scatter-gather engine: seconds since the reference epoch, the frame
// index within that second, the reference epoch selector, and the
// frame length.
type Header struct {
	SecsInRe   uint32
	DFNumInSec uint32
	RefEpoch   uint8
	DFLen      uint32
}

// ByteLength returns the actual frame length in bytes (DFLen is
// stored in 8-byte units on the wire).
func (h Header) ByteLength() int {
	return int(h.DFLen) * 8
}

// Timestamp returns the (seconds, frame) pair used for ordering and
// adjacency comparisons.
func (h Header) Timestamp() Timestamp {
	return Timestamp{Secs: h.SecsInRe, Frame: h.DFNumInSec}
}

// Parse reads a Header from the first three words (12 bytes) of buf.
// It panics if buf is shorter than that; callers must bounds-check
// frame counts before calling.
func Parse(buf []byte) Header {
	w0 := binary.LittleEndian.Uint32(buf[0:4])
	w1 := binary.LittleEndian.Uint32(buf[4:8])
	w2 := binary.LittleEndian.Uint32(buf[8:12])

	return Header{
		SecsInRe:   w0,
		DFNumInSec: w1 & dfNumMask,
		RefEpoch:   uint8((w1 >> 24) & 0x3F),
		DFLen:      w2 & 0x00FFFFFF,
	}
}

// AtFrame parses the header of the frame at the given index within a
// buffer packed with frames of packetSize bytes each.
func AtFrame(buf []byte, index, packetSize int) Header {
	off := index * packetSize
	return Parse(buf[off : off+Size])
}

// Timestamp is the (seconds-since-reference-epoch, frame-index-in-
// second) pair used throughout the engine for ordering and adjacency.
type Timestamp struct {
	Secs  uint32
	Frame uint32
}

// Less reports whether t sorts strictly before o.
func (t Timestamp) Less(o Timestamp) bool {
	if t.Secs != o.Secs {
		return t.Secs < o.Secs
	}
	return t.Frame < o.Frame
}

// Compare returns -1, 0, or 1 as t is less than, equal to, or greater
// than o, ascending by (Secs, Frame).
func Compare(t, o Timestamp) int {
	switch {
	case t.Secs < o.Secs:
		return -1
	case t.Secs > o.Secs:
		return 1
	case t.Frame < o.Frame:
		return -1
	case t.Frame > o.Frame:
		return 1
	default:
		return 0
	}
}
