// Package sgfile is the adapter to the on-disk scatter-gather (SG) file
// layout: the external single-file accessor the core consumes through
// an open/close, block-count, block-by-index interface. It owns the
// byte-exact file-header-tag and write-block-header-tag structs and
// their encoding/binary marshaling, the way internal/uapi owns the
// kernel uAPI structs in the teacher.
package sgfile

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/cfa-haystack/vdifsg/internal/constants"
)

// FileHeaderTag is the fixed 40-byte leading tag of every SG file.
// Layout must match byte-for-byte across reader and writer; field
// order here is the wire order. PktOffset, FirstSecs, FirstFrame and
// RefEpoch are captured from the plan's first-ever write (see
// writepipe.DeriveFirstHeader) and are the same in every shard of a
// plan, so any one shard's header identifies where the whole
// recording starts in absolute time without reading a payload.
type FileHeaderTag struct {
	SyncWord     uint32
	Version      uint32
	PacketFormat uint32
	PacketSize   uint32
	BlockSize    uint32
	PktOffset    uint32
	FirstSecs    uint32
	FirstFrame   uint32
	RefEpoch     uint8
	Reserved     [7]byte
}

// Compile-time size check, mirroring the teacher's uapi struct checks.
var _ [40]byte = [unsafe.Sizeof(FileHeaderTag{})]byte{}

// WBlockHeaderTag is the fixed 16-byte header preceding each write-block's payload.
type WBlockHeaderTag struct {
	BlockIndex uint32
	BlockSize  uint32 // header + payload bytes for this block
	Reserved   [8]byte
}

var _ [16]byte = [unsafe.Sizeof(WBlockHeaderTag{})]byte{}

// MarshalFileHeaderTag encodes h into buf, which must be at least
// constants.FileHeaderTagSize bytes.
func MarshalFileHeaderTag(h FileHeaderTag, buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.SyncWord)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.PacketFormat)
	binary.LittleEndian.PutUint32(buf[12:16], h.PacketSize)
	binary.LittleEndian.PutUint32(buf[16:20], h.BlockSize)
	binary.LittleEndian.PutUint32(buf[20:24], h.PktOffset)
	binary.LittleEndian.PutUint32(buf[24:28], h.FirstSecs)
	binary.LittleEndian.PutUint32(buf[28:32], h.FirstFrame)
	buf[32] = h.RefEpoch
}

// UnmarshalFileHeaderTag decodes a FileHeaderTag from buf, which must
// be at least constants.FileHeaderTagSize bytes.
func UnmarshalFileHeaderTag(buf []byte) (FileHeaderTag, error) {
	if len(buf) < constants.FileHeaderTagSize {
		return FileHeaderTag{}, fmt.Errorf("sgfile: short file header tag: %d bytes", len(buf))
	}
	h := FileHeaderTag{
		SyncWord:     binary.LittleEndian.Uint32(buf[0:4]),
		Version:      binary.LittleEndian.Uint32(buf[4:8]),
		PacketFormat: binary.LittleEndian.Uint32(buf[8:12]),
		PacketSize:   binary.LittleEndian.Uint32(buf[12:16]),
		BlockSize:    binary.LittleEndian.Uint32(buf[16:20]),
		PktOffset:    binary.LittleEndian.Uint32(buf[20:24]),
		FirstSecs:    binary.LittleEndian.Uint32(buf[24:28]),
		FirstFrame:   binary.LittleEndian.Uint32(buf[28:32]),
		RefEpoch:     buf[32],
	}
	if h.SyncWord != constants.SyncWord {
		return FileHeaderTag{}, fmt.Errorf("sgfile: bad sync word 0x%08x", h.SyncWord)
	}
	return h, nil
}

// MarshalWBlockHeaderTag encodes h into buf, which must be at least
// constants.WBlockHeaderTagSize bytes.
func MarshalWBlockHeaderTag(h WBlockHeaderTag, buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.BlockIndex)
	binary.LittleEndian.PutUint32(buf[4:8], h.BlockSize)
}

// UnmarshalWBlockHeaderTag decodes a WBlockHeaderTag from buf, which
// must be at least constants.WBlockHeaderTagSize bytes.
func UnmarshalWBlockHeaderTag(buf []byte) (WBlockHeaderTag, error) {
	if len(buf) < constants.WBlockHeaderTagSize {
		return WBlockHeaderTag{}, fmt.Errorf("sgfile: short write-block header tag: %d bytes", len(buf))
	}
	return WBlockHeaderTag{
		BlockIndex: binary.LittleEndian.Uint32(buf[0:4]),
		BlockSize:  binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}
