package sgfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cfa-haystack/vdifsg/internal/constants"
	"github.com/cfa-haystack/vdifsg/internal/mmapfile"
	"github.com/cfa-haystack/vdifsg/vdifheader"
)

// blockEntry records where one write-block's header and payload live
// within the mapped region, discovered by walking the file once at open.
type blockEntry struct {
	headerOff int64
	payloadOff int64
	payloadLen int64
}

// File is the per-shard single-file SG accessor: it owns the memory
// map and header metadata of one file and exposes open/close,
// block-count, and block-by-index byte-range access. Core packages
// (shard, plan, merge) never reach past this interface into the wire
// format themselves.
type File struct {
	path string
	f    *os.File
	mm   *mmapfile.Map

	writable bool

	header     FileHeaderTag
	haveHeader bool
	blocks     []blockEntry // read mode only
}

// Open opens path as a read-mode SG accessor: maps it read-only and
// indexes every write-block by walking the header chain once.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.Size() < constants.FileHeaderTagSize {
		f.Close()
		return nil, fmt.Errorf("sgfile: %s too short for file header", path)
	}

	mm, err := mmapfile.OpenReadOnly(f, st.Size())
	if err != nil {
		f.Close()
		return nil, err
	}

	sf := &File{path: path, f: f, mm: mm}
	header, err := UnmarshalFileHeaderTag(mm.Bytes()[:constants.FileHeaderTagSize])
	if err != nil {
		sf.Close()
		return nil, err
	}
	sf.header = header
	sf.haveHeader = true

	if err := sf.indexBlocks(st.Size()); err != nil {
		sf.Close()
		return nil, err
	}
	return sf, nil
}

func (sf *File) indexBlocks(fileSize int64) error {
	off := int64(constants.FileHeaderTagSize)
	buf := sf.mm.Bytes()
	for off+constants.WBlockHeaderTagSize <= fileSize {
		wh, err := UnmarshalWBlockHeaderTag(buf[off : off+constants.WBlockHeaderTagSize])
		if err != nil {
			return err
		}
		payloadOff := off + constants.WBlockHeaderTagSize
		payloadLen := int64(wh.BlockSize) - constants.WBlockHeaderTagSize
		if payloadLen < 0 || payloadOff+payloadLen > fileSize {
			break // truncated trailing block; stop indexing
		}
		sf.blocks = append(sf.blocks, blockEntry{headerOff: off, payloadOff: payloadOff, payloadLen: payloadLen})
		off = payloadOff + payloadLen
	}
	return nil
}

// Create opens path as a write-mode SG accessor: truncates/creates
// with mode 0664 and maps an initial region of
// constants.InitialBlocks write-blocks.
func Create(path string) (*File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, constants.CreateFlags, constants.FilePerm)
	if err != nil {
		return nil, err
	}
	initial := int64(constants.InitialBlocks) * constants.WBlockSize
	if err := f.Truncate(initial); err != nil {
		f.Close()
		return nil, err
	}
	mm, err := mmapfile.New(f, initial)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{path: path, f: f, mm: mm, writable: true}, nil
}

// Path returns the filesystem path this accessor was opened on.
func (sf *File) Path() string { return sf.path }

// BlockCount returns the number of write-blocks indexed (read mode)
// or written so far (write mode).
func (sf *File) BlockCount() int {
	return len(sf.blocks)
}

// BlockRange returns the packet payload bytes for the write-block at
// index, without copying (the slice aliases the mapped region and is
// only valid until Close).
func (sf *File) BlockRange(index int) ([]byte, error) {
	if index < 0 || index >= len(sf.blocks) {
		return nil, fmt.Errorf("sgfile: block index %d out of range (have %d)", index, len(sf.blocks))
	}
	e := sf.blocks[index]
	return sf.mm.Bytes()[e.payloadOff : e.payloadOff+e.payloadLen], nil
}

// PacketSize returns the file header's declared packet size in bytes.
func (sf *File) PacketSize() int {
	if !sf.haveHeader {
		return 0
	}
	return int(sf.header.PacketSize)
}

// PktOffset returns the byte offset of the first frame's payload
// within its packet, as recorded in the file header at first write.
func (sf *File) PktOffset() int {
	if !sf.haveHeader {
		return 0
	}
	return int(sf.header.PktOffset)
}

// FirstSecs and FirstFrame return the (secs, frame) timestamp of the
// plan's very first frame, as recorded in the file header at first
// write; every shard in a plan carries the same values regardless of
// which shard actually received that frame.
func (sf *File) FirstSecs() uint32 {
	if !sf.haveHeader {
		return 0
	}
	return sf.header.FirstSecs
}

func (sf *File) FirstFrame() uint32 {
	if !sf.haveHeader {
		return 0
	}
	return sf.header.FirstFrame
}

// RefEpoch returns the VDIF reference epoch selector recorded in the
// file header at first write.
func (sf *File) RefEpoch() uint8 {
	if !sf.haveHeader {
		return 0
	}
	return sf.header.RefEpoch
}

// FirstTimestamp returns the (secs, frame) of the first frame in the
// file, used to order shards at plan-construction time. Requires at
// least one indexed block.
func (sf *File) FirstTimestamp() (vdifheader.Timestamp, error) {
	if len(sf.blocks) == 0 {
		return vdifheader.Timestamp{}, fmt.Errorf("sgfile: %s has no blocks", sf.path)
	}
	payload, err := sf.BlockRange(0)
	if err != nil {
		return vdifheader.Timestamp{}, err
	}
	if len(payload) < vdifheader.Size {
		return vdifheader.Timestamp{}, fmt.Errorf("sgfile: %s first block too short for a header", sf.path)
	}
	return vdifheader.Parse(payload).Timestamp(), nil
}

// WriteFileHeader writes the leading file-header-tag. Only valid
// before any blocks have been written, in write mode.
func (sf *File) WriteFileHeader(h FileHeaderTag) error {
	if !sf.writable {
		return fmt.Errorf("sgfile: %s is not writable", sf.path)
	}
	buf := make([]byte, constants.FileHeaderTagSize)
	MarshalFileHeaderTag(h, buf)
	if err := sf.mm.Write(buf, int64(constants.GrowthBlocks)*constants.WBlockSize); err != nil {
		return err
	}
	sf.header = h
	sf.haveHeader = true
	return nil
}

// AppendBlock appends one write-block (header tag + payload) at the
// current offset, growing the mapping on demand, and records it for
// BlockCount bookkeeping.
func (sf *File) AppendBlock(index uint32, payload []byte) error {
	if !sf.writable {
		return fmt.Errorf("sgfile: %s is not writable", sf.path)
	}
	wh := WBlockHeaderTag{
		BlockIndex: index,
		BlockSize:  uint32(constants.WBlockHeaderTagSize) + uint32(len(payload)),
	}
	hbuf := make([]byte, constants.WBlockHeaderTagSize)
	MarshalWBlockHeaderTag(wh, hbuf)

	growth := int64(constants.GrowthBlocks) * constants.WBlockSize
	if err := sf.mm.Write(hbuf, growth); err != nil {
		return fmt.Errorf("sgfile: write block header: %w", err)
	}
	if err := sf.mm.Write(payload, growth); err != nil {
		return fmt.Errorf("sgfile: write block payload: %w", err)
	}
	sf.blocks = append(sf.blocks, blockEntry{})
	return nil
}

// Offset returns the number of bytes actually written so far
// (write mode); the mapped region size may exceed this.
func (sf *File) Offset() int64 {
	return sf.mm.Offset()
}

// Finalize shrinks a write-mode mapping to its exact written size and
// truncates the backing file to match, per the design's "the exact
// written count is tracked separately" invariant.
func (sf *File) Finalize() error {
	if !sf.writable {
		return nil
	}
	return sf.mm.Finalize()
}

// RestoreSizeAndUnlink is called when a write-mode file had zero
// bytes ever written: it unmaps the region without truncating,
// closes the descriptor and unlinks the path. No size field needs
// restoring here, since the write offset is tracked apart from the
// mapped length.
func (sf *File) RestoreSizeAndUnlink() error {
	if err := sf.mm.Unmap(); err != nil {
		return err
	}
	if err := sf.f.Close(); err != nil {
		return err
	}
	return os.Remove(sf.path)
}

// Close closes the accessor. For write-mode files with data, call
// Finalize first; Close only unmaps and closes the descriptor.
func (sf *File) Close() error {
	if sf.mm != nil {
		if err := sf.mm.Unmap(); err != nil {
			sf.f.Close()
			return err
		}
	}
	return sf.f.Close()
}
