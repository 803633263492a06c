// Package constants holds the engine's on-disk and sizing defaults.
package constants

import "os"

const (
	// WBlockSize is the nominal size in bytes of one SG write-block,
	// including its write-block header tag.
	WBlockSize = 32 << 20 // 32MiB

	// InitialBlocks is the number of write-blocks a freshly created
	// write-mode file is pre-sized to hold.
	InitialBlocks = 4

	// GrowthBlocks is the number of write-blocks a write-mode file's
	// mapped region grows by each time it runs out of room.
	GrowthBlocks = 4

	// FileHeaderTagSize is the fixed size in bytes of the SG file header tag.
	FileHeaderTagSize = 40

	// WBlockHeaderTagSize is the fixed size in bytes of the write-block header tag.
	WBlockHeaderTagSize = 16

	// SyncWord identifies a valid SG file. Project-local sentinel, not a VDIF standard.
	SyncWord uint32 = 0x4D4A5347 // bytes "GSJM" on disk (little-endian)

	// FileVersion is the SG on-disk format version this engine reads and writes.
	FileVersion uint32 = 2

	// PacketFormatVDIF is the only packet format this engine understands.
	PacketFormatVDIF uint32 = 1
)

// FilePerm is the permission mode for newly created SG files (rw-rw-r--).
const FilePerm = os.FileMode(0664)

// CreateFlags are the flags used to create/truncate a write-mode SG file.
const CreateFlags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
