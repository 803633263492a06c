// Package shard implements the per-file handle that the plan and
// pipeline packages coordinate: identity, the SG accessor, the next
// block index, a transient staging buffer, and a frame count.
package shard

import (
	"github.com/cfa-haystack/vdifsg/internal/sgfile"
	"github.com/cfa-haystack/vdifsg/vdifheader"
)

// Shard is a single-file handle within a Plan. Read-mode and
// write-mode shards share this struct (per the design note on
// modeling the mode flag as a tagged variant at the Plan level, not
// per-Shard); only the methods each pipeline calls differ.
type Shard struct {
	Path string
	SG   *sgfile.File

	// BlockIndex is, in read mode, the index of the next block to
	// fetch; in write mode, the count of blocks already written.
	BlockIndex int64

	// Staging holds one block's packets: in read mode, data read but
	// not yet consumed by the merger; in write mode, a borrowed view
	// into caller-supplied packet memory for the current write cycle.
	Staging []byte

	// FrameCount is the number of complete VDIF frames currently in Staging.
	FrameCount int

	// PacketSize is the per-frame byte length this shard's file was
	// first written (or opened) with.
	PacketSize int

	// Module and Disk identify this shard's position in the (M, D) grid.
	Module int
	Disk   int
}

// Module identifies one storage module; Disk identifies one disk
// within a module. ModuleDisk pairs them for path construction.
type ModuleDisk struct {
	Module int
	Disk   int
}

// Empty reports whether Staging holds no pending frames.
func (s *Shard) Empty() bool { return s.FrameCount == 0 }

// Dead reports whether this read-mode shard has nothing left to fetch:
// it has no SG accessor, or every block on disk has already been fetched.
func (s *Shard) Dead() bool {
	return s.SG == nil || s.BlockIndex >= int64(s.SG.BlockCount())
}

// Clear releases the staging buffer and resets the frame count,
// called after the merger consumes an adjacent shard's buffer.
func (s *Shard) Clear() {
	s.Staging = nil
	s.FrameCount = 0
}

// FirstHeader returns the parsed header of the first frame in
// Staging. Callers must check FrameCount > 0 first; bounds violations
// panic per the design notes' guidance that typed accessors should
// bounds-check against FrameCount rather than silently returning a
// zero Header.
func (s *Shard) FirstHeader() vdifheader.Header {
	if s.FrameCount == 0 {
		panic("shard: FirstHeader called on empty staging")
	}
	return vdifheader.AtFrame(s.Staging, 0, s.PacketSize)
}

// LastHeader returns the parsed header of the last frame in Staging.
func (s *Shard) LastHeader() vdifheader.Header {
	if s.FrameCount == 0 {
		panic("shard: LastHeader called on empty staging")
	}
	return vdifheader.AtFrame(s.Staging, s.FrameCount-1, s.PacketSize)
}

// TimeRange adapts a Shard to merge.TimeRange: Shard's FrameCount is a
// struct field, not a method, so callers that need the interface use
// this thin wrapper rather than a same-named method (which Go
// disallows alongside the field).
type TimeRange struct{ *Shard }

// FrameCount implements merge.TimeRange.
func (t TimeRange) FrameCount() int { return t.Shard.FrameCount }

// First implements merge.TimeRange.
func (s *Shard) First() vdifheader.Timestamp {
	if s.FrameCount == 0 {
		return vdifheader.Timestamp{}
	}
	return s.FirstHeader().Timestamp()
}

// Last implements merge.TimeRange.
func (s *Shard) Last() vdifheader.Timestamp {
	if s.FrameCount == 0 {
		return vdifheader.Timestamp{}
	}
	return s.LastHeader().Timestamp()
}

// Report is a small diagnostic snapshot of shard state, recovered
// from the original's sg_report dumps gated under DEBUG_LEVEL_INFO.
type Report struct {
	Path       string
	BlockIndex int64
	FrameCount int
	First      vdifheader.Timestamp
	Last       vdifheader.Timestamp
	HasData    bool
}

// Report returns a diagnostic snapshot of this shard's current state.
func (s *Shard) Report() Report {
	r := Report{Path: s.Path, BlockIndex: s.BlockIndex, FrameCount: s.FrameCount}
	if s.FrameCount > 0 {
		r.HasData = true
		r.First = s.First()
		r.Last = s.Last()
	}
	return r
}

// LogFields returns the structured logging fields for this shard,
// suitable for zerolog's Interface/With chains.
func (s *Shard) LogFields() map[string]any {
	return map[string]any{
		"path":        s.Path,
		"module":      s.Module,
		"disk":        s.Disk,
		"block_index": s.BlockIndex,
		"frame_count": s.FrameCount,
	}
}
