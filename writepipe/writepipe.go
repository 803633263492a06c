// Package writepipe implements the write pipeline: striping an
// incoming frame run across shards round-robin at write-block
// granularity, and the per-shard append worker that writes a
// write-block header and its payload into a growable mmap'd region.
package writepipe

import (
	"context"
	"fmt"

	"github.com/cfa-haystack/vdifsg/internal/constants"
	"github.com/cfa-haystack/vdifsg/internal/sgfile"
	"github.com/cfa-haystack/vdifsg/internal/shard"
	"github.com/cfa-haystack/vdifsg/internal/vdiferrors"
	"github.com/cfa-haystack/vdifsg/vdifheader"
	"golang.org/x/sync/errgroup"
)

// assignment is one shard's slice of the current write cycle.
type assignment struct {
	sh     *shard.Shard
	frames []byte
	nFrame int
}

// StartingShard picks the shard with the minimum BlockIndex (ties
// broken by shard order), keeping per-shard block counts balanced
// across successive WriteFrames calls.
func StartingShard(shards []*shard.Shard) int {
	best := 0
	for i, s := range shards {
		if s.BlockIndex < shards[best].BlockIndex {
			best = i
		}
	}
	return best
}

// FirstHeaderFields derives the SG header fields populated from the
// first VDIF header in buf, for a plan's first-ever write.
type FirstHeaderFields struct {
	PacketSize int
	PktOffset  int
	FirstSecs  uint32
	FirstFrame uint32
	RefEpoch   uint8
}

// DeriveFirstHeader parses the first frame's header out of buf.
func DeriveFirstHeader(buf []byte) (FirstHeaderFields, error) {
	if len(buf) < vdifheader.Size {
		return FirstHeaderFields{}, fmt.Errorf("writepipe: buffer too short for a VDIF header")
	}
	h := vdifheader.Parse(buf)
	return FirstHeaderFields{
		PacketSize: h.ByteLength(),
		PktOffset:  32, // full VDIF header length; payload starts after it
		FirstSecs:  h.SecsInRe,
		FirstFrame: h.DFNumInSec,
		RefEpoch:   h.RefEpoch,
	}, nil
}

// WriteFrames splits nFrames frames worth of buf across shards
// round-robin at write-block granularity, starting from the shard
// with the fewest blocks written, and writes each assigned shard's
// chunk in parallel. It returns the number of frames actually
// written (which may be less than nFrames if a shard's resize fails
// mid-cycle: CodeWriteShort).
func WriteFrames(ctx context.Context, shards []*shard.Shard, buf []byte, nFrames, packetSize int, first FirstHeaderFields) (int, error) {
	if len(shards) == 0 || packetSize <= 0 {
		return 0, nil
	}
	framesPerBlock := constants.WBlockSize / packetSize
	if framesPerBlock <= 0 {
		framesPerBlock = 1
	}

	s0 := StartingShard(shards)
	n := len(shards)

	written := 0
	for written < nFrames {
		var batch []assignment
		for j := 0; j < n && written < nFrames; j++ {
			idx := (s0 + j) % n
			take := framesPerBlock
			if remaining := nFrames - written; take > remaining {
				take = remaining
			}
			off := written * packetSize
			end := (written + take) * packetSize
			if end > len(buf) {
				end = len(buf)
			}
			batch = append(batch, assignment{sh: shards[idx], frames: buf[off:end], nFrame: take})
			written += take
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, a := range batch {
			a := a
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return writeShardBlock(a.sh, a.frames, packetSize, first)
			})
		}
		if err := g.Wait(); err != nil {
			return written - sumFrames(batch), vdiferrors.Wrap("WriteFrames", vdiferrors.CodeWriteShort, err)
		}
	}
	return written, nil
}

func sumFrames(batch []assignment) int {
	t := 0
	for _, a := range batch {
		t += a.nFrame
	}
	return t
}

// writeShardBlock appends one write-block (file header on first
// write, then the write-block header tag and payload) to sh's SG
// accessor. Staging/FrameCount are set to this cycle's borrowed view
// of frames for the duration of the call, so diagnostics (Report,
// LogFields) reflect what is being written; they are cleared once the
// block is durably appended, matching the read path's convention that
// an empty staging buffer means "nothing pending."
func writeShardBlock(sh *shard.Shard, frames []byte, packetSize int, first FirstHeaderFields) error {
	sh.Staging = frames
	sh.FrameCount = len(frames) / packetSize

	if sh.BlockIndex == 0 {
		framesPerBlock := constants.WBlockSize / packetSize
		if framesPerBlock <= 0 {
			framesPerBlock = 1
		}
		h := sgfile.FileHeaderTag{
			SyncWord:     constants.SyncWord,
			Version:      constants.FileVersion,
			PacketFormat: constants.PacketFormatVDIF,
			PacketSize:   uint32(packetSize),
			BlockSize:    uint32(packetSize*framesPerBlock + constants.WBlockHeaderTagSize),
			PktOffset:    uint32(first.PktOffset),
			FirstSecs:    first.FirstSecs,
			FirstFrame:   first.FirstFrame,
			RefEpoch:     first.RefEpoch,
		}
		if err := sh.SG.WriteFileHeader(h); err != nil {
			return err
		}
		sh.PacketSize = packetSize
	}

	if err := sh.SG.AppendBlock(uint32(sh.BlockIndex), frames); err != nil {
		return err
	}
	sh.BlockIndex++
	sh.Clear()
	return nil
}
