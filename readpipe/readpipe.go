// Package readpipe implements the read pipeline: one worker per
// shard whose staging buffer is empty, each fetching its next
// write-block in parallel, fanned out and joined the way the
// teacher's internal/queue runner model serializes per-tag I/O state
// (here per-shard instead of per-tag) but using golang.org/x/sync/errgroup
// for first-error propagation rather than a raw sync.WaitGroup plus a
// manual error channel.
package readpipe

import (
	"context"

	"github.com/cfa-haystack/vdifsg/internal/constants"
	"github.com/cfa-haystack/vdifsg/internal/shard"
	"golang.org/x/sync/errgroup"
)

// FetchNext launches one worker per shard whose staging is empty and
// which still has unread blocks, reading its next write-block into
// Staging. Shards with data retained from a previous call are left
// untouched. Returns the first worker error, if any; the only such
// error is the context's, since a block that cannot be ranged leaves
// its shard empty rather than failing the call.
func FetchNext(ctx context.Context, shards []*shard.Shard) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range shards {
		s := s
		if !s.Empty() || s.Dead() {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			payload, err := s.SG.BlockRange(int(s.BlockIndex))
			if err != nil {
				return nil // transient: block not yet indexed, leave shard empty
			}
			s.Staging = payload
			if s.PacketSize > 0 {
				s.FrameCount = len(payload) / s.PacketSize
			}
			if s.FrameCount > 0 {
				s.BlockIndex++
			}
			return nil
		})
	}
	return g.Wait()
}

// FetchAt launches one worker per shard to read the block at a fixed
// index, regardless of current staging state, for random-access /
// diagnostic reads.
func FetchAt(ctx context.Context, shards []*shard.Shard, index int64) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range shards {
		s := s
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			payload, err := s.SG.BlockRange(int(index))
			if err != nil {
				s.Clear()
				return nil
			}
			s.Staging = payload
			if s.PacketSize > 0 {
				s.FrameCount = len(payload) / s.PacketSize
			}
			return nil
		})
	}
	return g.Wait()
}

// EstimateOutputSize sums, over all shards, a nominal per-block byte
// count (whole frames per write-block times packet size) so the
// caller can allocate the output buffer once up front.
// Over-allocation (it covers retained-plus-newly-read capacity) is
// acceptable per spec.md §4.3 step 3.
func EstimateOutputSize(shards []*shard.Shard) int {
	total := 0
	for _, s := range shards {
		packetSize := s.PacketSize
		if packetSize == 0 {
			continue
		}
		nominal := constants.WBlockSize / packetSize
		total += nominal * packetSize
	}
	return total
}
