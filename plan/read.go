package plan

import (
	"context"
	"time"

	"github.com/cfa-haystack/vdifsg/internal/merge"
	"github.com/cfa-haystack/vdifsg/internal/shard"
	"github.com/cfa-haystack/vdifsg/readpipe"
)

// ReadNextBlock produces one super-block's worth of temporally
// contiguous frames concatenated into a freshly allocated byte
// buffer. It returns the frame count (0 if nothing contiguous could
// be produced yet; shards retain their buffers for the next call).
func (p *ReadPlan) ReadNextBlock(ctx context.Context) ([]byte, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	err := readpipe.FetchNext(ctx, p.shards)
	if err != nil {
		p.observer.ObserveRead(0, uint64(time.Since(start)), false)
		return nil, 0, err
	}

	out := make([]byte, 0, readpipe.EstimateOutputSize(p.shards))

	order, k := merge.Mapping(timeRanges(p.shards))

	frames := 0
	for i := 0; i < k; i++ {
		s := p.shards[order[i]]
		out = append(out, s.Staging...)
		frames += s.FrameCount
		s.Clear()
	}
	p.observer.ObserveRead(uint64(len(out)), uint64(time.Since(start)), true)
	retained := 0
	for _, s := range p.shards {
		if !s.Empty() {
			retained++
		}
	}
	p.observer.ObserveRetained(retained)
	return out, frames, nil
}

// ReadBlockAt is the single-shot random-access variant: it fetches
// the block at index from every shard and concatenates them in shard
// order, without a contiguity check.
func (p *ReadPlan) ReadBlockAt(ctx context.Context, index int64) ([]byte, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	err := readpipe.FetchAt(ctx, p.shards, index)
	if err != nil {
		p.observer.ObserveRead(0, uint64(time.Since(start)), false)
		return nil, 0, err
	}

	out := make([]byte, 0, readpipe.EstimateOutputSize(p.shards))
	frames := 0
	for _, s := range p.shards {
		out = append(out, s.Staging...)
		frames += s.FrameCount
		s.Clear()
	}
	p.observer.ObserveRead(uint64(len(out)), uint64(time.Since(start)), true)
	return out, frames, nil
}

func timeRanges(shards []*shard.Shard) []merge.TimeRange {
	out := make([]merge.TimeRange, len(shards))
	for i, s := range shards {
		out[i] = shard.TimeRange{Shard: s}
	}
	return out
}
