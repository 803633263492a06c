package plan

import (
	"context"
	"time"

	"github.com/cfa-haystack/vdifsg/writepipe"
)

// WriteFrames writes exactly nFrames VDIF frames from buf, striped
// across shards in write-block-sized chunks round-robin, and returns
// the number of frames actually written.
func (p *WritePlan) WriteFrames(ctx context.Context, buf []byte, nFrames int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.shards) == 0 {
		return 0, nil
	}

	packetSize := p.shards[0].PacketSize
	var first writepipe.FirstHeaderFields
	if p.firstWrite() {
		var err error
		first, err = writepipe.DeriveFirstHeader(buf)
		if err != nil {
			return 0, err
		}
		packetSize = first.PacketSize
	} else {
		// Shards whose first block lands in a later call get the same
		// first-write header fields as the shards already written.
		for _, s := range p.shards {
			if s.BlockIndex > 0 {
				first = writepipe.FirstHeaderFields{
					PacketSize: packetSize,
					PktOffset:  s.SG.PktOffset(),
					FirstSecs:  s.SG.FirstSecs(),
					FirstFrame: s.SG.FirstFrame(),
					RefEpoch:   s.SG.RefEpoch(),
				}
				break
			}
		}
	}

	start := time.Now()
	n, err := writepipe.WriteFrames(ctx, p.shards, buf, nFrames, packetSize, first)
	p.observer.ObserveWrite(uint64(n*packetSize), uint64(time.Since(start)), err == nil)
	p.framesWritten += int64(n)
	return n, err
}

// FramesWritten returns the cumulative frame count written by this plan.
func (p *WritePlan) FramesWritten() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.framesWritten
}
