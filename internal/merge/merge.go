// Package merge implements the time-ordering and contiguity-merge
// algorithms that stitch per-shard read buffers into a single
// temporally contiguous super-block.
package merge

import "github.com/cfa-haystack/vdifsg/vdifheader"

// TimeRange is the minimal view the merger needs of a shard's staging
// buffer: whether it holds any frames, and the timestamps of its
// first and last frame.
type TimeRange interface {
	FrameCount() int
	First() vdifheader.Timestamp
	Last() vdifheader.Timestamp
}

// Adjacent reports whether b follows a with no gap in frame sequence,
// per the rules below. a is assumed to be the earlier buffer.
//
//   - If a does not span a second boundary (a.First.Secs == a.Last.Secs):
//     b is adjacent iff it starts in that same second at a frame index
//     no earlier than a's first and no later than one past a's last.
//   - If a spans a second boundary (a.First.Secs < a.Last.Secs): b is
//     adjacent if it starts anywhere within a's span (at or after
//     a.First in a.First's second, at or before one past a.Last in
//     a.Last's second, or in any second strictly between the two).
//
// This deliberately does not check that a's last frame is the final
// frame of its second and b's first is frame zero of the next second:
// the per-second frame rate is not known to this package.
func Adjacent(a, b TimeRange) bool {
	a1, a2 := a.First(), a.Last()
	b1 := b.First()

	if a1.Secs == a2.Secs {
		return b1.Secs == a1.Secs && b1.Frame >= a1.Frame && b1.Frame <= a2.Frame+1
	}

	// a spans a second boundary.
	if b1.Secs == a1.Secs && b1.Frame >= a1.Frame {
		return true
	}
	if b1.Secs == a2.Secs && b1.Frame <= a2.Frame+1 {
		return true
	}
	return a1.Secs < b1.Secs && b1.Secs < a2.Secs
}

// Mapping partitions shards into a contiguous, time-ordered prefix
// followed by the rest. It returns order, a permutation of
// 0..len(shards)-1 identifying shards in final order, and k, the
// count of entries at the front of order that form a contiguous chain
// starting from the earliest live timestamp. Dead shards (FrameCount
// == 0) always land after the first k entries.
func Mapping(shards []TimeRange) (order []int, k int) {
	n := len(shards)
	order = make([]int, n)

	live := make([]int, 0, n)
	dead := make([]int, 0, n)
	for i, s := range shards {
		if s.FrameCount() > 0 {
			live = append(live, i)
		} else {
			dead = append(dead, i)
		}
	}

	if len(live) == 0 {
		copy(order, dead)
		return order, 0
	}

	sortByTimestamp(shards, live)

	chain := 1
	for chain < len(live) {
		a := shards[live[chain-1]]
		b := shards[live[chain]]
		if !Adjacent(a, b) {
			break
		}
		chain++
	}

	copy(order, live)
	copy(order[len(live):], dead)
	return order, chain
}

// sortByTimestamp selection-sorts the indices in idx (into shards) by
// ascending (First.Secs, First.Frame), in place. Selection sort
// mirrors the reference algorithm's behavior exactly and is more than
// fast enough given idx is bounded by the shard count (tens, not
// thousands).
func sortByTimestamp(shards []TimeRange, idx []int) {
	for i := 0; i < len(idx); i++ {
		min := i
		for j := i + 1; j < len(idx); j++ {
			tj := shards[idx[j]].First()
			tm := shards[idx[min]].First()
			if vdifheader.Compare(tj, tm) < 0 {
				min = j
			}
		}
		idx[i], idx[min] = idx[min], idx[i]
	}
}
