package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cfa-haystack/vdifsg/vdifheader"
)

type fakeRange struct {
	frames int
	first  vdifheader.Timestamp
	last   vdifheader.Timestamp
}

func (f fakeRange) FrameCount() int                { return f.frames }
func (f fakeRange) First() vdifheader.Timestamp     { return f.first }
func (f fakeRange) Last() vdifheader.Timestamp      { return f.last }

func ts(secs, frame uint32) vdifheader.Timestamp {
	return vdifheader.Timestamp{Secs: secs, Frame: frame}
}

func TestAdjacentSameSecond(t *testing.T) {
	a := fakeRange{frames: 10, first: ts(100, 0), last: ts(100, 249)}
	b := fakeRange{frames: 10, first: ts(100, 250), last: ts(100, 499)}
	require.True(t, Adjacent(a, b))

	c := fakeRange{frames: 10, first: ts(100, 251), last: ts(100, 500)}
	require.False(t, Adjacent(a, c))
}

func TestAdjacentCrossSecondSpanning(t *testing.T) {
	// a spans a second boundary.
	a := fakeRange{frames: 10, first: ts(100, 124999), last: ts(101, 9)}
	bSameStart := fakeRange{frames: 5, first: ts(100, 124999), last: ts(100, 125003)}
	require.True(t, Adjacent(a, bSameStart))

	bNextStart := fakeRange{frames: 5, first: ts(101, 10), last: ts(101, 14)}
	require.True(t, Adjacent(a, bNextStart))

	bBetween := fakeRange{frames: 5, first: ts(100, 5), last: ts(100, 9)}
	// starts in a's first second but before a's first frame: not adjacent
	require.False(t, Adjacent(a, bBetween))

	bStrictlyBetween := fakeRange{frames: 5, first: ts(100, 999999), last: ts(100, 999999)}
	// same second as a.First, frame after a.First: adjacent by rule 2a (>= a1.Frame)
	require.True(t, Adjacent(a, bStrictlyBetween))
}

func TestAdjacentCrossSecondNeitherSpans(t *testing.T) {
	a := fakeRange{frames: 10, first: ts(100, 0), last: ts(100, 9)}
	b := fakeRange{frames: 10, first: ts(101, 0), last: ts(101, 9)}
	// neither spans a boundary and they are in different seconds: rejected
	require.False(t, Adjacent(a, b))
}

func TestMappingAllContiguous(t *testing.T) {
	shards := []TimeRange{
		fakeRange{frames: 250, first: ts(100, 0), last: ts(100, 249)},
		fakeRange{frames: 250, first: ts(100, 250), last: ts(100, 499)},
		fakeRange{frames: 250, first: ts(100, 500), last: ts(100, 749)},
	}
	order, k := Mapping(shards)
	require.Equal(t, 3, k)
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestMappingRetainsNonAdjacent(t *testing.T) {
	shards := []TimeRange{
		fakeRange{frames: 250, first: ts(100, 0), last: ts(100, 249)},
		fakeRange{frames: 250, first: ts(100, 250), last: ts(100, 499)},
		fakeRange{frames: 250, first: ts(100, 2000), last: ts(100, 2249)},
	}
	order, k := Mapping(shards)
	require.Equal(t, 2, k)
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestMappingDeadShardsAtEnd(t *testing.T) {
	shards := []TimeRange{
		fakeRange{frames: 0},
		fakeRange{frames: 100, first: ts(100, 500), last: ts(100, 599)},
		fakeRange{frames: 0},
		fakeRange{frames: 100, first: ts(100, 0), last: ts(100, 99)},
		fakeRange{frames: 0},
	}
	order, k := Mapping(shards)
	require.Equal(t, 1, k) // not adjacent: gap between 99 and 500
	require.Equal(t, 3, order[0])
	liveTail := order[1:]
	require.Contains(t, liveTail, 1)
	deadSet := map[int]bool{0: true, 2: true, 4: true}
	for _, idx := range order[k:] {
		if idx != 1 {
			require.True(t, deadSet[idx])
		}
	}
}

func TestMappingAllDead(t *testing.T) {
	shards := []TimeRange{fakeRange{}, fakeRange{}}
	order, k := Mapping(shards)
	require.Equal(t, 0, k)
	require.ElementsMatch(t, []int{0, 1}, order)
}
