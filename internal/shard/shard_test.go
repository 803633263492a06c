package shard

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cfa-haystack/vdifsg/vdifheader"
)

const testPacketSize = 8224

func frame(secs, num uint32) []byte {
	buf := make([]byte, testPacketSize)
	buf[0] = byte(secs)
	buf[1] = byte(secs >> 8)
	buf[2] = byte(secs >> 16)
	buf[3] = byte(secs >> 24)
	buf[4] = byte(num)
	buf[5] = byte(num >> 8)
	buf[6] = byte(num >> 16)
	buf[7] = byte(num >> 24)
	dfLenWords := testPacketSize / 8
	buf[8] = byte(dfLenWords)
	return buf
}

func TestShardEmptyAndClear(t *testing.T) {
	s := &Shard{PacketSize: testPacketSize}
	require.True(t, s.Empty())

	s.Staging = append(frame(1, 0), frame(1, 1)...)
	s.FrameCount = 2
	require.False(t, s.Empty())

	s.Clear()
	require.True(t, s.Empty())
	require.Nil(t, s.Staging)
}

func TestShardFirstAndLastHeader(t *testing.T) {
	s := &Shard{PacketSize: testPacketSize}
	s.Staging = append(frame(500, 10), frame(500, 11)...)
	s.FrameCount = 2

	first := s.FirstHeader()
	require.Equal(t, uint32(500), first.SecsInRe)
	require.Equal(t, uint32(10), first.DFNumInSec)

	last := s.LastHeader()
	require.Equal(t, uint32(11), last.DFNumInSec)

	require.Equal(t, vdifheader.Timestamp{Secs: 500, Frame: 10}, s.First())
	require.Equal(t, vdifheader.Timestamp{Secs: 500, Frame: 11}, s.Last())
}

func TestShardFirstHeaderPanicsWhenEmpty(t *testing.T) {
	s := &Shard{PacketSize: testPacketSize}
	require.Panics(t, func() { s.FirstHeader() })
	require.Panics(t, func() { s.LastHeader() })
}

func TestShardFirstLastZeroWhenEmpty(t *testing.T) {
	s := &Shard{PacketSize: testPacketSize}
	require.Equal(t, vdifheader.Timestamp{}, s.First())
	require.Equal(t, vdifheader.Timestamp{}, s.Last())
}

func TestShardDead(t *testing.T) {
	s := &Shard{}
	require.True(t, s.Dead(), "a shard with no SG accessor is considered dead")
}

func TestShardReport(t *testing.T) {
	s := &Shard{Path: "m0/d0/data.sg", BlockIndex: 3, PacketSize: testPacketSize}
	empty := s.Report()
	require.False(t, empty.HasData)
	require.Equal(t, int64(3), empty.BlockIndex)

	s.Staging = frame(500, 7)
	s.FrameCount = 1
	r := s.Report()
	require.True(t, r.HasData)
	require.Equal(t, vdifheader.Timestamp{Secs: 500, Frame: 7}, r.First)
	require.Equal(t, r.First, r.Last)
}

func TestTimeRangeAdaptsFrameCount(t *testing.T) {
	s := &Shard{PacketSize: testPacketSize}
	s.Staging = append(frame(1, 0), frame(1, 1)...)
	s.FrameCount = 2

	tr := TimeRange{Shard: s}
	require.Equal(t, 2, tr.FrameCount())
	require.Equal(t, s.First(), tr.First())
	require.Equal(t, s.Last(), tr.Last())
}

func TestLogFields(t *testing.T) {
	s := &Shard{Path: "m1/d2/data.sg", Module: 1, Disk: 2, BlockIndex: 5, FrameCount: 9}
	f := s.LogFields()
	require.Equal(t, "m1/d2/data.sg", f["path"])
	require.Equal(t, 1, f["module"])
	require.Equal(t, 2, f["disk"])
	require.Equal(t, int64(5), f["block_index"])
	require.Equal(t, 9, f["frame_count"])
}
