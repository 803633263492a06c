package readpipe

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cfa-haystack/vdifsg/internal/constants"
	"github.com/cfa-haystack/vdifsg/internal/sgfile"
	"github.com/cfa-haystack/vdifsg/internal/shard"
)

const testPacketSize = 8224

func frameBuf(n int, secs uint32, startFrame uint32) []byte {
	buf := make([]byte, n*testPacketSize)
	for i := 0; i < n; i++ {
		off := i * testPacketSize
		putU32LE(buf[off:off+4], secs)
		putU32LE(buf[off+4:off+8], startFrame+uint32(i))
		putU32LE(buf[off+8:off+12], uint32(testPacketSize/8))
	}
	return buf
}

func putU32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// newReadShard writes nBlocks write-blocks of framesPerBlock synthetic
// frames each, then reopens the file read-only, mirroring the shape a
// ReadPlan sees after a prior WritePlan has closed.
func newReadShard(t *testing.T, dir, name string, framesPerBlock, nBlocks int, secs uint32) *shard.Shard {
	t.Helper()
	path := filepath.Join(dir, name)

	wf, err := sgfile.Create(path)
	require.NoError(t, err)

	h := sgfile.FileHeaderTag{
		SyncWord:     constants.SyncWord,
		Version:      constants.FileVersion,
		PacketFormat: constants.PacketFormatVDIF,
		PacketSize:   testPacketSize,
		BlockSize:    uint32(testPacketSize*framesPerBlock + constants.WBlockHeaderTagSize),
	}
	require.NoError(t, wf.WriteFileHeader(h))

	for i := 0; i < nBlocks; i++ {
		payload := frameBuf(framesPerBlock, secs, uint32(i*framesPerBlock))
		require.NoError(t, wf.AppendBlock(uint32(i), payload))
	}
	require.NoError(t, wf.Finalize())
	require.NoError(t, wf.Close())

	rf, err := sgfile.Open(path)
	require.NoError(t, err)

	return &shard.Shard{Path: path, SG: rf, PacketSize: testPacketSize}
}

func TestFetchNextLeavesRetainedShardsAlone(t *testing.T) {
	dir := t.TempDir()
	sA := newReadShard(t, dir, "a.sg", 5, 2, 100)
	sB := newReadShard(t, dir, "b.sg", 5, 2, 100)
	shards := []*shard.Shard{sA, sB}

	ctx := context.Background()
	require.NoError(t, FetchNext(ctx, shards))
	require.Equal(t, 5, sA.FrameCount)
	require.Equal(t, 5, sB.FrameCount)
	require.Equal(t, int64(1), sA.BlockIndex)
	require.Equal(t, int64(1), sB.BlockIndex)

	// Simulate a merger step that only consumed sB's buffer: sA's
	// staging is retained and must not be touched by the next call.
	retainedStaging := sA.Staging
	sB.Clear()

	require.NoError(t, FetchNext(ctx, shards))

	require.Equal(t, &retainedStaging[0], &sA.Staging[0], "retained shard's staging buffer must not be replaced")
	require.Equal(t, 5, sA.FrameCount)
	require.Equal(t, int64(1), sA.BlockIndex, "retained shard must not fetch a new block")

	require.Equal(t, 5, sB.FrameCount)
	require.Equal(t, int64(2), sB.BlockIndex, "emptied shard must fetch its next block")
}

func TestFetchNextSkipsDeadShards(t *testing.T) {
	dir := t.TempDir()
	sA := newReadShard(t, dir, "a.sg", 5, 1, 100)
	shards := []*shard.Shard{sA}

	ctx := context.Background()
	require.NoError(t, FetchNext(ctx, shards))
	require.Equal(t, 5, sA.FrameCount)
	sA.Clear()

	require.True(t, sA.Dead())
	require.NoError(t, FetchNext(ctx, shards))
	require.Equal(t, 0, sA.FrameCount, "a dead shard has nothing left to fetch")
}

func TestFetchAtReadsFixedIndexRegardlessOfStagingState(t *testing.T) {
	dir := t.TempDir()
	sA := newReadShard(t, dir, "a.sg", 5, 2, 200)
	shards := []*shard.Shard{sA}

	ctx := context.Background()
	require.NoError(t, FetchAt(ctx, shards, 1))
	require.Equal(t, 5, sA.FrameCount)

	want, err := sA.SG.BlockRange(1)
	require.NoError(t, err)
	require.Equal(t, want, sA.Staging)
}

func TestEstimateOutputSizeSumsNominalPerShardBlockBytes(t *testing.T) {
	dir := t.TempDir()
	sA := newReadShard(t, dir, "a.sg", 5, 1, 300)
	sB := newReadShard(t, dir, "b.sg", 5, 1, 300)
	shards := []*shard.Shard{sA, sB}

	got := EstimateOutputSize(shards)
	nominalPerShard := (constants.WBlockSize / testPacketSize) * testPacketSize
	require.Equal(t, nominalPerShard*2, got)
}
