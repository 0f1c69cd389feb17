package loopback

import (
	"context"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kd7yne/padsp"
)

func TestLoopbackWaitForDataNeverBlocks(t *testing.T) {
	b := New(Config{SampleRate: 48000, InputChannels: 1, OutputChannels: 1, FramesPerHostBuffer: 32})
	_, err := b.Open(padsp.BackendOpenParams{SampleRate: 48000})
	require.NoError(t, err)

	_, slots, _, err := b.WaitForData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 32, slots.Input[0].FrameCount)
	assert.Equal(t, 32, slots.Output[0].FrameCount)
}

func TestLoopbackStatusSequenceCycles(t *testing.T) {
	b := New(Config{
		SampleRate:          48000,
		OutputChannels:      1,
		FramesPerHostBuffer: 16,
		StatusSequence:      []padsp.StatusFlags{padsp.StatusOutputUnderflow, 0},
	})
	_, err := b.Open(padsp.BackendOpenParams{SampleRate: 48000})
	require.NoError(t, err)

	_, _, s0, err := b.WaitForData(context.Background())
	require.NoError(t, err)
	_, _, s1, err := b.WaitForData(context.Background())
	require.NoError(t, err)
	_, _, s2, err := b.WaitForData(context.Background())
	require.NoError(t, err)

	assert.Equal(t, padsp.StatusOutputUnderflow, s0)
	assert.Equal(t, padsp.StatusFlags(0), s1)
	assert.Equal(t, padsp.StatusOutputUnderflow, s2)
}

func TestLoopbackSourceFeedsInput(t *testing.T) {
	source := func(frameCount, channelCount int, out []float32) {
		for i := range out {
			out[i] = 1
		}
	}
	b := New(Config{SampleRate: 48000, InputChannels: 1, FramesPerHostBuffer: 8, Source: source})
	_, err := b.Open(padsp.BackendOpenParams{SampleRate: 48000})
	require.NoError(t, err)

	_, slots, _, err := b.WaitForData(context.Background())
	require.NoError(t, err)

	ch := slots.Input[0].Channels[0]
	assert.Equal(t, float32(1), *(*float32)(ch.Data))
}

func TestLoopbackWaitForDataRespectsCancellation(t *testing.T) {
	b := New(Config{SampleRate: 48000, OutputChannels: 1, FramesPerHostBuffer: 8})
	_, err := b.Open(padsp.BackendOpenParams{SampleRate: 48000})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, err = b.WaitForData(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoopbackSlipAtIterationReportsBothSlots(t *testing.T) {
	b := New(Config{
		SampleRate:          48000,
		InputChannels:       1,
		OutputChannels:      1,
		FramesPerHostBuffer: 8,
		SlipAtIteration:     2,
	})
	_, err := b.Open(padsp.BackendOpenParams{SampleRate: 48000})
	require.NoError(t, err)

	_, slots, _, err := b.WaitForData(context.Background())
	require.NoError(t, err)
	assert.Zero(t, slots.Input[1].FrameCount)
	assert.Zero(t, slots.Output[1].FrameCount)

	_, slots, _, err = b.WaitForData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, slots.Input[0].FrameCount)
	assert.Equal(t, 8, slots.Input[1].FrameCount)
	assert.Equal(t, 8, slots.Output[0].FrameCount)
	assert.Equal(t, 8, slots.Output[1].FrameCount)

	_, slots, _, err = b.WaitForData(context.Background())
	require.NoError(t, err)
	assert.Zero(t, slots.Input[1].FrameCount)
	assert.Zero(t, slots.Output[1].FrameCount)
}

func TestLoopbackRecordsPriorOutputBlock(t *testing.T) {
	b := New(Config{SampleRate: 48000, OutputChannels: 1, FramesPerHostBuffer: 4})
	_, err := b.Open(padsp.BackendOpenParams{SampleRate: 48000})
	require.NoError(t, err)

	_, slots, _, err := b.WaitForData(context.Background())
	require.NoError(t, err)
	ch := slots.Output[0].Channels[0]
	for i := 0; i < 4; i++ {
		p := unsafe.Add(ch.Data, uintptr(i)*uintptr(ch.Stride)*4)
		*(*float32)(p) = 2
	}

	_, _, _, err = b.WaitForData(context.Background())
	require.NoError(t, err)

	recorded := b.RecordedOutput()
	require.Len(t, recorded, 1)
	for _, v := range recorded[0] {
		assert.Equal(t, float32(2), v)
	}
}
