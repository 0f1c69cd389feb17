package padsp

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func constantFillCallback(value float32, calls *int) Callback {
	return func(input, output *Buffer, frameCount int, t TimeInfo, status StatusFlags, userData any) Verdict {
		*calls++
		if output != nil {
			samples := unsafe.Slice((*float32)(output.Interleaved), frameCount)
			for i := range samples {
				samples[i] = value
			}
		}
		return Continue
	}
}

func TestCalculateFrameShift(t *testing.T) {
	// host=300, app=200: residue pattern is 200, 100 (mod 300), peak 200.
	assert.Equal(t, uint64(200), calculateFrameShift(300, 200))
	// Equal sizes never leave a residue.
	assert.Equal(t, uint64(0), calculateFrameShift(256, 256))
}

func TestGCDLCM(t *testing.T) {
	assert.Equal(t, uint64(4), gcd(12, 8))
	assert.Equal(t, uint64(24), lcm(12, 8))
}

func TestNonAdaptingOutputOnlyFillsHostBuffer(t *testing.T) {
	const frames = 64
	calls := 0

	bp, err := NewBufferProcessor(BufferProcessorConfig{
		NumOutputChannels:          1,
		ApplicationOutputFormat:    FormatFloat32,
		HostOutputFormat:           FormatFloat32,
		SampleRate:                 48000,
		FramesPerApplicationBuffer: frames,
		FramesPerHostBuffer:        frames,
		HostBufferSizeMode:         Fixed,
		Callback:                   constantFillCallback(0.25, &calls),
	})
	require.NoError(t, err)
	assert.True(t, bp.useNonAdaptingProcess)

	host := make([]float32, frames)
	bp.SetOutputFrameCount(frames)
	bp.SetOutputChannel(0, unsafe.Pointer(&host[0]), 1)

	bp.BeginProcessing(TimeInfo{})
	processed, verdict := bp.EndProcessing(0)

	assert.Equal(t, frames, processed)
	assert.Equal(t, Continue, verdict)
	assert.Equal(t, 1, calls)
	for _, v := range host {
		assert.Equal(t, float32(0.25), v)
	}
}

func TestAdaptingOutputOnlyAccumulatesAcrossHostCalls(t *testing.T) {
	const appFrames = 512
	const hostFrames = 256
	calls := 0

	bp, err := NewBufferProcessor(BufferProcessorConfig{
		NumOutputChannels:          1,
		ApplicationOutputFormat:    FormatFloat32,
		HostOutputFormat:           FormatFloat32,
		SampleRate:                 48000,
		FramesPerApplicationBuffer: appFrames,
		FramesPerHostBuffer:        hostFrames,
		HostBufferSizeMode:         UnknownHostBufferSize,
		Callback:                   constantFillCallback(0.5, &calls),
	})
	require.NoError(t, err)
	assert.False(t, bp.useNonAdaptingProcess)

	host := make([]float32, hostFrames)

	bp.SetOutputFrameCount(hostFrames)
	bp.SetOutputChannel(0, unsafe.Pointer(&host[0]), 1)
	bp.BeginProcessing(TimeInfo{})
	processed, _ := bp.EndProcessing(0)
	assert.Equal(t, hostFrames, processed)
	assert.Equal(t, 1, calls, "first host block should trigger exactly one callback invocation")

	host2 := make([]float32, hostFrames)
	bp.SetOutputFrameCount(hostFrames)
	bp.SetOutputChannel(0, unsafe.Pointer(&host2[0]), 1)
	bp.BeginProcessing(TimeInfo{})
	processed2, _ := bp.EndProcessing(0)
	assert.Equal(t, hostFrames, processed2)
	assert.Equal(t, 1, calls, "second host block should drain the same callback output, no new invocation")

	for _, v := range host {
		assert.Equal(t, float32(0.5), v)
	}
	for _, v := range host2 {
		assert.Equal(t, float32(0.5), v)
	}
}

func TestAdaptingInputOnlyAccumulatesAcrossHostCalls(t *testing.T) {
	const appFrames = 512
	const hostFrames = 256
	calls := 0

	var capturedSum float64
	cb := func(input, output *Buffer, frameCount int, t TimeInfo, status StatusFlags, userData any) Verdict {
		calls++
		samples := unsafe.Slice((*float32)(input.Interleaved), frameCount)
		for _, s := range samples {
			capturedSum += float64(s)
		}
		return Continue
	}

	bp, err := NewBufferProcessor(BufferProcessorConfig{
		NumInputChannels:           1,
		ApplicationInputFormat:     FormatFloat32,
		HostInputFormat:            FormatFloat32,
		SampleRate:                 48000,
		FramesPerApplicationBuffer: appFrames,
		FramesPerHostBuffer:        hostFrames,
		HostBufferSizeMode:         UnknownHostBufferSize,
		Callback:                   cb,
	})
	require.NoError(t, err)

	for block := 0; block < 2; block++ {
		host := make([]float32, hostFrames)
		for i := range host {
			host[i] = 1
		}
		bp.SetInputFrameCount(hostFrames)
		bp.SetInputChannel(0, unsafe.Pointer(&host[0]), 1)
		bp.BeginProcessing(TimeInfo{})
		processed, _ := bp.EndProcessing(0)
		assert.Equal(t, hostFrames, processed)
	}

	assert.Equal(t, 1, calls)
	assert.Equal(t, float64(appFrames), capturedSum)
}

func TestFullDuplexNonAdaptingFrameBalance(t *testing.T) {
	// Property P1: in the non-adapting full-duplex path, frames consumed
	// from input equal frames produced to output for any host block size.
	rapid.Check(t, func(rt *rapid.T) {
		frames := rapid.IntRange(1, 2048).Draw(rt, "frames")
		calls := 0

		bp, err := NewBufferProcessor(BufferProcessorConfig{
			NumInputChannels:           1,
			NumOutputChannels:          1,
			ApplicationInputFormat:     FormatFloat32,
			HostInputFormat:            FormatFloat32,
			ApplicationOutputFormat:    FormatFloat32,
			HostOutputFormat:           FormatFloat32,
			SampleRate:                 48000,
			FramesPerApplicationBuffer: frames,
			FramesPerHostBuffer:        frames,
			HostBufferSizeMode:         Fixed,
			Callback: func(input, output *Buffer, frameCount int, ti TimeInfo, status StatusFlags, userData any) Verdict {
				calls++
				in := unsafe.Slice((*float32)(input.Interleaved), frameCount)
				out := unsafe.Slice((*float32)(output.Interleaved), frameCount)
				copy(out, in)
				return Continue
			},
		})
		require.NoError(rt, err)

		in := make([]float32, frames)
		out := make([]float32, frames)
		bp.SetInputFrameCount(frames)
		bp.SetInputChannel(0, unsafe.Pointer(&in[0]), 1)
		bp.SetOutputFrameCount(frames)
		bp.SetOutputChannel(0, unsafe.Pointer(&out[0]), 1)

		bp.BeginProcessing(TimeInfo{})
		processed, verdict := bp.EndProcessing(0)

		assert.Equal(rt, frames, processed)
		assert.Equal(rt, Continue, verdict)
		assert.Equal(rt, 1, calls)
	})
}

func TestAbortStopsFurtherBlocksInNonAdaptingProcess(t *testing.T) {
	const hostFrames = 128
	const tempFrames = 32 // multiple blocks per EndProcessing call
	calls := 0

	bp, err := NewBufferProcessor(BufferProcessorConfig{
		NumOutputChannels:       1,
		ApplicationOutputFormat: FormatFloat32,
		HostOutputFormat:        FormatFloat32,
		SampleRate:              48000,
		// FramesPerApplicationBuffer == 0 selects the non-adapting path
		// with a temp buffer sized from FramesPerHostBuffer, except we
		// want a smaller temp buffer to force multiple iterations; use
		// a fixed app buffer smaller than the host buffer instead, with
		// host a whole multiple of it.
		FramesPerApplicationBuffer: tempFrames,
		FramesPerHostBuffer:        hostFrames,
		HostBufferSizeMode:         Fixed,
		Callback: func(input, output *Buffer, frameCount int, ti TimeInfo, status StatusFlags, userData any) Verdict {
			calls++
			if calls == 2 {
				return Abort
			}
			return Continue
		},
	})
	require.NoError(t, err)
	assert.True(t, bp.useNonAdaptingProcess)

	host := make([]float32, hostFrames)
	bp.SetOutputFrameCount(hostFrames)
	bp.SetOutputChannel(0, unsafe.Pointer(&host[0]), 1)

	bp.BeginProcessing(TimeInfo{})
	processed, verdict := bp.EndProcessing(0)

	assert.Equal(t, Abort, verdict)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2*tempFrames, processed)
}
