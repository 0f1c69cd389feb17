package padsp_test

import (
	"context"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kd7yne/padsp"
	"github.com/kd7yne/padsp/backend/loopback"
)

func newTestLoop(t *testing.T, cb padsp.Callback, finished padsp.FinishedCallback) (*padsp.HostLoop, *loopback.Backend) {
	t.Helper()

	const sampleRate = 48000.0
	const frames = 64

	lb := loopback.New(loopback.Config{
		SampleRate:          sampleRate,
		OutputChannels:      1,
		FramesPerHostBuffer: frames,
	})
	_, err := lb.Open(padsp.BackendOpenParams{SampleRate: sampleRate})
	require.NoError(t, err)

	bp, err := padsp.NewBufferProcessor(padsp.BufferProcessorConfig{
		NumOutputChannels:          1,
		ApplicationOutputFormat:    padsp.FormatFloat32,
		HostOutputFormat:           padsp.FormatFloat32,
		SampleRate:                 sampleRate,
		FramesPerApplicationBuffer: frames,
		FramesPerHostBuffer:        frames,
		HostBufferSizeMode:         padsp.Fixed,
		Callback:                   cb,
	})
	require.NoError(t, err)

	cpuLoad := padsp.NewCPULoadMeasurer(sampleRate, 0)

	loop := padsp.NewHostLoop(padsp.HostLoopConfig{
		Backend:             lb,
		Processor:           bp,
		CPULoad:             cpuLoad,
		SampleRate:          sampleRate,
		FramesPerHostBuffer: frames,
		FinishedCallback:    finished,
	})
	return loop, lb
}

func TestHostLoopInvokesFinishedCallbackOnNaturalCompletion(t *testing.T) {
	var callCount int
	done := make(chan struct{})

	cb := func(input, output *padsp.Buffer, frameCount int, t padsp.TimeInfo, status padsp.StatusFlags, userData any) padsp.Verdict {
		callCount++
		samples := unsafe.Slice((*float32)(output.Interleaved), frameCount)
		for i := range samples {
			samples[i] = 0
		}
		if callCount >= 3 {
			return padsp.Complete
		}
		return padsp.Continue
	}

	finished := func(userData any) { close(done) }

	loop, _ := newTestLoop(t, cb, finished)
	require.NoError(t, loop.Start())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("finished callback never fired")
	}

	assert.GreaterOrEqual(t, callCount, 3)
}

func TestHostLoopStopDoesNotInvokeFinishedCallback(t *testing.T) {
	finishedCalled := false
	cb := func(input, output *padsp.Buffer, frameCount int, t padsp.TimeInfo, status padsp.StatusFlags, userData any) padsp.Verdict {
		samples := unsafe.Slice((*float32)(output.Interleaved), frameCount)
		for i := range samples {
			samples[i] = 0
		}
		return padsp.Continue
	}
	finished := func(userData any) { finishedCalled = true }

	loop, _ := newTestLoop(t, cb, finished)
	require.NoError(t, loop.Start())

	// Give the worker a moment to actually start spinning.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, loop.Stop())

	assert.False(t, finishedCalled)
}

func TestHostLoopAbortStopsQuickly(t *testing.T) {
	cb := func(input, output *padsp.Buffer, frameCount int, t padsp.TimeInfo, status padsp.StatusFlags, userData any) padsp.Verdict {
		samples := unsafe.Slice((*float32)(output.Interleaved), frameCount)
		for i := range samples {
			samples[i] = 0
		}
		return padsp.Continue
	}
	finished := func(userData any) {}

	loop, _ := newTestLoop(t, cb, finished)
	require.NoError(t, loop.Start())

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, loop.Abort())
}

func TestHostLoopPrimesOutputBeforeStart(t *testing.T) {
	const sampleRate = 48000.0
	const frames = 64

	lb := loopback.New(loopback.Config{
		SampleRate:          sampleRate,
		OutputChannels:      1,
		FramesPerHostBuffer: frames,
	})
	_, err := lb.Open(padsp.BackendOpenParams{SampleRate: sampleRate})
	require.NoError(t, err)

	var primingCalls, normalCalls int
	cb := func(input, output *padsp.Buffer, frameCount int, t padsp.TimeInfo, status padsp.StatusFlags, userData any) padsp.Verdict {
		samples := unsafe.Slice((*float32)(output.Interleaved), frameCount)
		for i := range samples {
			samples[i] = 0.5
		}
		if status&padsp.StatusPrimingOutput != 0 {
			assert.Nil(t, input)
			primingCalls++
			return padsp.Continue
		}
		normalCalls++
		if normalCalls >= 1 {
			return padsp.Complete
		}
		return padsp.Continue
	}

	done := make(chan struct{})
	finished := func(userData any) { close(done) }

	bp, err := padsp.NewBufferProcessor(padsp.BufferProcessorConfig{
		NumOutputChannels:          1,
		ApplicationOutputFormat:    padsp.FormatFloat32,
		HostOutputFormat:           padsp.FormatFloat32,
		SampleRate:                 sampleRate,
		FramesPerApplicationBuffer: frames,
		FramesPerHostBuffer:        frames,
		HostBufferSizeMode:         padsp.Fixed,
		Callback:                   cb,
	})
	require.NoError(t, err)

	cpuLoad := padsp.NewCPULoadMeasurer(sampleRate, 0)

	loop := padsp.NewHostLoop(padsp.HostLoopConfig{
		Backend:             lb,
		Processor:           bp,
		CPULoad:             cpuLoad,
		SampleRate:          sampleRate,
		FramesPerHostBuffer: frames,
		PrimeTargetFrames:   2 * frames,
		FinishedCallback:    finished,
	})

	require.NoError(t, loop.Start())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("finished callback never fired")
	}

	assert.GreaterOrEqual(t, primingCalls, 1, "expected at least one priming-status callback before the first normal block")
	assert.GreaterOrEqual(t, normalCalls, 1)
}

func TestHostLoopCatchUpPolicyReportsOverflowAndUnderflow(t *testing.T) {
	const sampleRate = 48000.0
	const frames = 32

	lb := loopback.New(loopback.Config{
		SampleRate:          sampleRate,
		InputChannels:       1,
		OutputChannels:      1,
		FramesPerHostBuffer: frames,
		SlipAtIteration:     2,
	})
	_, err := lb.Open(padsp.BackendOpenParams{SampleRate: sampleRate})
	require.NoError(t, err)

	var statuses []padsp.StatusFlags
	cb := func(input, output *padsp.Buffer, frameCount int, t padsp.TimeInfo, status padsp.StatusFlags, userData any) padsp.Verdict {
		statuses = append(statuses, status)
		samples := unsafe.Slice((*float32)(output.Interleaved), frameCount)
		for i := range samples {
			samples[i] = 0
		}
		if len(statuses) >= 3 {
			return padsp.Complete
		}
		return padsp.Continue
	}

	done := make(chan struct{})
	finished := func(userData any) { close(done) }

	bp, err := padsp.NewBufferProcessor(padsp.BufferProcessorConfig{
		NumInputChannels:           1,
		NumOutputChannels:          1,
		ApplicationInputFormat:     padsp.FormatFloat32,
		HostInputFormat:            padsp.FormatFloat32,
		ApplicationOutputFormat:    padsp.FormatFloat32,
		HostOutputFormat:           padsp.FormatFloat32,
		SampleRate:                 sampleRate,
		FramesPerApplicationBuffer: frames,
		FramesPerHostBuffer:        frames,
		HostBufferSizeMode:         padsp.Fixed,
		Callback:                   cb,
	})
	require.NoError(t, err)

	cpuLoad := padsp.NewCPULoadMeasurer(sampleRate, 0)

	loop := padsp.NewHostLoop(padsp.HostLoopConfig{
		Backend:             lb,
		Processor:           bp,
		CPULoad:             cpuLoad,
		SampleRate:          sampleRate,
		FramesPerHostBuffer: frames,
		FinishedCallback:    finished,
	})
	require.NoError(t, loop.Start())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("finished callback never fired")
	}

	require.GreaterOrEqual(t, len(statuses), 2)
	assert.NotZero(t, statuses[1]&padsp.StatusInputOverflow, "slip iteration should report InputOverflow")
	assert.NotZero(t, statuses[1]&padsp.StatusOutputUnderflow, "slip iteration should report OutputUnderflow")
}

func TestHostLoopTimesOutWhenBackendNeverAnswers(t *testing.T) {
	backend := &blockingBackend{}

	cb := func(input, output *padsp.Buffer, frameCount int, t padsp.TimeInfo, status padsp.StatusFlags, userData any) padsp.Verdict {
		return padsp.Continue
	}

	bp, err := padsp.NewBufferProcessor(padsp.BufferProcessorConfig{
		NumOutputChannels:          1,
		ApplicationOutputFormat:    padsp.FormatFloat32,
		HostOutputFormat:           padsp.FormatFloat32,
		SampleRate:                 48000,
		FramesPerApplicationBuffer: 64,
		FramesPerHostBuffer:        64,
		HostBufferSizeMode:         padsp.Fixed,
		Callback:                   cb,
	})
	require.NoError(t, err)

	cpuLoad := padsp.NewCPULoadMeasurer(48000, 0)

	done := make(chan struct{})
	loop := padsp.NewHostLoop(padsp.HostLoopConfig{
		Backend:             backend,
		Processor:           bp,
		CPULoad:             cpuLoad,
		SampleRate:          48000,
		FramesPerHostBuffer: 64,
		FinishedCallback:    func(userData any) { close(done) },
	})

	require.NoError(t, loop.Start())

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("loop never reached its terminal state")
	}

	streamErr := loop.Err()
	require.NotNil(t, streamErr)
	assert.Equal(t, padsp.TimedOut, streamErr.Code)
}

// blockingBackend's WaitForData always runs out the context deadline
// without producing data, simulating a wedged device for the timeout
// watchdog test.
type blockingBackend struct{}

func (b *blockingBackend) Open(params padsp.BackendOpenParams) (padsp.BackendInfo, error) {
	return padsp.BackendInfo{
		FramesPerHostBuffer: 64,
		HostBufferSizeMode:  padsp.Fixed,
		NativeOutputFormat:  padsp.FormatFloat32,
	}, nil
}
func (b *blockingBackend) Start() error { return nil }
func (b *blockingBackend) Stop() error  { return nil }
func (b *blockingBackend) Abort() error { return nil }
func (b *blockingBackend) Close() error { return nil }
func (b *blockingBackend) WaitForData(ctx context.Context) (padsp.TimeInfo, padsp.BufferSlots, padsp.StatusFlags, error) {
	<-ctx.Done()
	return padsp.TimeInfo{}, padsp.BufferSlots{}, 0, ctx.Err()
}

func TestHostLoopRecordsOutputThroughLoopbackBackend(t *testing.T) {
	callCount := 0
	cb := func(input, output *padsp.Buffer, frameCount int, t padsp.TimeInfo, status padsp.StatusFlags, userData any) padsp.Verdict {
		callCount++
		samples := unsafe.Slice((*float32)(output.Interleaved), frameCount)
		for i := range samples {
			samples[i] = 0.75
		}
		if callCount >= 2 {
			return padsp.Complete
		}
		return padsp.Continue
	}

	done := make(chan struct{})
	finished := func(userData any) { close(done) }

	loop, lb := newTestLoop(t, cb, finished)
	require.NoError(t, loop.Start())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("finished callback never fired")
	}

	recorded := lb.RecordedOutput()
	require.NotEmpty(t, recorded)
	for _, v := range recorded[0] {
		assert.Equal(t, float32(0.75), v)
	}
}
