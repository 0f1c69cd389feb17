// Package loopback provides a pure-Go, dependency-free padsp.Backend
// for tests and property checks: a deterministic in-memory "device"
// that hands the host loop freshly generated input each call and
// records whatever the buffer processor writes to its output side.
package loopback

import (
	"context"
	"sync"
	"unsafe"

	"github.com/kd7yne/padsp"
)

// InputSource fills one interleaved block of input samples, in the
// native format's storage representation, for one WaitForData call.
// frameCount is always config.FramesPerHostBuffer.
type InputSource func(frameCount, channelCount int, out []float32)

// Config describes a simulated device.
type Config struct {
	SampleRate           float64
	InputChannels        int
	OutputChannels       int
	FramesPerHostBuffer  int
	Source               InputSource
	// StatusSequence cycles one padsp.StatusFlags value per
	// WaitForData call, letting tests exercise underflow/overflow
	// status reporting deterministically. A nil or empty sequence
	// always reports zero status.
	StatusSequence []padsp.StatusFlags

	// SlipAtIteration, when positive, makes the WaitForData call of
	// that 1-based iteration report both host slots populated at once
	// in whichever directions are open — simulating a consumer that
	// fell a full cycle behind a ring buffer's wraparound, the
	// condition the host loop's catch-up policy exists to handle.
	SlipAtIteration int
}

// Backend is a loopback.Config in use by one open stream.
type Backend struct {
	cfg Config

	mu            sync.Mutex
	inputNative   []float32
	outputNative  []float32
	outputHistory [][]float32
	iteration     int
	closed        bool
}

// New constructs an unopened backend from cfg.
func New(cfg Config) *Backend {
	return &Backend{cfg: cfg}
}

// Open satisfies padsp.Backend. The native format is always Float32
// interleaved; loopback exists to exercise the engine's adaptation
// logic, not format conversion edge cases, though callers are free to
// open the stream with any application-side SampleFormat and let the
// converter matrix do its job.
func (b *Backend) Open(params padsp.BackendOpenParams) (padsp.BackendInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.InputChannels > 0 {
		b.inputNative = make([]float32, b.cfg.FramesPerHostBuffer*b.cfg.InputChannels)
	}
	if b.cfg.OutputChannels > 0 {
		b.outputNative = make([]float32, b.cfg.FramesPerHostBuffer*b.cfg.OutputChannels)
	}

	return padsp.BackendInfo{
		FramesPerHostBuffer: b.cfg.FramesPerHostBuffer,
		HostBufferSizeMode:  padsp.Fixed,
		NativeInputFormat:   padsp.FormatFloat32,
		NativeOutputFormat:  padsp.FormatFloat32,
	}, nil
}

// Start is a no-op: there is no device to arm.
func (b *Backend) Start() error { return nil }

// Stop is a no-op.
func (b *Backend) Stop() error { return nil }

// Abort is a no-op.
func (b *Backend) Abort() error { return nil }

// Close marks the backend closed. It does not release the scratch
// buffers, and RecordedOutput stays readable afterwards.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// WaitForData never blocks: loopback has no real transport latency. It
// regenerates the input block from Config.Source (silence if nil),
// snapshots whatever was written to the output block on the previous
// call into RecordedOutput, and reports the next StatusSequence entry.
func (b *Backend) WaitForData(ctx context.Context) (padsp.TimeInfo, padsp.BufferSlots, padsp.StatusFlags, error) {
	select {
	case <-ctx.Done():
		return padsp.TimeInfo{}, padsp.BufferSlots{}, 0, ctx.Err()
	default:
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputChannels > 0 && b.iteration > 0 {
		snapshot := make([]float32, len(b.outputNative))
		copy(snapshot, b.outputNative)
		b.outputHistory = append(b.outputHistory, snapshot)
	}

	if b.cfg.InputChannels > 0 {
		if b.cfg.Source != nil {
			b.cfg.Source(b.cfg.FramesPerHostBuffer, b.cfg.InputChannels, b.inputNative)
		} else {
			for i := range b.inputNative {
				b.inputNative[i] = 0
			}
		}
	}

	status := padsp.StatusFlags(0)
	if n := len(b.cfg.StatusSequence); n > 0 {
		status = b.cfg.StatusSequence[b.iteration%n]
	}

	slipping := b.cfg.SlipAtIteration > 0 && b.iteration+1 == b.cfg.SlipAtIteration

	slots := padsp.BufferSlots{}
	if b.cfg.InputChannels > 0 {
		slot := padsp.HostSlot{
			FrameCount: b.cfg.FramesPerHostBuffer,
			Channels:   interleavedDescriptors(b.inputNative, b.cfg.InputChannels),
		}
		slots.Input[0] = slot
		if slipping {
			slots.Input[1] = slot
		}
	}
	if b.cfg.OutputChannels > 0 {
		slot := padsp.HostSlot{
			FrameCount: b.cfg.FramesPerHostBuffer,
			Channels:   interleavedDescriptors(b.outputNative, b.cfg.OutputChannels),
		}
		slots.Output[0] = slot
		if slipping {
			slots.Output[1] = slot
		}
	}

	b.iteration++

	t := padsp.TimeInfo{
		CurrentTime:         float64(b.iteration) * float64(b.cfg.FramesPerHostBuffer) / b.cfg.SampleRate,
		OutputBufferDacTime: float64(b.iteration) * float64(b.cfg.FramesPerHostBuffer) / b.cfg.SampleRate,
	}

	return t, slots, status, nil
}

// RecordedOutput returns every completed output block, in call order,
// as interleaved float32 frames. Safe to call once the stream is
// stopped.
func (b *Backend) RecordedOutput() [][]float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]float32, len(b.outputHistory))
	copy(out, b.outputHistory)
	return out
}

func interleavedDescriptors(buf []float32, channels int) []padsp.ChannelDescriptor {
	descs := make([]padsp.ChannelDescriptor, channels)
	if len(buf) == 0 {
		return descs
	}
	base := unsafe.Pointer(&buf[0])
	for i := 0; i < channels; i++ {
		descs[i] = padsp.InterleavedChannel(base, i, channels, 4)
	}
	return descs
}
