// Package paio is the real-hardware padsp.Backend: a thin wrapper
// around github.com/gordonklaus/portaudio's blocking (non-callback)
// stream mode, used purely as a raw-frame transport. All adaptation —
// block-size matching, format conversion, dithering, the host event
// loop's state machine — stays in package padsp; this package's only
// job is to hand it float32 frames from and to the actual device,
// the way a host API's waveform-file-handle layer feeds the engine's
// buffer processor in the reference implementation.
package paio

import (
	"context"
	"fmt"
	"time"
	"unsafe"

	gopa "github.com/gordonklaus/portaudio"

	"github.com/kd7yne/padsp"
)

// Config names the devices and channel counts to open. The device
// indexes select from the list portaudio's Devices() returns; zero is
// the first device in that list, not necessarily the system default.
// InputChannels or OutputChannels may be zero for a half-duplex stream.
type Config struct {
	InputDeviceIndex  int
	OutputDeviceIndex int
	InputChannels     int
	OutputChannels    int
	FramesPerBuffer   int
}

// Backend drives one gordonklaus/portaudio blocking stream.
type Backend struct {
	cfg Config

	stream *gopa.Stream
	in     []float32
	out    []float32

	sampleRate    float64
	inputLatency  float64
	outputLatency float64
	iteration     uint64
}

// New constructs an unopened backend. gopa.Initialize must already have
// been called by the embedding application (portaudio's own process-wide
// init, distinct from padsp.Initialize).
func New(cfg Config) *Backend {
	return &Backend{cfg: cfg}
}

func (b *Backend) deviceParameters(channels, deviceIndex int, latency time.Duration) (gopa.StreamDeviceParameters, error) {
	if channels == 0 {
		return gopa.StreamDeviceParameters{}, nil
	}
	devices, err := gopa.Devices()
	if err != nil {
		return gopa.StreamDeviceParameters{}, err
	}
	if deviceIndex < 0 || deviceIndex >= len(devices) {
		return gopa.StreamDeviceParameters{}, fmt.Errorf("paio: device index %d out of range", deviceIndex)
	}
	return gopa.StreamDeviceParameters{
		Device:   devices[deviceIndex],
		Channels: channels,
		Latency:  latency,
	}, nil
}

// Open negotiates and opens the underlying blocking portaudio stream.
func (b *Backend) Open(params padsp.BackendOpenParams) (padsp.BackendInfo, error) {
	framesPerBuffer := b.cfg.FramesPerBuffer
	if params.FramesPerHostBufferHint > 0 {
		framesPerBuffer = params.FramesPerHostBufferHint
	}
	if framesPerBuffer <= 0 {
		framesPerBuffer = 256
	}
	b.sampleRate = params.SampleRate

	sp := gopa.StreamParameters{
		SampleRate:      params.SampleRate,
		FramesPerBuffer: framesPerBuffer,
	}

	if b.cfg.InputChannels > 0 {
		latency := time.Duration(0)
		if params.Input != nil {
			latency = time.Duration(params.Input.SuggestedLatency * float64(time.Second))
			b.inputLatency = params.Input.SuggestedLatency
		}
		dp, err := b.deviceParameters(b.cfg.InputChannels, b.cfg.InputDeviceIndex, latency)
		if err != nil {
			return padsp.BackendInfo{}, err
		}
		sp.Input = dp
		b.in = make([]float32, framesPerBuffer*b.cfg.InputChannels)
	}
	if b.cfg.OutputChannels > 0 {
		latency := time.Duration(0)
		if params.Output != nil {
			latency = time.Duration(params.Output.SuggestedLatency * float64(time.Second))
			b.outputLatency = params.Output.SuggestedLatency
		}
		dp, err := b.deviceParameters(b.cfg.OutputChannels, b.cfg.OutputDeviceIndex, latency)
		if err != nil {
			return padsp.BackendInfo{}, err
		}
		sp.Output = dp
		b.out = make([]float32, framesPerBuffer*b.cfg.OutputChannels)
	}

	var stream *gopa.Stream
	var err error
	switch {
	case b.cfg.InputChannels > 0 && b.cfg.OutputChannels > 0:
		stream, err = gopa.OpenStream(sp, b.in, b.out)
	case b.cfg.InputChannels > 0:
		stream, err = gopa.OpenStream(sp, b.in)
	default:
		stream, err = gopa.OpenStream(sp, b.out)
	}
	if err != nil {
		return padsp.BackendInfo{}, err
	}
	b.stream = stream

	return padsp.BackendInfo{
		FramesPerHostBuffer: framesPerBuffer,
		HostBufferSizeMode:  padsp.BoundedPartialUsageAllowed,
		NativeInputFormat:   padsp.FormatFloat32,
		NativeOutputFormat:  padsp.FormatFloat32,
		InputLatency:        b.inputLatency,
		OutputLatency:       b.outputLatency,
	}, nil
}

// Start starts the underlying device.
func (b *Backend) Start() error { return b.stream.Start() }

// Stop drains and stops the underlying device.
func (b *Backend) Stop() error { return b.stream.Stop() }

// Abort stops the underlying device immediately.
func (b *Backend) Abort() error { return b.stream.Abort() }

// Close releases the underlying device.
func (b *Backend) Close() error { return b.stream.Close() }

// WaitForData performs one blocking Read followed by one blocking
// Write on the portaudio stream's bound buffers, honoring ctx
// cancellation by racing the blocking call against ctx.Done in a
// helper goroutine — portaudio's blocking API has no native context
// support. TimeInfo is derived from the accumulated frame count rather
// than queried from the stream, since it advances in exact lockstep
// with the buffers we just filled.
func (b *Backend) WaitForData(ctx context.Context) (padsp.TimeInfo, padsp.BufferSlots, padsp.StatusFlags, error) {
	errCh := make(chan error, 1)
	go func() {
		if b.cfg.InputChannels > 0 {
			if err := b.stream.Read(); err != nil {
				errCh <- err
				return
			}
		}
		if b.cfg.OutputChannels > 0 {
			errCh <- b.stream.Write()
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return padsp.TimeInfo{}, padsp.BufferSlots{}, 0, ctx.Err()
	case err := <-errCh:
		if err != nil {
			return padsp.TimeInfo{}, padsp.BufferSlots{}, 0, err
		}
	}

	slots := padsp.BufferSlots{}
	framesThisCall := 0
	if b.cfg.InputChannels > 0 {
		framesThisCall = len(b.in) / b.cfg.InputChannels
		slots.Input[0] = padsp.HostSlot{
			FrameCount: framesThisCall,
			Channels:   floatDescriptors(b.in, b.cfg.InputChannels),
		}
	}
	if b.cfg.OutputChannels > 0 {
		framesThisCall = len(b.out) / b.cfg.OutputChannels
		slots.Output[0] = padsp.HostSlot{
			FrameCount: framesThisCall,
			Channels:   floatDescriptors(b.out, b.cfg.OutputChannels),
		}
	}

	b.iteration++
	elapsed := float64(b.iteration) * float64(framesThisCall) / b.sampleRate

	timeInfo := padsp.TimeInfo{
		CurrentTime:         elapsed,
		OutputBufferDacTime: elapsed + b.outputLatency,
		InputBufferAdcTime:  elapsed - b.inputLatency,
	}

	return timeInfo, slots, 0, nil
}

func floatDescriptors(buf []float32, channels int) []padsp.ChannelDescriptor {
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
