package padsp

import "sync/atomic"

/*------------------------------------------------------------------
 *
 * Purpose: Public entry points: process-wide Initialize/Terminate,
 *	OpenStream, and the Start/Stop/Abort/Close/query surface on the
 *	returned *Stream. This is the one file application code is
 *	expected to import against; everything else is internal
 *	machinery OpenStream wires together.
 *
 *---------------------------------------------------------------*/

var initialized atomic.Bool

// Initialize readies the library for use. Calling OpenStream before
// Initialize, or after Terminate, returns NotInitialized.
func Initialize() error {
	initialized.Store(true)
	logger.Debug("initialized")
	return nil
}

// Terminate releases any process-wide state. It does not close streams
// still open; applications must Close every stream first.
func Terminate() error {
	initialized.Store(false)
	logger.Debug("terminated")
	return nil
}

// OpenStream negotiates a backend, builds the buffer processor and host
// loop, and returns a Stream ready for Start. Exactly one of input and
// output may be nil for a half-duplex stream. tunables may be nil to
// use DefaultTunables().
func OpenStream(
	backend Backend,
	input *StreamParameters,
	output *StreamParameters,
	sampleRate float64,
	framesPerBuffer int,
	flags StreamFlags,
	callback Callback,
	userData any,
	finished FinishedCallback,
	tunables *Tunables,
) (*Stream, error) {
	if !initialized.Load() {
		return nil, NewError(NotInitialized, "call Initialize before OpenStream")
	}
	if backend == nil {
		return nil, NewError(BadIODeviceCombination, "OpenStream requires a backend")
	}
	if callback == nil {
		return nil, NewError(NullCallback, "OpenStream requires a callback")
	}
	if input == nil && output == nil {
		return nil, NewError(BadIODeviceCombination, "OpenStream requires at least one direction")
	}

	tn := DefaultTunables()
	if tunables != nil {
		tn = *tunables
	}

	var group AllocationGroup
	defer group.Release()

	info, err := backend.Open(BackendOpenParams{
		SampleRate:              sampleRate,
		Input:                   input,
		Output:                  output,
		FramesPerHostBufferHint: framesPerBuffer,
	})
	if err != nil {
		return nil, err
	}
	group.Defer(func() { _ = backend.Close() })

	cfg := BufferProcessorConfig{
		SampleRate:                 sampleRate,
		FramesPerApplicationBuffer: framesPerBuffer,
		FramesPerHostBuffer:        info.FramesPerHostBuffer,
		HostBufferSizeMode:         info.HostBufferSizeMode,
		StreamFlags:                flags,
		InputLatency:               info.InputLatency,
		OutputLatency:              info.OutputLatency,
		Callback:                   callback,
		UserData:                   userData,
	}
	if input != nil {
		cfg.NumInputChannels = input.ChannelCount
		cfg.ApplicationInputFormat = input.SampleFormat
		cfg.HostInputFormat = info.NativeInputFormat
	}
	if output != nil {
		cfg.NumOutputChannels = output.ChannelCount
		cfg.ApplicationOutputFormat = output.SampleFormat
		cfg.HostOutputFormat = info.NativeOutputFormat
	}

	processor, err := NewBufferProcessor(cfg)
	if err != nil {
		return nil, err
	}

	cpuLoad := NewCPULoadMeasurer(sampleRate, tn.CPULoadDecay)

	primeTargetFrames := 0
	if flags.primeUsingCallback() && output != nil {
		// Two host output slots' worth, the same ring-buffer
		// wraparound shape BufferSlots models everywhere else. Falls
		// back to twice the negotiated application block when the
		// backend's own host buffer size is unknown.
		switch {
		case info.FramesPerHostBuffer > 0:
			primeTargetFrames = 2 * info.FramesPerHostBuffer
		case framesPerBuffer > 0:
			primeTargetFrames = 2 * framesPerBuffer
		default:
			primeTargetFrames = 2 * defaultTempBufferFrames
		}
	}

	stream := &Stream{
		InputParameters:  input,
		OutputParameters: output,
		SampleRate:       sampleRate,
		InputLatency:     info.InputLatency,
		OutputLatency:    info.OutputLatency,
		finishedCallback: finished,
		userData:         userData,
		processor:        processor,
		cpuLoad:          cpuLoad,
		backend:          backend,
	}

	stream.loop = NewHostLoop(HostLoopConfig{
		Backend:                   backend,
		Processor:                 processor,
		CPULoad:                   cpuLoad,
		SampleRate:                sampleRate,
		FramesPerHostBuffer:       info.FramesPerHostBuffer,
		StreamFlags:               flags,
		PrimeTargetFrames:         primeTargetFrames,
		FinishedCallback:          finished,
		UserData:                  userData,
		PriorityThrottleThreshold: tn.PriorityThrottleThreshold,
	})

	group.Commit()
	logger.Info("stream opened", "sampleRate", sampleRate, "framesPerBuffer", framesPerBuffer)
	return stream, nil
}

// StartStream begins data flow on a stopped stream.
func StartStream(s *Stream) error {
	if s == nil {
		return NewError(BadStreamPtr, "nil stream")
	}
	return s.loop.Start()
}

// StopStream gracefully stops a stream, allowing any already-produced
// output to finish playing.
func StopStream(s *Stream) error {
	if s == nil {
		return NewError(BadStreamPtr, "nil stream")
	}
	return s.loop.Stop()
}

// AbortStream stops a stream immediately, discarding any buffered output.
func AbortStream(s *Stream) error {
	if s == nil {
		return NewError(BadStreamPtr, "nil stream")
	}
	return s.loop.Abort()
}

// CloseStream releases a stopped stream's backend resources. The stream
// must not be active.
func CloseStream(s *Stream) error {
	if s == nil {
		return NewError(BadStreamPtr, "nil stream")
	}
	if !s.IsStopped() {
		return NewError(StreamIsNotStopped, "CloseStream requires a stopped stream")
	}
	s.processor.Terminate()
	logger.Info("stream closed")
	return s.backend.Close()
}

// IsStreamStopped reports whether s has no active run.
func IsStreamStopped(s *Stream) bool { return s.IsStopped() }

// IsStreamActive reports whether s is between Start and its terminal
// transition.
func IsStreamActive(s *Stream) bool { return s.IsActive() }

// GetStreamTime returns s's current monotonically increasing clock.
func GetStreamTime(s *Stream) float64 { return s.Time() }

// GetStreamCpuLoad returns s's most recent CPU-load EWMA fraction.
func GetStreamCpuLoad(s *Stream) float64 { return s.CPULoad() }

// GetStreamInputLatency returns s's negotiated input latency in seconds.
func GetStreamInputLatency(s *Stream) float64 { return s.InputLatency }

// GetStreamOutputLatency returns s's negotiated output latency in seconds.
func GetStreamOutputLatency(s *Stream) float64 { return s.OutputLatency }

// GetStreamError returns the error that ended s's most recent run, or
// nil if it is still running or ended without one.
func GetStreamError(s *Stream) *Error { return s.LastError() }
