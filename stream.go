package padsp

import "unsafe"

/*------------------------------------------------------------------
 *
 * Purpose: Stream representation (C6) and the shared types the
 *	buffer processor, host loop and public API surface agree on:
 *	stream parameters, the callback contract, flags and status bits.
 *
 *---------------------------------------------------------------*/

// StreamFlags is the bitmask applications pass to Open.
type StreamFlags uint32

const (
	FlagClipOff StreamFlags = 1 << iota
	FlagDitherOff
	FlagNeverDropInput
	FlagPrimeOutputBuffersUsingStreamCallback
	// FlagPlatformSpecificMask reserves the high bits for backend-
	// specific flags, the way PaStreamFlags reserves
	// paPlatformSpecificFlags.
	FlagPlatformSpecificMask StreamFlags = 0xFFFF0000
)

func (f StreamFlags) clipEnabled() bool   { return f&FlagClipOff == 0 }
func (f StreamFlags) ditherEnabled() bool { return f&FlagDitherOff == 0 }
func (f StreamFlags) neverDropInput() bool {
	return f&FlagNeverDropInput != 0
}
func (f StreamFlags) primeUsingCallback() bool {
	return f&FlagPrimeOutputBuffersUsingStreamCallback != 0
}

// StatusFlags is the bitmask passed to the callback via TimeInfo's sibling
// status parameter on every invocation.
type StatusFlags uint32

const (
	StatusInputUnderflow StatusFlags = 1 << iota
	StatusInputOverflow
	StatusOutputUnderflow
	StatusOutputOverflow
	StatusPrimingOutput
)

// Verdict is the callback's terminal return value.
type Verdict int

const (
	Continue Verdict = iota
	Complete
	Abort
)

// TimeInfo carries the three seconds-valued clocks passed to the
// application callback on every invocation.
type TimeInfo struct {
	InputBufferAdcTime  float64
	CurrentTime         float64
	OutputBufferDacTime float64
}

// Buffer is what the callback receives for one direction. Exactly one of
// Interleaved or Channels is populated, chosen at Open time by whether the
// application's SampleFormat carries FormatNonInterleaved. A nil *Buffer
// means that direction is absent (e.g. the output side of an input-only
// stream, or the input side while priming output).
type Buffer struct {
	Interleaved unsafe.Pointer
	Channels    []unsafe.Pointer
}

// Callback is the application-supplied real-time function. It must not
// block, allocate, or call any library function besides the CPU-load and
// stream-time getters; it must fill the entire output buffer regardless
// of verdict, except that Abort may leave it partially filled.
type Callback func(input, output *Buffer, frameCount int, timeInfo TimeInfo, status StatusFlags, userData any) Verdict

// StreamParameters describes one direction of a stream at Open time.
type StreamParameters struct {
	DeviceIndex            int
	ChannelCount           int
	SampleFormat           SampleFormat
	SuggestedLatency       float64
	HostAPISpecificInfo    any
}

// NoDevice is the sentinel DeviceIndex meaning "none" — used for the
// unused direction of a half-duplex stream.
const NoDevice = -1

// FinishedCallback is invoked exactly once per Start -> terminal
// transition, from the worker thread, unless the stop was externally
// driven (Stop/Abort called from the application thread).
type FinishedCallback func(userData any)

// Stream is the per-stream record (C6): parameter snapshots, reported
// latencies, sample rate, the finished-callback hook, and the backend
// worker that owns it. Applications see only an opaque handle; exported
// fields exist for backend implementers, not for application code.
type Stream struct {
	InputParameters  *StreamParameters
	OutputParameters *StreamParameters
	SampleRate       float64

	InputLatency  float64
	OutputLatency float64

	finishedCallback FinishedCallback
	userData         any

	processor *BufferProcessor
	loop      *HostLoop
	cpuLoad   *CPULoadMeasurer

	backend Backend
}

// IsStopped reports whether the stream's worker has no active run.
func (s *Stream) IsStopped() bool {
	if s.loop == nil {
		return true
	}
	return s.loop.isStopped()
}

// IsActive reports whether the stream's worker is between Start and its
// terminal transition.
func (s *Stream) IsActive() bool {
	if s.loop == nil {
		return false
	}
	return s.loop.isActive()
}

// Time returns the stream's current monotonically increasing clock, in
// seconds, as observed by the worker.
func (s *Stream) Time() float64 {
	if s.loop == nil {
		return 0
	}
	return s.loop.streamTime()
}

// CPULoad returns the most recent CPU-load EWMA fraction.
func (s *Stream) CPULoad() float64 {
	if s.cpuLoad == nil {
		return 0
	}
	return s.cpuLoad.Load()
}

// LastError returns the error that ended the stream's most recent run —
// e.g. TimedOut if the backend stopped answering WaitForData — or nil if
// it is still running or last ended without one.
func (s *Stream) LastError() *Error {
	if s.loop == nil {
		return nil
	}
	return s.loop.Err()
}
