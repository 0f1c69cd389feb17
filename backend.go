package padsp

import "context"

/*------------------------------------------------------------------
 *
 * Purpose: Backend is the service-provider boundary a concrete
 *	host API or driver module implements. It is the collaborator
 *	the original engine's pa_hostapi.h/pa_stream.h split out as
 *	"the part every platform does differently" — device enumeration,
 *	buffer-ready notification, and raw transport — leaving the host
 *	loop (C7) and buffer processor (C4) to do all the adaptation work
 *	identically on every platform. backend/loopback and backend/paio
 *	are the two concrete implementations shipped with this module.
 *
 *---------------------------------------------------------------*/

// HostSlot is one contiguous run of host-buffer frames available for a
// single direction, addressed as one ChannelDescriptor per channel. A
// backend reports up to two slots per direction per WaitForData call,
// matching a ring buffer's wraparound split.
type HostSlot struct {
	FrameCount int
	Channels   []ChannelDescriptor
}

// BufferSlots describes what's ready to process on one WaitForData
// return, in both directions.
type BufferSlots struct {
	Input  [2]HostSlot
	Output [2]HostSlot
}

// BackendOpenParams is what Open needs to negotiate a concrete
// transport: the two directions' parameters (nil for an unused
// direction) and the sample rate.
type BackendOpenParams struct {
	SampleRate              float64
	Input                   *StreamParameters
	Output                  *StreamParameters
	FramesPerHostBufferHint int
}

// BackendInfo is what Open reports back: the native host buffer shape
// and format, and the latencies the backend can actually deliver (which
// may differ from StreamParameters.SuggestedLatency).
type BackendInfo struct {
	FramesPerHostBuffer int
	HostBufferSizeMode  HostBufferSizeMode

	NativeInputFormat  SampleFormat
	NativeOutputFormat SampleFormat

	InputLatency  float64
	OutputLatency float64
}

// Backend is the service-provider interface the host loop drives. Open,
// Start and Close are called from the application thread (OpenStream,
// StartStream, CloseStream). When output priming is requested, Start's
// caller also calls WaitForData on the application thread before Start.
// Once the stream runs, WaitForData, Stop and Abort are called from the
// host loop's own worker goroutine; WaitForData must be safe to call
// repeatedly in that single-goroutine loop.
type Backend interface {
	// Open prepares the transport for the given parameters. It does not
	// start data flow.
	Open(params BackendOpenParams) (BackendInfo, error)

	// Start begins data flow. Called once per Start().
	Start() error

	// Stop ends data flow after any buffered output has drained.
	Stop() error

	// Abort ends data flow immediately, discarding any buffered output.
	Abort() error

	// Close releases all resources acquired by Open. Valid only after
	// Stop or Abort.
	Close() error

	// WaitForData blocks until at least one frame is ready in some
	// direction, ctx is done, or an unrecoverable transport error
	// occurs. On success it returns the TimeInfo latched at the moment
	// of readiness, the ready buffer slots, and any underflow/overflow
	// status observed since the previous call.
	WaitForData(ctx context.Context) (TimeInfo, BufferSlots, StatusFlags, error)
}
