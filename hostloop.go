package padsp

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

/*------------------------------------------------------------------
 *
 * Purpose: Host event loop (C7) — the per-stream real-time worker.
 *	One goroutine per running stream repeatedly waits for the
 *	backend to report ready data, feeds it through the buffer
 *	processor, and honors the callback's verdict, all while tracking
 *	a small state machine: Stopped -> Starting -> Running ->
 *	{StopPending, Aborting} -> Finished -> Stopped.
 *
 *---------------------------------------------------------------*/

type loopState int32

const (
	loopStopped loopState = iota
	loopStarting
	loopRunning
	loopStopPending
	loopAborting
	loopFinished
)

const (
	// hostLoopMinTimeoutFactor/hostLoopMaxTimeoutFactor bound one
	// stream's wait behavior relative to its nominal host buffer
	// duration. hostLoopMinTimeoutFactor sizes the short poll timeout
	// each individual WaitForData call is given — long enough that a
	// healthy backend rarely times out, short enough that the loop
	// notices a Stop/Abort promptly. hostLoopMaxTimeoutFactor sizes the
	// *total* unanswered-wait budget (spec.md §4.7's "Timeouts"): once
	// accumulated DeadlineExceeded time crosses it, the backend is
	// considered wedged and the stream ends with TimedOut.
	hostLoopMinTimeoutFactor = 0.5
	hostLoopMaxTimeoutFactor = 1.5

	// hostLoopDefaultBufferSeconds covers streams whose host buffer
	// duration can't be computed (unknown host block size).
	hostLoopDefaultBufferSeconds = 0.1

	// hostLoopShutdownTimeout bounds how long Stop/Abort will wait for
	// the worker goroutine to exit before giving up on it.
	hostLoopShutdownTimeout = 1000 * time.Millisecond

	// priorityCheckInterval throttles how often the loop re-evaluates
	// scheduling priority against CPU load, to keep the syscall off the
	// hot path.
	priorityCheckInterval = 32
)

// HostLoopConfig bundles everything one running stream's worker needs.
type HostLoopConfig struct {
	Backend   Backend
	Processor *BufferProcessor
	CPULoad   *CPULoadMeasurer

	SampleRate          float64
	FramesPerHostBuffer int

	StreamFlags StreamFlags

	// PrimeTargetFrames is the total host output frame count the
	// worker must fill via the callback (StatusPrimingOutput, no
	// input) before Start calls Backend.Start, per spec.md's
	// "Priming". Zero disables priming even if StreamFlags requests
	// it (e.g. no output direction).
	PrimeTargetFrames int

	FinishedCallback FinishedCallback
	UserData         any

	// PriorityThrottleThreshold is the CPU-load fraction above which
	// the worker asks the OS for a less favorable scheduling priority,
	// trading its own headroom to avoid starving the rest of the
	// system when a callback is running hot. Zero disables throttling.
	PriorityThrottleThreshold float64
}

// HostLoop drives one stream's real-time worker goroutine.
type HostLoop struct {
	backend   Backend
	processor *BufferProcessor
	cpuLoad   *CPULoadMeasurer

	pollTimeout   float64
	maxWaitBudget float64

	neverDropInput    bool
	primeTargetFrames int

	priorityThreshold float64

	finishedCallback FinishedCallback
	userData         any

	state          atomic.Int32
	externalStop   atomic.Bool
	streamTimeBits atomic.Uint64
	lastError      atomic.Pointer[Error]

	cancel context.CancelFunc
	done   chan struct{}
}

// NewHostLoop builds a worker for one stream, not yet started.
func NewHostLoop(cfg HostLoopConfig) *HostLoop {
	bufferSeconds := hostLoopDefaultBufferSeconds
	if cfg.FramesPerHostBuffer > 0 && cfg.SampleRate > 0 {
		bufferSeconds = float64(cfg.FramesPerHostBuffer) / cfg.SampleRate
	}
	l := &HostLoop{
		backend:           cfg.Backend,
		processor:         cfg.Processor,
		cpuLoad:           cfg.CPULoad,
		pollTimeout:       hostLoopMinTimeoutFactor * bufferSeconds,
		maxWaitBudget:     hostLoopMaxTimeoutFactor * bufferSeconds,
		neverDropInput:    cfg.StreamFlags.neverDropInput(),
		primeTargetFrames: cfg.PrimeTargetFrames,
		priorityThreshold: cfg.PriorityThrottleThreshold,
		finishedCallback:  cfg.FinishedCallback,
		userData:          cfg.UserData,
	}
	l.state.Store(int32(loopStopped))
	return l
}

func (l *HostLoop) isStopped() bool {
	s := loopState(l.state.Load())
	return s == loopStopped || s == loopFinished
}

func (l *HostLoop) isActive() bool {
	s := loopState(l.state.Load())
	return s == loopStarting || s == loopRunning || s == loopStopPending || s == loopAborting
}

func (l *HostLoop) streamTime() float64 {
	return math.Float64frombits(l.streamTimeBits.Load())
}

func (l *HostLoop) setStreamTime(t float64) {
	l.streamTimeBits.Store(math.Float64bits(t))
}

// Err returns the error that ended the most recent run, or nil if the
// stream is still running or ended without one (a normal Stop/Abort/
// callback-driven Complete).
func (l *HostLoop) Err() *Error {
	return l.lastError.Load()
}

// Start transitions Stopped -> Starting, primes output if requested,
// arms the backend, and spawns the worker goroutine.
func (l *HostLoop) Start() error {
	if !l.isStopped() {
		return NewError(StreamIsNotStopped, "stream already active")
	}

	l.processor.Reset()
	l.cpuLoad.Reset()
	l.externalStop.Store(false)
	l.setStreamTime(0)
	l.lastError.Store(nil)
	l.state.Store(int32(loopStarting))

	if l.primeTargetFrames > 0 {
		if err := l.primeOutputBuffers(); err != nil {
			l.state.Store(int32(loopStopped))
			return err
		}
	}

	if err := l.backend.Start(); err != nil {
		l.state.Store(int32(loopStopped))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(ctx)
	return nil
}

// primeOutputBuffers implements spec.md §4.7's "Priming": before the
// backend's pins are started, invoke the callback (via
// BufferProcessor.PrimeOutput, which always passes a null input buffer
// and StatusPrimingOutput) enough times to fill primeTargetFrames of
// real host output, draining WaitForData itself to learn the backend's
// actual slot shape rather than assuming framesPerHostBuffer.
func (l *HostLoop) primeOutputBuffers() error {
	primed := 0
	for primed < l.primeTargetFrames {
		waitCtx, cancel := context.WithTimeout(context.Background(), time.Duration(l.pollTimeout*float64(time.Second)))
		_, slots, _, err := l.backend.WaitForData(waitCtx)
		cancel()
		if err != nil {
			return err
		}

		produced := 0
		if slots.Output[0].FrameCount > 0 {
			n, _ := l.processor.PrimeOutput(slots.Output[0].Channels, slots.Output[0].FrameCount)
			produced += n
		}
		if slots.Output[1].FrameCount > 0 {
			n, _ := l.processor.PrimeOutput(slots.Output[1].Channels, slots.Output[1].FrameCount)
			produced += n
		}
		if produced == 0 {
			// Backend has no output slots to offer yet; nothing more
			// can be primed ahead of Start.
			break
		}
		primed += produced
	}
	return nil
}

// Stop requests a graceful drain-and-stop: the worker finishes any
// in-flight processing block, tells the backend to stop, and does not
// invoke the finished callback (the application already knows it asked
// to stop).
func (l *HostLoop) Stop() error {
	if l.isStopped() {
		return NewError(StreamIsStopped, "stream already stopped")
	}
	l.externalStop.Store(true)
	l.state.Store(int32(loopStopPending))
	if l.cancel != nil {
		l.cancel()
	}
	l.awaitDone()
	return nil
}

// Abort requests an immediate stop, discarding any buffered output.
func (l *HostLoop) Abort() error {
	if l.isStopped() {
		return NewError(StreamIsStopped, "stream already stopped")
	}
	l.externalStop.Store(true)
	l.state.Store(int32(loopAborting))
	if l.cancel != nil {
		l.cancel()
	}
	l.awaitDone()
	return nil
}

// awaitDone waits for the worker goroutine to exit, up to
// hostLoopShutdownTimeout. Go has no way to forcibly kill a goroutine
// wedged inside a backend's Stop/Abort call; past the deadline this
// gives up waiting rather than hanging the caller forever, leaving the
// worker to exit whenever the backend call eventually unblocks.
func (l *HostLoop) awaitDone() {
	select {
	case <-l.done:
	case <-time.After(hostLoopShutdownTimeout):
		logger.Error("host loop did not stop within shutdown timeout", "timeout", hostLoopShutdownTimeout)
	}
}

func (l *HostLoop) run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(l.done)

	l.state.CompareAndSwap(int32(loopStarting), int32(loopRunning))

	iteration := 0
	waitDeficit := 0.0
	for {
		state := loopState(l.state.Load())
		if state == loopAborting {
			_ = l.backend.Abort()
			break
		}

		waitCtx, cancel := context.WithTimeout(ctx, time.Duration(l.pollTimeout*float64(time.Second)))
		t, slots, status, err := l.backend.WaitForData(waitCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.Canceled) {
				if loopState(l.state.Load()) == loopAborting {
					_ = l.backend.Abort()
					break
				}
				// StopPending: drain was requested but the backend
				// has nothing more queued to report; stop now.
				_ = l.backend.Stop()
				break
			}
			if errors.Is(err, context.DeadlineExceeded) {
				waitDeficit += l.pollTimeout
				if waitDeficit < l.maxWaitBudget {
					continue
				}
				l.lastError.Store(NewError(TimedOut, "backend produced no data for %.3fs, exceeding the %.3fs wait budget", waitDeficit, l.maxWaitBudget))
				setLastHostError(0, "host loop wait budget exceeded")
				logger.Error("backend wait timed out, aborting stream", "deficit", waitDeficit, "budget", l.maxWaitBudget)
				_ = l.backend.Abort()
				break
			}
			l.lastError.Store(NewError(UnanticipatedHostError, "%s", err.Error()))
			setLastHostError(0, err.Error())
			logger.Error("backend wait failed, aborting stream", "error", err)
			_ = l.backend.Abort()
			break
		}
		waitDeficit = 0

		l.processor.BeginProcessing(t)
		l.feedProcessor(slots)
		status |= l.applyCatchUpPolicy(slots)

		l.cpuLoad.BeginCallback()
		processed, verdict := l.processor.EndProcessing(status)
		l.cpuLoad.EndCallback(processed)

		l.setStreamTime(l.processor.currentTimeInfo().CurrentTime)

		iteration++
		if iteration%priorityCheckInterval == 0 {
			l.throttlePriority()
		}

		if verdict == Abort {
			_ = l.backend.Abort()
			break
		}
		if verdict == Complete {
			_ = l.backend.Stop()
			break
		}

		if loopState(l.state.Load()) == loopStopPending && !l.externalStop.Load() {
			_ = l.backend.Stop()
			break
		}
	}

	if l.externalStop.Load() {
		l.state.Store(int32(loopStopped))
		return
	}

	l.state.Store(int32(loopFinished))
	if l.finishedCallback != nil {
		l.finishedCallback(l.userData)
	}
}

// applyCatchUpPolicy implements spec.md §4.7's "Catch-up policy": when a
// backend reports both host slots of one direction ready at once, the
// worker fell a full ring-buffer cycle behind. On input, it discards
// everything but the newest slot (slot 1, the post-wrap half) and
// reports InputOverflow, unless NeverDropInput asks it to keep every
// frame instead. On output, it can't retroactively fix what already
// played, so it patches the stale slot with a duplicate of the most
// recent real output block rather than leaving it silent, and reports
// OutputUnderflow. Returns the extra status bits the catch-up decision
// itself adds, to be ORed into whatever the backend already reported.
func (l *HostLoop) applyCatchUpPolicy(slots BufferSlots) StatusFlags {
	var extra StatusFlags

	if slots.Input[0].FrameCount > 0 && slots.Input[1].FrameCount > 0 {
		extra |= StatusInputOverflow
		if !l.neverDropInput {
			l.processor.ConsumeInputSlot(0)
		}
	}

	if slots.Output[0].FrameCount > 0 && slots.Output[1].FrameCount > 0 {
		extra |= StatusOutputUnderflow
		l.processor.DuplicateLastOutput(slots.Output[0].Channels, slots.Output[0].FrameCount)
		l.processor.ConsumeOutputSlot(0)
	}

	return extra
}

func (l *HostLoop) feedProcessor(slots BufferSlots) {
	p := l.processor

	p.SetInputFrameCount(slots.Input[0].FrameCount)
	p.SetSecondInputFrameCount(slots.Input[1].FrameCount)
	for i, ch := range slots.Input[0].Channels {
		p.SetInputChannel(i, ch.Data, ch.Stride)
	}
	for i, ch := range slots.Input[1].Channels {
		p.SetSecondInputChannel(i, ch.Data, ch.Stride)
	}

	p.SetOutputFrameCount(slots.Output[0].FrameCount)
	p.SetSecondOutputFrameCount(slots.Output[1].FrameCount)
	for i, ch := range slots.Output[0].Channels {
		p.SetOutputChannel(i, ch.Data, ch.Stride)
	}
	for i, ch := range slots.Output[1].Channels {
		p.SetSecondOutputChannel(i, ch.Data, ch.Stride)
	}
}

// throttlePriority lowers the worker OS thread's scheduling priority
// while the measured CPU load is above the threshold, giving the rest
// of the system headroom; it restores the normal priority once load
// falls back to or below the threshold. Errors are ignored: priority
// throttling is a best-effort nicety, not a correctness requirement,
// and unprivileged processes may not be permitted to raise priority at
// all.
func (l *HostLoop) throttlePriority() {
	if l.priorityThreshold <= 0 {
		return
	}
	load := l.cpuLoad.Load()
	nice := 0
	if load > l.priorityThreshold {
		nice = 5
	}
	_ = unix.Setpriority(unix.PRIO_PROCESS, 0, nice)
}
