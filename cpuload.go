package padsp

import "time"

/*------------------------------------------------------------------
 *
 * Purpose: CPU-load measurer (C5) — a wall-clock EWMA of the ratio
 *	between time spent inside the application callback and the
 *	audio-time duration that callback covered. Not thread-safe: the
 *	host loop is the only caller, from its single worker goroutine.
 *
 *---------------------------------------------------------------*/

// defaultCPULoadDecay is the EWMA smoothing factor applied per
// measurement; see Tunables.CPULoadDecay for the overridable default.
const defaultCPULoadDecay = 0.9

// CPULoadMeasurer tracks the fraction of available real time the
// callback is consuming, smoothed with an exponentially weighted moving
// average so a single slow callback doesn't spike the reported value.
type CPULoadMeasurer struct {
	samplePeriod float64
	decay        float64
	load         float64

	callbackStart time.Time
}

// NewCPULoadMeasurer returns a measurer for a stream running at
// sampleRate, using decay as the EWMA smoothing factor (0 < decay < 1;
// closer to 1 means slower-moving, smoother readings).
func NewCPULoadMeasurer(sampleRate float64, decay float64) *CPULoadMeasurer {
	if decay <= 0 || decay >= 1 {
		decay = defaultCPULoadDecay
	}
	return &CPULoadMeasurer{samplePeriod: 1.0 / sampleRate, decay: decay}
}

// Reset zeroes the reported load, done whenever the stream (re)starts.
func (m *CPULoadMeasurer) Reset() {
	m.load = 0
}

// BeginCallback latches the wall-clock time just before the application
// callback is invoked.
func (m *CPULoadMeasurer) BeginCallback() {
	m.callbackStart = time.Now()
}

// EndCallback is called immediately after the application callback
// returns, with the number of frames that invocation covered. It folds
// the elapsed wall-clock duration, as a fraction of the audio-time
// duration it produced, into the EWMA.
func (m *CPULoadMeasurer) EndCallback(frameCount int) {
	if frameCount <= 0 {
		return
	}
	elapsed := time.Since(m.callbackStart).Seconds()
	audioDuration := float64(frameCount) * m.samplePeriod
	if audioDuration <= 0 {
		return
	}
	sample := elapsed / audioDuration
	m.load = m.decay*m.load + (1-m.decay)*sample
}

// Load returns the most recent smoothed CPU-load fraction. A value
// approaching or exceeding 1.0 means the callback is at risk of
// starving the host's real-time deadline.
func (m *CPULoadMeasurer) Load() float64 {
	return m.load
}
