package padsp

import (
	"os"

	"gopkg.in/yaml.v3"
)

/*------------------------------------------------------------------
 *
 * Purpose: Tunables are the handful of numeric knobs this engine
 *	exposes without touching code: EWMA smoothing and the scheduling
 *	priority throttle threshold, both read by OpenStream, plus
 *	DefaultTempBufferFrames. Compiled-in defaults cover every field;
 *	LoadTunables lets an application override them from a YAML file
 *	at startup. DefaultTempBufferFrames is loaded but not read by
 *	OpenStream or the buffer processor: the scratch-buffer size used
 *	when neither side of a stream names a fixed block size is always
 *	the compiled-in defaultTempBufferFrames (1024).
 *
 *---------------------------------------------------------------*/

// Tunables holds engine-wide constants an application may override.
type Tunables struct {
	CPULoadDecay              float64 `yaml:"cpu_load_decay"`
	PriorityThrottleThreshold float64 `yaml:"priority_throttle_threshold"`
	DefaultTempBufferFrames   int     `yaml:"default_temp_buffer_frames"`
}

// DefaultTunables returns the compiled-in defaults.
func DefaultTunables() Tunables {
	return Tunables{
		CPULoadDecay:              defaultCPULoadDecay,
		PriorityThrottleThreshold: 0.85,
		DefaultTempBufferFrames:   defaultTempBufferFrames,
	}
}

// LoadTunables reads a YAML file and overlays it onto DefaultTunables.
// A missing or malformed file returns the defaults alongside the error
// so callers may choose to proceed anyway.
func LoadTunables(path string) (Tunables, error) {
	t := DefaultTunables()
	data, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, err
	}
	return t, nil
}
