package padsp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCPULoadMeasurerTracksElapsedFraction(t *testing.T) {
	m := NewCPULoadMeasurer(1000, 0) // decay<=0 falls back to defaultCPULoadDecay

	m.BeginCallback()
	time.Sleep(2 * time.Millisecond)
	m.EndCallback(1) // 1 frame at 1000Hz == 1ms of audio

	assert.Greater(t, m.Load(), 0.0)
}

func TestCPULoadMeasurerResetZeroes(t *testing.T) {
	m := NewCPULoadMeasurer(1000, 0.5)
	m.BeginCallback()
	time.Sleep(time.Millisecond)
	m.EndCallback(1)
	assert.NotEqual(t, 0.0, m.Load())

	m.Reset()
	assert.Equal(t, 0.0, m.Load())
}

func TestCPULoadMeasurerIgnoresZeroFrameCount(t *testing.T) {
	m := NewCPULoadMeasurer(1000, 0.5)
	m.BeginCallback()
	m.EndCallback(0)
	assert.Equal(t, 0.0, m.Load())
}
