package padsp

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestInterleavedChannelOffset(t *testing.T) {
	buf := []int16{10, 20, 30, 40, 50, 60} // 2 channels, 3 frames
	base := unsafe.Pointer(&buf[0])

	ch0 := InterleavedChannel(base, 0, 2, 2)
	ch1 := InterleavedChannel(base, 1, 2, 2)

	assert.Equal(t, int16(10), *(*int16)(ch0.Data))
	assert.Equal(t, int16(20), *(*int16)(ch1.Data))
	assert.Equal(t, uint32(2), ch0.Stride)
}

func TestChannelDescriptorAdvance(t *testing.T) {
	buf := []int16{1, 2, 3, 4, 5, 6}
	ch := NonInterleavedChannel(unsafe.Pointer(&buf[0]))
	ch.advance(2, 2)
	assert.Equal(t, int16(3), *(*int16)(ch.Data))
}

func TestChannelDescriptorSampleOffset(t *testing.T) {
	buf := []int16{1, 2, 3, 4, 5, 6}
	base := unsafe.Pointer(&buf[0])
	ch := InterleavedChannel(base, 1, 2, 2)
	p := ch.sampleOffset(2, 2)
	assert.Equal(t, int16(6), *(*int16)(p))
}
