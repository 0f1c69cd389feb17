package padsp

import "unsafe"

/*------------------------------------------------------------------
 *
 * Purpose: Channel descriptor (C3) — a (base pointer, stride) pair
 *	describing one channel inside a host buffer. Stride is counted
 *	in samples, not bytes: the byte stride is stride * bytesPerSample.
 *	A stride of 1 names a non-interleaved channel; a stride equal to
 *	the channel count names an interleaved channel at a fixed offset.
 *
 *---------------------------------------------------------------*/

// ChannelDescriptor is the (data, stride) pair the buffer processor reads
// a single channel through. The zero value is invalid: Stride must be
// nonzero.
type ChannelDescriptor struct {
	Data   unsafe.Pointer
	Stride uint32
}

// NonInterleavedChannel describes a channel stored as a contiguous run of
// samples with no other channel interleaved between them.
func NonInterleavedChannel(data unsafe.Pointer) ChannelDescriptor {
	return ChannelDescriptor{Data: data, Stride: 1}
}

// InterleavedChannel describes one channel inside an interleaved buffer:
// data is offset to the channel's first sample and stride equals the
// total channel count.
func InterleavedChannel(base unsafe.Pointer, channelIndex int, channelCount int, bytesPerSample int) ChannelDescriptor {
	offset := uintptr(channelIndex) * uintptr(bytesPerSample)
	return ChannelDescriptor{
		Data:   unsafe.Add(base, offset),
		Stride: uint32(channelCount),
	}
}

// RawChannel builds a descriptor from an explicit pointer/stride pair.
func RawChannel(data unsafe.Pointer, stride uint32) ChannelDescriptor {
	return ChannelDescriptor{Data: data, Stride: stride}
}

// advance moves the descriptor's base pointer forward by frameCount
// samples at its own stride, honoring bytesPerSample of the format the
// descriptor is currently being read/written as. The buffer processor
// calls this after each block it converts through the descriptor; it
// never retains the descriptor across calls, so mutating it in place is
// safe.
func (c *ChannelDescriptor) advance(frameCount int, bytesPerSample int) {
	if frameCount == 0 {
		return
	}
	byteOffset := uintptr(frameCount) * uintptr(c.Stride) * uintptr(bytesPerSample)
	c.Data = unsafe.Add(c.Data, byteOffset)
}

// sampleOffset returns a pointer to descriptor's i'th sample, honoring
// stride and the given sample width.
func (c ChannelDescriptor) sampleOffset(i int, bytesPerSample int) unsafe.Pointer {
	return unsafe.Add(c.Data, uintptr(i)*uintptr(c.Stride)*uintptr(bytesPerSample))
}
