package padsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleFormatBytesPerSample(t *testing.T) {
	cases := []struct {
		format SampleFormat
		bytes  int
	}{
		{FormatInt8, 1},
		{FormatUint8, 1},
		{FormatInt16, 2},
		{FormatInt24, 3},
		{FormatInt32, 4},
		{FormatFloat32, 4},
		{FormatInt16 | FormatNonInterleaved, 2},
	}
	for _, c := range cases {
		n, err := c.format.BytesPerSample()
		require.NoError(t, err)
		assert.Equal(t, c.bytes, n)
	}
}

func TestSampleFormatInvalid(t *testing.T) {
	_, err := FormatCustomFormat.BytesPerSample()
	assert.Error(t, err)

	_, err = SampleFormat(0).BytesPerSample()
	assert.Error(t, err)
}

func TestSampleFormatNonInterleaved(t *testing.T) {
	f := FormatInt16 | FormatNonInterleaved
	assert.True(t, f.NonInterleaved())
	assert.Equal(t, FormatInt16, f.Base())

	assert.False(t, FormatInt16.NonInterleaved())
}

func TestBitsPerSampleInt24(t *testing.T) {
	assert.Equal(t, 24, bitsPerSample(FormatInt24))
}
