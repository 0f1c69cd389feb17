package padsp

/*------------------------------------------------------------------
 *
 * Purpose: Sample format bitmask and the base-format bit width table.
 *
 *	A SampleFormat identifies exactly one base format bit plus an
 *	optional NonInterleaved flag. paInt24 (here FormatInt24) denotes
 *	packed 3-byte samples, stored as 3 consecutive bytes rather than
 *	a word-aligned container.
 *
 *---------------------------------------------------------------*/

// SampleFormat is a bitmask identifying one base sample representation
// plus the NonInterleaved layout flag.
type SampleFormat uint32

const (
	FormatInt8 SampleFormat = 1 << iota
	FormatUint8
	FormatInt16
	FormatInt24
	FormatInt32
	FormatFloat32
	FormatCustomFormat

	// FormatNonInterleaved may be OR'd with any base format above.
	FormatNonInterleaved SampleFormat = 1 << 31
)

// baseFormats enumerates every valid base format bit, in a stable order.
var baseFormats = [...]SampleFormat{
	FormatInt8, FormatUint8, FormatInt16, FormatInt24, FormatInt32, FormatFloat32,
}

// Base strips the NonInterleaved flag, leaving the single base format bit.
func (f SampleFormat) Base() SampleFormat {
	return f &^ FormatNonInterleaved
}

// NonInterleaved reports whether the layout flag is set.
func (f SampleFormat) NonInterleaved() bool {
	return f&FormatNonInterleaved != 0
}

// BytesPerSample returns the storage width of one sample of the base
// format, or a SampleFormatNotSupported error if more than one base bit
// (or none, or the custom-format bit) is set.
func (f SampleFormat) BytesPerSample() (int, error) {
	switch f.Base() {
	case FormatInt8, FormatUint8:
		return 1, nil
	case FormatInt16:
		return 2, nil
	case FormatInt24:
		return 3, nil
	case FormatInt32, FormatFloat32:
		return 4, nil
	default:
		return 0, NewError(SampleFormatNotSupported, "unsupported sample format %#x", uint32(f))
	}
}

// bitsPerSample is the bit width of an integer base format, used by the
// integer converter's widen/narrow shift arithmetic; it returns 0 for
// float32 and for invalid formats. paInt24's significant width
// is 24 bits even though it occupies 3 bytes.
func bitsPerSample(f SampleFormat) int {
	switch f.Base() {
	case FormatInt8, FormatUint8:
		return 8
	case FormatInt16:
		return 16
	case FormatInt24:
		return 24
	case FormatInt32:
		return 32
	default:
		return 0
	}
}

func (f SampleFormat) isFloat() bool {
	return f.Base() == FormatFloat32
}

func (f SampleFormat) isValidBase() bool {
	_, err := f.BytesPerSample()
	return err == nil
}
