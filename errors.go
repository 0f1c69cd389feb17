package padsp

import (
	"fmt"
	"sync"
)

// ErrorCode is the closed error taxonomy returned from every public entry
// point, mirroring the PaError enumeration of the reference engine.
type ErrorCode int

const (
	NoError ErrorCode = iota
	NotInitialized
	UnanticipatedHostError
	InvalidChannelCount
	InvalidSampleRate
	InvalidDevice
	InvalidFlag
	SampleFormatNotSupported
	BadIODeviceCombination
	InsufficientMemory
	BufferTooBig
	BufferTooSmall
	NullCallback
	BadStreamPtr
	TimedOut
	InternalError
	DeviceUnavailable
	IncompatibleHostApiSpecificStreamInfo
	StreamIsStopped
	StreamIsNotStopped
	InputOverflowed
	OutputUnderflowed
	HostApiNotFound
	InvalidHostApi
	CanNotReadFromACallbackStream
	CanNotWriteToACallbackStream
	CanNotReadFromAnOutputOnlyStream
	CanNotWriteToAnInputOnlyStream
	IncompatibleStreamHostApi
)

var errorCodeNames = map[ErrorCode]string{
	NoError:                                "no error",
	NotInitialized:                         "not initialized",
	UnanticipatedHostError:                 "unanticipated host error",
	InvalidChannelCount:                    "invalid channel count",
	InvalidSampleRate:                      "invalid sample rate",
	InvalidDevice:                          "invalid device",
	InvalidFlag:                            "invalid flag",
	SampleFormatNotSupported:               "sample format not supported",
	BadIODeviceCombination:                 "bad IO device combination",
	InsufficientMemory:                     "insufficient memory",
	BufferTooBig:                           "buffer too big",
	BufferTooSmall:                         "buffer too small",
	NullCallback:                           "null callback",
	BadStreamPtr:                           "bad stream pointer",
	TimedOut:                               "timed out",
	InternalError:                          "internal error",
	DeviceUnavailable:                      "device unavailable",
	IncompatibleHostApiSpecificStreamInfo:  "incompatible host API specific stream info",
	StreamIsStopped:                        "stream is stopped",
	StreamIsNotStopped:                     "stream is not stopped",
	InputOverflowed:                        "input overflowed",
	OutputUnderflowed:                      "output underflowed",
	HostApiNotFound:                        "host API not found",
	InvalidHostApi:                         "invalid host API",
	CanNotReadFromACallbackStream:          "cannot read from a callback stream",
	CanNotWriteToACallbackStream:           "cannot write to a callback stream",
	CanNotReadFromAnOutputOnlyStream:       "cannot read from an output-only stream",
	CanNotWriteToAnInputOnlyStream:         "cannot write to an input-only stream",
	IncompatibleStreamHostApi:              "incompatible stream host API",
}

func (e ErrorCode) String() string {
	if s, ok := errorCodeNames[e]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(e))
}

// Error wraps an ErrorCode with context, the way every public entry point
// reports failure. A nil *Error means success; callers test with errors.Is
// against another *Error carrying the same Code (e.g. NewError(TimedOut,
// "")) or inspect Code directly.
type Error struct {
	Code ErrorCode
	msg  string
}

func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.msg)
}

func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Code == e.Code
}

// HostError is the last raw backend error: a driver-assigned code plus its
// textual description. Overwritten on each occurrence, readable through
// GetLastHostError.
type HostError struct {
	Code        int64
	Description string
}

var lastHostErrorMu sync.Mutex
var lastHostError HostError

// setLastHostError records a backend error in the process-wide slot. It is
// the only write path; reads take the same mutex for a torn-free copy.
func setLastHostError(code int64, description string) {
	lastHostErrorMu.Lock()
	defer lastHostErrorMu.Unlock()
	lastHostError = HostError{Code: code, Description: description}
}

// GetLastHostError returns the most recently recorded raw backend error.
func GetLastHostError() HostError {
	lastHostErrorMu.Lock()
	defer lastHostErrorMu.Unlock()
	return lastHostError
}
