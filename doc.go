// Package padsp implements the host-neutral stream processing engine at
// the heart of a real-time audio I/O library: the buffer processor that
// adapts mismatched host/application block sizes and sample formats, the
// per-channel sample converters and dither generator it drives, and the
// per-stream host event loop that couples a backend's buffer-ready events
// to the application callback.
//
// Device enumeration, capability probing, driver pin negotiation and the
// platform memory/time/thread primitives are deliberately out of scope;
// they are modeled here only as the Backend interface a host API package
// would implement. See backend/loopback for an in-memory implementation
// used by the test suite, and backend/paio for one built on a real
// hardware binding.
package padsp
