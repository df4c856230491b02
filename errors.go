package lofarcap

import "fmt"

// ErrorKind enumerates the error taxonomy of §7.
type ErrorKind int

const (
	// SetupFailure covers bad options, bind/socket errors, and mmap/ftruncate
	// failure. It is always fatal: print a diagnostic and exit non-zero.
	SetupFailure ErrorKind = iota
	// FatalRuntime covers a receive error, a non-recoverable write error, or
	// a signal-setup failure. Always fatal.
	FatalRuntime
	// CompressorFailure means the compressor subprocess exited non-zero.
	// Reported, but data already written is accepted.
	CompressorFailure
)

func (k ErrorKind) String() string {
	switch k {
	case SetupFailure:
		return "setup failure"
	case FatalRuntime:
		return "fatal runtime error"
	case CompressorFailure:
		return "compressor failure"
	default:
		return "unknown error kind"
	}
}

// CaptureError wraps an error with the §7 kind that governs how callers
// must propagate it. TransientIdle and BufferDrop are deliberately not
// represented here: per §7 they never leave this package as Go errors —
// they surface as a session-state transition and a counter increment,
// respectively.
type CaptureError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

func setupErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CaptureError{Kind: SetupFailure, Op: op, Err: err}
}

func fatalErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CaptureError{Kind: FatalRuntime, Op: op, Err: err}
}

func compressorErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CaptureError{Kind: CompressorFailure, Op: op, Err: err}
}
