// Package kerrors defines the kernel's error taxonomy: ConfigError,
// BoundsError, NumericError, IoError, and CommandError. Each wraps an
// underlying cause and supports errors.Is/errors.As against the sentinel
// kinds below.
package kerrors

import "fmt"

// Kind distinguishes the taxonomy's error categories.
type Kind uint8

const (
	KindConfig Kind = iota
	KindBounds
	KindNumeric
	KindIo
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindBounds:
		return "BoundsError"
	case KindNumeric:
		return "NumericError"
	case KindIo:
		return "IoError"
	case KindCommand:
		return "CommandError"
	default:
		return "UnknownError"
	}
}

// KernelError is the concrete type behind every sentinel kind.
type KernelError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *KernelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *KernelError) Unwrap() error { return e.Err }

// Is reports whether target is a KernelError of the same Kind, allowing
// errors.Is(err, kerrors.ErrConfig) style checks via the sentinels below.
func (e *KernelError) Is(target error) bool {
	t, ok := target.(*KernelError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is comparisons: errors.Is(err, kerrors.ErrBounds).
var (
	ErrConfig  = &KernelError{Kind: KindConfig}
	ErrBounds  = &KernelError{Kind: KindBounds}
	ErrNumeric = &KernelError{Kind: KindNumeric}
	ErrIo      = &KernelError{Kind: KindIo}
	ErrCommand = &KernelError{Kind: KindCommand}
)

// Config wraps a configuration validation failure. Fatal at init.
func Config(msg string, args ...any) error {
	return &KernelError{Kind: KindConfig, Msg: fmt.Sprintf(msg, args...)}
}

// Bounds wraps an out-of-range index (agent.region, neighbor id). Fatal —
// indicates a logic bug.
func Bounds(msg string, args ...any) error {
	return &KernelError{Kind: KindBounds, Msg: fmt.Sprintf(msg, args...)}
}

// Numeric wraps a non-finite value or a conservation-law violation beyond
// tolerance. Fatal in debug builds; callers may instead clamp-and-count in
// release builds.
func Numeric(msg string, args ...any) error {
	return &KernelError{Kind: KindNumeric, Msg: fmt.Sprintf(msg, args...)}
}

// NumericMonitor implements the debug/release split spec.md §7 requires for
// NumericError: in Strict mode (debug builds) the first violation a caller
// reports via Check becomes a fatal error; otherwise the caller clamps and
// Check just tallies Warnings so the run continues.
type NumericMonitor struct {
	Strict   bool
	Warnings uint64
}

// Check reports a numeric violation described by msg/args. A nil monitor
// behaves as non-strict. Callers clamp the offending value themselves
// whenever Check returns nil.
func (m *NumericMonitor) Check(msg string, args ...any) error {
	if m == nil {
		return nil
	}
	if m.Strict {
		return Numeric(msg, args...)
	}
	m.Warnings++
	return nil
}

// Io wraps a checkpoint open/read/write failure. Recoverable: the caller
// aborts the operation and preserves in-memory state.
func Io(msg string, err error) error {
	return &KernelError{Kind: KindIo, Msg: msg, Err: err}
}

// Command wraps an unknown verb or malformed arguments at the shell
// boundary. Recoverable.
func Command(msg string, args ...any) error {
	return &KernelError{Kind: KindCommand, Msg: fmt.Sprintf(msg, args...)}
}
