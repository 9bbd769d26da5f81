package errors

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates which layer raised the error
type Phase string

const (
	PhaseTransact Phase = "transact" // proxy transaction relay
	PhaseDeath    Phase = "death"    // death notification protocol
	PhaseAttach   Phase = "attach"   // object attachments
	PhaseRefs     Phase = "refs"     // reference counting
	PhaseParcel   Phase = "parcel"   // payload encoding/decoding
	PhaseDriver   Phase = "driver"   // in-process transport
	PhaseSandbox  Phase = "sandbox"  // wasm-hosted services
)

// Kind categorizes the error
type Kind string

const (
	KindDeadObject        Kind = "dead_object"
	KindNotFound          Kind = "not_found"
	KindAlreadyRegistered Kind = "already_registered"
	KindClosed            Kind = "closed"
	KindInvalidInput      Kind = "invalid_input"
	KindInvalidData       Kind = "invalid_data"
	KindInvalidUTF16      Kind = "invalid_utf16"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindBadInterface      Kind = "bad_interface"
	KindLoad              Kind = "load"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Handle uint32
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Handle != 0 {
		b.WriteString(" handle=")
		b.WriteString(strconv.FormatUint(uint64(e.Handle), 10))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Sentinels for errors.Is checks across phases.
var (
	ErrDeadObject        = &Error{Kind: KindDeadObject}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrAlreadyRegistered = &Error{Kind: KindAlreadyRegistered}
	ErrClosed            = &Error{Kind: KindClosed}
)

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Handle sets the remote handle the error refers to
func (b *Builder) Handle(h uint32) *Builder {
	b.err.Handle = h
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// DeadObject creates a dead-object error for a handle
func DeadObject(phase Phase, handle uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDeadObject,
		Handle: handle,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: what + " not found",
	}
}

// AlreadyRegistered creates a duplicate registration error
func AlreadyRegistered(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAlreadyRegistered,
		Detail: what + " already registered",
	}
}

// Closed creates an error for operations on a closed component
func Closed(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: component + " closed",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// OutOfBounds creates a read-past-end error for parcels and guest memory
func OutOfBounds(phase Phase, pos, want, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("read of %d bytes at %d exceeds length %d", want, pos, length),
	}
}

// InvalidUTF16 creates a string decoding error
func InvalidUTF16(phase Phase, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF16,
		Detail: "decode utf-16 string",
		Cause:  cause,
	}
}

// BadInterface creates an interface token mismatch error
func BadInterface(want, got string) *Error {
	return &Error{
		Phase:  PhaseParcel,
		Kind:   KindBadInterface,
		Detail: fmt.Sprintf("expected interface %q, got %q", want, got),
	}
}

// Load creates a service loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseSandbox,
		Kind:   KindLoad,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Is forwards to the standard library so callers need a single errors import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As forwards to the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
