// Package fault defines the error kinds shared by the serial command channel,
// the bootloader programmers and the reset strategies.
package fault

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind - Category of a failure. A Kind is itself an error so that
// errors.Is(err, fault.SyncFailure) works on any wrapped *Error.
type Kind int

const (
	TransportTimeout Kind = iota + 1
	SyncFailure
	FramingMismatch
	SignatureMismatch
	DeviceNak
	VerificationMismatch
	ConfigurationError
	PortDiscoveryTimeout
)

var kindNames = map[Kind]string{
	TransportTimeout:     "transport timeout",
	SyncFailure:          "sync failure",
	FramingMismatch:      "framing mismatch",
	SignatureMismatch:    "signature mismatch",
	DeviceNak:            "device nak",
	VerificationMismatch: "verification mismatch",
	ConfigurationError:   "configuration error",
	PortDiscoveryTimeout: "port discovery timeout",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) Error() string {
	return k.String()
}

// Error - Failure of a given kind with an optional cause
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches both another *Error of the same kind and a bare Kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind
	}
	return false
}

// New - Creates an error of the given kind carrying a stack trace
func New(kind Kind, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

// Wrap - Classifies err as kind. Returns nil when err is nil.
func Wrap(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err})
}

// KindOf - Returns the kind of the first *Error in the chain, or zero.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
