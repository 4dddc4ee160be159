package pickle

import (
	"errors"
	"fmt"
	"io"
	"reflect"
)

var (
	// ErrNilIO indicates that NewReader/NewWriter was called with an nil interface
	ErrNilIO = errors.New("pickle: NewReader/NewWriter called with a nil io.Reader/io.Writer")

	// ErrInsufficientData indicates that the source ended, or failed, before
	// the required number of bytes could be read.
	ErrInsufficientData = errors.New("pickle: the source does not have enough data to fill the destination")

	// ErrOutsideUsizeRange indicates that a decoded 32-bit size value does not
	// fit into the native size type of this architecture.
	ErrOutsideUsizeRange = errors.New("pickle: decoded value does not fit into the size type of this architecture")

	// ErrUnknownEnumVariant indicates that a union discriminant does not match
	// any declared variant.
	ErrUnknownEnumVariant = errors.New("pickle: unknown enum variant")

	// ErrArrayTooBig indicates that a sequence has more than MaxArrayLength
	// elements. It is reported by both directions.
	ErrArrayTooBig = errors.New("pickle: an array has too many elements")

	// ErrWriteFailed indicates that the underlying sink reported a fault.
	ErrWriteFailed = errors.New("pickle: writing to the sink failed")

	// ErrOutsideU32Range indicates that a size value is too large for the
	// 32-bit field it is encoded into.
	ErrOutsideU32Range = errors.New("pickle: size value does not fit into the u32 range of values")
)

// DecodeError describes why a value could not be decoded.
//
// Kind is one of ErrInsufficientData, ErrOutsideUsizeRange, ErrArrayTooBig or
// ErrUnknownEnumVariant. Value holds the offending number for the kinds that
// carry one (the decoded size, the array length, the discriminant byte). Err
// holds the fault reported by the underlying source, if any.
type DecodeError struct {
	Kind  error
	Value uint64
	Err   error
}

func (e *DecodeError) Error() string {
	var msg string
	switch e.Kind {
	case ErrOutsideUsizeRange:
		msg = fmt.Sprintf("pickle: the decoded value %d does not fit into the size type of this architecture", e.Value)
	case ErrArrayTooBig:
		msg = fmt.Sprintf("pickle: an array has too many elements: %d", e.Value)
	case ErrUnknownEnumVariant:
		msg = fmt.Sprintf("pickle: unknown enum variant %d", e.Value)
	default:
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying fault to errors.Is/As.
func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// EncodeError describes why a value could not be encoded.
//
// Kind is one of ErrWriteFailed, ErrOutsideU32Range or ErrArrayTooBig.
// Value holds the size value or array length that was rejected.
type EncodeError struct {
	Kind  error
	Value uint64
	Err   error
}

func (e *EncodeError) Error() string {
	var msg string
	switch e.Kind {
	case ErrOutsideU32Range:
		msg = fmt.Sprintf("pickle: the size value %d does not fit into the u32 range of values", e.Value)
	case ErrArrayTooBig:
		msg = fmt.Sprintf("pickle: an array has too many elements: %d", e.Value)
	default:
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// TypeError reports a Go type that has no pickle layout: an unsupported kind,
// an unexported field without a `pickle:"-"` tag, a misplaced secret marker,
// an interface that was never registered as a union, or a value (nil union,
// nil pointer) that selects no layout at all.
//
// A TypeError is a programming error. Malformed input never produces one.
type TypeError struct {
	Type   reflect.Type
	Reason string
}

func (e *TypeError) Error() string {
	if e.Type == nil {
		return "pickle: cannot handle nil type: " + e.Reason
	}
	return "pickle: cannot handle type " + e.Type.String() + ": " + e.Reason
}

// readFault converts an error reported by a source into a DecodeError.
func readFault(err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	var te *TypeError
	if errors.As(err, &te) {
		return err
	}
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return &DecodeError{Kind: ErrInsufficientData, Err: err}
}

// writeFault converts an error reported by a sink into an EncodeError.
func writeFault(err error) error {
	var ee *EncodeError
	if errors.As(err, &ee) {
		return err
	}
	var te *TypeError
	if errors.As(err, &te) {
		return err
	}
	return &EncodeError{Kind: ErrWriteFailed, Err: err}
}
