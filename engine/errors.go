package engine

import (
	"errors"
	"fmt"

	"github.com/hupe1980/colbench/blobstore"
	"github.com/hupe1980/colbench/selection"
)

// Kind classifies engine errors.
type Kind uint8

const (
	KindIO Kind = iota
	KindFormat
	KindNotFound
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindFormat:
		return "format"
	case KindNotFound:
		return "not found"
	case KindInvalid:
		return "invalid argument"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ErrUnsupported is returned when a backend cannot serve a URI scheme.
var ErrUnsupported = errors.New("engine: unsupported")

// Error describes a failed engine operation.
//
// The underlying error can be accessed via errors.Unwrap.
type Error struct {
	Op     string
	Engine string
	URI    string
	Kind   Kind
	Err    error
}

// NewError wraps err. It returns nil when err is nil and passes through
// errors that already are an *Error.
func NewError(op, engine, uri string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Op: op, Engine: engine, URI: uri, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s %s: %s: %v", e.Engine, e.Op, e.URI, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// ClassifyIO returns KindNotFound for missing blobs and KindIO otherwise.
func ClassifyIO(err error) Kind {
	if errors.Is(err, blobstore.ErrNotFound) {
		return KindNotFound
	}
	return KindIO
}

// ClassifyTake returns KindInvalid for rejected index lists and KindIO
// otherwise.
func ClassifyTake(err error) Kind {
	if errors.Is(err, selection.ErrUnsorted) || errors.Is(err, selection.ErrOutOfRange) {
		return KindInvalid
	}
	return KindIO
}
