package g2s

import (
	"errors"
	"fmt"
)

// Error kinds.  Every error returned by the coordinate, cache and lifecycle layers
// matches exactly one of these through errors.Is.
var (
	ErrLifecycle            = errors.New("lifecycle error")
	ErrUnknownAxis          = errors.New("unknown axis")
	ErrOutOfBounds          = errors.New("coordinate out of bounds")
	ErrUnsupportedImageKind = errors.New("unsupported image kind")
	ErrImageSize            = errors.New("image size does not match dataset")
	ErrEngine               = errors.New("storage engine error")
)

// LifecycleError is returned when an operation is attempted from the wrong dataset state.
type LifecycleError struct {
	Op    string
	State State
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s not allowed while dataset is %s", e.Op, e.State)
}

func (e *LifecycleError) Is(target error) bool { return target == ErrLifecycle }

// UnknownAxisError is returned when a sparse coordinate names an axis that was
// never declared for the dataset.
type UnknownAxisError struct {
	Axis string
}

func (e *UnknownAxisError) Error() string {
	return fmt.Sprintf("axis %q is not part of the dataset axis order", e.Axis)
}

func (e *UnknownAxisError) Is(target error) bool { return target == ErrUnknownAxis }

// OutOfBoundsError is returned when an index is negative or not less than the
// extent of its axis.
type OutOfBoundsError struct {
	Axis   string
	Index  int
	Extent int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("index %d on axis %q is outside extent %d", e.Index, e.Axis, e.Extent)
}

func (e *OutOfBoundsError) Is(target error) bool { return target == ErrOutOfBounds }

// UnsupportedImageKindError is returned for multi-component (e.g., RGB) images.
type UnsupportedImageKindError struct {
	Components int
}

func (e *UnsupportedImageKindError) Error() string {
	return fmt.Sprintf("images with %d components are not supported, only single-component pixel data", e.Components)
}

func (e *UnsupportedImageKindError) Is(target error) bool { return target == ErrUnsupportedImageKind }

// ImageSizeError is returned when an image's frame or buffer does not match the
// frame declared in the summary metadata.
type ImageSizeError struct {
	Width, Height         int
	WantWidth, WantHeight int
	Bytes, WantBytes      int
}

func (e *ImageSizeError) Error() string {
	if e.Width != e.WantWidth || e.Height != e.WantHeight {
		return fmt.Sprintf("image is %d x %d but dataset frame is %d x %d",
			e.Width, e.Height, e.WantWidth, e.WantHeight)
	}
	return fmt.Sprintf("image has %d bytes of pixel data, expected %d", e.Bytes, e.WantBytes)
}

func (e *ImageSizeError) Is(target error) bool { return target == ErrImageSize }

// EngineError wraps any failure surfaced by a storage engine.  The underlying
// error is preserved and reachable through errors.Unwrap.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

func (e *EngineError) Is(target error) bool { return target == ErrEngine }

// NewEngineError wraps err as an EngineError unless it is nil or already one.
func NewEngineError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return err
	}
	return &EngineError{Op: op, Err: err}
}

// State is the lifecycle state of a dataset.
type State uint8

const (
	Uninitialized State = iota
	Created
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Created:
		return "created"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("unknown state (%d)", uint8(s))
	}
}
