package gpu

import "errors"

var (
	// ErrOutOfMemory is returned when an allocation exceeds the device budget.
	ErrOutOfMemory = errors.New("gpu: out of memory")

	// ErrUnsupported is returned for formats, usages or shader modules a backend cannot serve.
	ErrUnsupported = errors.New("gpu: unsupported")

	// ErrReleased is returned when a released object is used.
	ErrReleased = errors.New("gpu: object released")

	// ErrInvalidState is returned when a texture is used outside the state its use requires.
	ErrInvalidState = errors.New("gpu: invalid resource state")

	// ErrBindingMismatch is returned when the bound texture count differs from the pipeline's.
	ErrBindingMismatch = errors.New("gpu: texture binding count mismatch")

	// ErrInvalidDescriptor is returned for malformed descriptors.
	ErrInvalidDescriptor = errors.New("gpu: invalid descriptor")
)
