package linker

import "errors"

var (
	// ErrPanic wraps a panic recovered while rewriting one document.
	ErrPanic = errors.New("rewrite panicked")

	// ErrNilIndex is returned when an engine has no term index.
	ErrNilIndex = errors.New("linker has no term index")
)
