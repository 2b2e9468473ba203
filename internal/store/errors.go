package store

import (
	"errors"

	"github.com/miikkis-gh/glassfile/internal/fsutil"
)

// Typed operation failures. Handlers map these to HTTP statuses;
// anything else is an unexpected I/O error and surfaced generically.
var (
	ErrInvalidName   = fsutil.ErrInvalidName
	ErrPathTraversal = fsutil.ErrPathTraversal
	ErrExtension     = errors.New("file type not allowed")
	ErrNotFound      = errors.New("file not found")
	ErrConflict      = errors.New("a file with that name already exists")
	ErrTooLarge      = errors.New("file too large")
)
