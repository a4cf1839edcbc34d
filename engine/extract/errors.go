package extract

import (
	"errors"
	"fmt"
)

// ErrExtractionService is matched by every ServiceError.
var ErrExtractionService = errors.New("extraction service failed")

// ErrNilCompleter is returned by calls on an Extractor without a backend.
var ErrNilCompleter = errors.New("extract: no completer configured")

// ServiceError reports a failed completion call. It is the only error an
// extraction surfaces; parsing irregularities are absorbed.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("extract: %s: %v", ErrExtractionService, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Is(target error) bool { return target == ErrExtractionService }
