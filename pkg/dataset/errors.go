package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrSchema is the parent of every error caused by a column that is absent
	// or holds values of the wrong kind.
	ErrSchema = errors.New("schema error")

	ErrColumnNotFound = fmt.Errorf("%w: column not found", ErrSchema)
	ErrTypeMismatch   = fmt.Errorf("%w: type mismatch", ErrSchema)

	// ErrNotRecoded is returned when a step that depends on a recoding runs
	// against a dataset on which the recoding has not been applied.
	ErrNotRecoded = errors.New("recoding not applied")

	ErrRecoding = errors.New("recoding dataset")
	ErrLoad     = errors.New("loading dataset")
)
