package stats

import "errors"

var (
	// ErrInsufficientData is returned when a group has too few present values
	// for the statistic to be defined.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrMissingValues is returned under the Error missing-value policy when a
	// tested column has a missing value.
	ErrMissingValues = errors.New("missing values")
)
