package sampler

import "errors"

var (
	// ErrUnknownProducer indicates a producer value outside the defined set.
	ErrUnknownProducer = errors.New("unknown producer")

	// ErrInvalidInterval indicates a non-positive producer period.
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrClosed indicates the sampler was closed.
	ErrClosed = errors.New("sampler is closed")
)
