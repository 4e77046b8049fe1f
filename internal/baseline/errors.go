package baseline

import "errors"

var (
	// ErrInvalidWindowSize is returned when a baseline is built with a non-positive window.
	ErrInvalidWindowSize = errors.New("window size must be a positive integer")

	// ErrInsufficientData is returned when history lacks enough complete weeks.
	ErrInsufficientData = errors.New("not enough complete weeks")

	// ErrInvalidThreshold is returned when a threshold lies outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold has to be in the [0, 1] interval")

	// ErrSlotFrozen is returned when adding to a slot that has been frozen.
	ErrSlotFrozen = errors.New("slot is frozen: no more items can be added")

	// ErrSlotNotFrozen is returned when reading a slot that is still being built.
	ErrSlotNotFrozen = errors.New("slot is not frozen: items cannot be read yet")

	// ErrInvalidBucket is returned for day or hour coordinates outside the week grid.
	ErrInvalidBucket = errors.New("bucket coordinates out of range")
)
