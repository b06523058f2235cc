package channel

import "errors"

var (
	// ErrEmptyChannel is returned when reading a channel that was never updated.
	ErrEmptyChannel = errors.New("channel is empty")
	// ErrInvalidUpdate is returned when an update violates the channel's merge policy.
	ErrInvalidUpdate = errors.New("invalid channel update")
)
