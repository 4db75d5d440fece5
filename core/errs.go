package core

import "errors"

var (
	// ErrAlreadyClosed is returned when a close is requested on a trade
	// that has already been fully closed. The operation has no financial
	// effect; callers replicating the reference behavior may ignore it.
	ErrAlreadyClosed = errors.New("trade already closed")

	// ErrUnknownTicket is returned when the portfolio is asked to act on a
	// trade it does not own. The operation has no financial effect.
	ErrUnknownTicket = errors.New("unknown ticket")

	// ErrInsufficientData is returned when a bar series is empty or too
	// short to fulfill a request.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidTimeframe is returned for unsupported timeframe strings.
	ErrInvalidTimeframe = errors.New("invalid timeframe")
)
