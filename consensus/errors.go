package consensus

import "errors"

var (
	ErrTimestampNotMonotonic   = errors.New("consensus: block timestamp does not exceed parent")
	ErrTimestampTooFarInFuture = errors.New("consensus: block timestamp too far in the future")
	ErrIntervalTooShort        = errors.New("consensus: actual slot interval below minimum")
	ErrDriftExceeded           = errors.New("consensus: timestamp drift exceeds bound")
)
