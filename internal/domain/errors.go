package domain

import "errors"

// ErrDataUnavailable is returned when a token has no market snapshot or indicators.
var ErrDataUnavailable = errors.New("market data unavailable")
