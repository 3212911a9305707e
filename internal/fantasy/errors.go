package fantasy

import "errors"

// Invalid-input errors returned at the engine boundary. Callers match them
// with errors.Is; the wrapped message carries the offending value.
var (
	ErrInvalidWindow         = errors.New("invalid aggregation window")
	ErrInvalidReduction      = errors.New("invalid reduction")
	ErrInvalidProjectionMode = errors.New("invalid projection mode")
	ErrInvalidDateRange      = errors.New("invalid date range")
	ErrInvalidRoster         = errors.New("invalid roster")
	ErrNoCountedGameTypes    = errors.New("no game types counted")
	ErrUnknownCategory       = errors.New("unknown category")
)

// IsInvalidInput reports whether err is one of the engine's invalid-input errors.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidReduction) ||
		errors.Is(err, ErrInvalidProjectionMode) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInvalidRoster) ||
		errors.Is(err, ErrNoCountedGameTypes) ||
		errors.Is(err, ErrUnknownCategory)
}
