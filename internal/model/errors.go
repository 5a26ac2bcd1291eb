package model

import "errors"

// Error kinds produced while compiling and expanding a schedule entry.
// Callers match them with errors.Is; concrete errors wrap one of these.
var (
	ErrInvalidRule      = errors.New("invalid recurrence rule")
	ErrUnknownTimeZone  = errors.New("unknown time zone")
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrInvalidWindow    = errors.New("invalid window")
	ErrInvalidTimeOfDay = errors.New("invalid time of day")
)

// ErrorKind returns the diagnostic kind name for err, or "Error" when err
// does not wrap any known kind.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRule):
		return "InvalidRuleError"
	case errors.Is(err, ErrUnknownTimeZone):
		return "UnknownTimeZoneError"
	case errors.Is(err, ErrInvalidDuration):
		return "InvalidDurationError"
	case errors.Is(err, ErrInvalidWindow):
		return "InvalidWindowError"
	case errors.Is(err, ErrInvalidTimeOfDay):
		return "InvalidTimeOfDayError"
	default:
		return "Error"
	}
}
