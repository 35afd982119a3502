package quota

import "errors"

var (
	// ErrUnknownPlayer is returned when a player has no ledger entry.
	ErrUnknownPlayer = errors.New("player not found in session data")

	// Gamble rejections.
	ErrFreeplayDay         = errors.New("gambling disabled on freeplay day")
	ErrNoSession           = errors.New("no session data")
	ErrInsufficientTime    = errors.New("insufficient remaining time")
	ErrBetTooSmall         = errors.New("bet below minimum")
	ErrBetExceedsRemaining = errors.New("bet exceeds remaining time")
	ErrUnknownMultiplier   = errors.New("unknown multiplier")

	// ErrRolloverLimit is returned when an adjustment would push rollover
	// past MaxRollover.
	ErrRolloverLimit = errors.New("rollover limit exceeded")
)

// RejectionError carries the player-facing reason a request was refused.
type RejectionError struct {
	Err     error
	Message string
}

func (e *RejectionError) Error() string {
	return e.Err.Error() + ": " + e.Message
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

func reject(err error, message string) error {
	return &RejectionError{Err: err, Message: message}
}
