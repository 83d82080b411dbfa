package booking

import "errors"

var (
	// ErrValidation wraps user-correctable request problems; callers surface
	// the message as-is.
	ErrValidation = errors.New("invalid booking request")

	ErrActiveBookingExists = errors.New("an active booking already exists for this email")
	ErrSlotFull            = errors.New("time slot is fully booked")
	ErrSlotInPast          = errors.New("time slot has already passed")
	ErrInvalidState        = errors.New("booking is not in a state that allows this transition")

	// ErrSlotBusy means the caller lost the per-slot lock race and should
	// re-fetch availability and retry.
	ErrSlotBusy = errors.New("slot is currently being booked, please retry")
)
