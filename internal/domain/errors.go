package domain

import "errors"

// Failure kinds of the reservation engine. Callers match them with errors.Is;
// the text after the colon of a wrapped error is for humans only.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrUnknownScheduleDate = errors.New("unknown schedule date")
	ErrSoldOut             = errors.New("sold out")
	ErrSeatTaken           = errors.New("seat already booked")
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrTimeout             = errors.New("timeout")
)
