package appointments

import (
	"errors"
	"fmt"

	"github.com/wolfman30/barber-booking-bot/internal/calendar"
	"github.com/wolfman30/barber-booking-bot/internal/schedule"
)

// Kind classifies a lifecycle rejection.
type Kind string

const (
	// KindValidation means the booking request itself is incomplete or
	// inconsistent.
	KindValidation Kind = "validation"
	// KindConflict means the slot was taken or became invalid since it was
	// offered. Slots carries the fresh list.
	KindConflict Kind = "conflict"
	// KindTooLate means the appointment is inside the lead-time window and
	// can no longer be changed.
	KindTooLate Kind = "too_late"
	// KindAuthExpired means the calendar credentials need re-authorization.
	KindAuthExpired Kind = "auth_expired"
	// KindNotFound means the referenced appointment no longer exists.
	KindNotFound Kind = "not_found"
	// KindUnavailable is any other calendar failure.
	KindUnavailable Kind = "unavailable"
)

// Error is returned by every Service operation that rejects a request.
type Error struct {
	Kind    Kind
	Message string
	// Slots is set for conflicts so the dialogue can re-offer times.
	Slots schedule.SlotList
	// MinutesUntil is set for KindTooLate.
	MinutesUntil int
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("appointments: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("appointments: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a lifecycle error, or "" for anything else.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// fromCalendar converts a repository failure at the call site.
func fromCalendar(op string, err error) *Error {
	switch {
	case errors.Is(err, calendar.ErrAuthExpired):
		return &Error{Kind: KindAuthExpired, Message: op, Err: err}
	case errors.Is(err, calendar.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: op, Err: err}
	default:
		return &Error{Kind: KindUnavailable, Message: op, Err: err}
	}
}
