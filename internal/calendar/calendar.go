// Package calendar stores appointments as events on per-staff calendars.
// The calendar is the system of record; nothing else persists bookings.
package calendar

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAuthExpired means the stored credentials were revoked or expired
	// and an operator has to re-authorize the account.
	ErrAuthExpired = errors.New("calendar: credentials expired")
	// ErrCalendarNotFound means no calendar carries the requested key.
	ErrCalendarNotFound = errors.New("calendar: calendar not found")
	// ErrNotFound means the referenced event does not exist.
	ErrNotFound = errors.New("calendar: event not found")
)

// Appointment is an event read back from a staff calendar.
type Appointment struct {
	ID          string
	CalendarKey string
	Start       time.Time
	End         time.Time
	Summary     string
	Description string
}

// Ref returns the handle used to delete the appointment.
func (a Appointment) Ref() Ref {
	return Ref{CalendarKey: a.CalendarKey, EventID: a.ID}
}

// NewAppointment is an event to create.
type NewAppointment struct {
	Summary         string
	Description     string
	Start           time.Time
	End             time.Time
	ReminderMinutes int
}

// Ref identifies an event on a calendar.
type Ref struct {
	CalendarKey string `json:"calendar_key"`
	EventID     string `json:"event_id"`
}

// IsZero reports whether the ref is unset.
func (r Ref) IsZero() bool { return r.CalendarKey == "" && r.EventID == "" }

// Repository is the calendar store used by the booking lifecycle.
type Repository interface {
	ListAppointments(ctx context.Context, calendarKey string, from, to time.Time) ([]Appointment, error)
	CreateAppointment(ctx context.Context, calendarKey string, appt NewAppointment) (Ref, error)
	DeleteAppointment(ctx context.Context, ref Ref) error
}

// Recorder receives per-request timings.
type Recorder interface {
	ObserveCalendar(operation, status string, d time.Duration)
}
