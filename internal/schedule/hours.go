package schedule

import (
	"fmt"
	"time"
)

// Class distinguishes regular opening hours from the surcharge window.
type Class string

const (
	ClassGeneral   Class = "general"
	ClassSurcharge Class = "extra"
)

// ParseClass maps free-form labels onto a Class.
func ParseClass(s string) (Class, bool) {
	switch s {
	case "general", "normal", "1":
		return ClassGeneral, true
	case "extra", "especial", "surcharge", "2":
		return ClassSurcharge, true
	}
	return "", false
}

// Window is a span of opening hours with the latest accepted start.
type Window struct {
	Open      Clock
	Close     Clock
	LastStart Clock
}

// Contains reports whether a booking may start at c.
func (w Window) Contains(c Clock) bool {
	return c >= w.Open && c <= w.LastStart
}

// Hours describes the weekly opening pattern.
type Hours struct {
	General     Window
	Surcharge   Window
	BreakStart  Clock
	BreakEnd    Clock
	SlotMinutes int
	ClosedDays  []time.Weekday
}

// DefaultHours returns the shop's standard pattern: general 09:30-20:00,
// surcharge 07:00-22:00, lunch 13:00-14:00, closed Sundays.
func DefaultHours() Hours {
	return Hours{
		General: Window{
			Open:      NewClock(9, 30),
			Close:     NewClock(20, 0),
			LastStart: NewClock(19, 30),
		},
		Surcharge: Window{
			Open:      NewClock(7, 0),
			Close:     NewClock(22, 0),
			LastStart: NewClock(21, 30),
		},
		BreakStart:  NewClock(13, 0),
		BreakEnd:    NewClock(14, 0),
		SlotMinutes: 30,
		ClosedDays:  []time.Weekday{time.Sunday},
	}
}

// Validate checks the pattern is internally consistent.
func (h Hours) Validate() error {
	if h.SlotMinutes <= 0 || 60%h.SlotMinutes != 0 {
		return fmt.Errorf("schedule: slot length %d must divide an hour", h.SlotMinutes)
	}
	for name, w := range map[string]Window{"general": h.General, "surcharge": h.Surcharge} {
		if !w.Open.Valid() || !w.LastStart.Valid() || w.Open > w.LastStart || w.LastStart >= w.Close {
			return fmt.Errorf("schedule: %s window is inconsistent", name)
		}
	}
	if h.Surcharge.Open > h.General.Open || h.Surcharge.Close < h.General.Close {
		return fmt.Errorf("schedule: surcharge window must enclose general hours")
	}
	if h.BreakStart >= h.BreakEnd {
		return fmt.Errorf("schedule: break must end after it starts")
	}
	return nil
}

// Window returns the opening window for a schedule class.
func (h Hours) Window(class Class) Window {
	if class == ClassSurcharge {
		return h.Surcharge
	}
	return h.General
}

// ClosedOn reports whether the business is closed on the given day.
func (h Hours) ClosedOn(d Date) bool {
	wd := d.Weekday()
	for _, c := range h.ClosedDays {
		if c == wd {
			return true
		}
	}
	return false
}
