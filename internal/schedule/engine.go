package schedule

import (
	"time"

	"github.com/wolfman30/barber-booking-bot/internal/catalog"
)

// Reason explains why a slot list came back empty.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonClosed       Reason = "closed"
	ReasonTooLateToday Reason = "too_late_today"
	ReasonNoCapacity   Reason = "no_capacity"
	ReasonPastDate     Reason = "past_date"
)

// Interval is a booked span on a staff calendar.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the half-open spans [Start,End) intersect.
func (i Interval) Overlaps(start, end time.Time) bool {
	return start.Before(i.End) && i.Start.Before(end)
}

// SlotList is the ordered set of bookable start times for a day.
type SlotList struct {
	Date   Date
	Class  Class
	Slots  []Clock
	Reason Reason
}

// Empty reports whether no slot is available.
func (l SlotList) Empty() bool { return len(l.Slots) == 0 }

// Contains reports whether c is one of the offered starts.
func (l SlotList) Contains(c Clock) bool {
	for _, s := range l.Slots {
		if s == c {
			return true
		}
	}
	return false
}

// Strings renders the slots as HH:MM.
func (l SlotList) Strings() []string {
	out := make([]string, len(l.Slots))
	for i, s := range l.Slots {
		out[i] = s.String()
	}
	return out
}

// Engine evaluates availability. It holds no state beyond its policy, so one
// value is safe for concurrent use.
type Engine struct {
	Hours     Hours
	LeadHours int
	Location  *time.Location
}

// NewEngine returns an engine for the given policy. A nil location means UTC.
func NewEngine(hours Hours, leadHours int, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if leadHours < 0 {
		leadHours = 0
	}
	return &Engine{Hours: hours, LeadHours: leadHours, Location: loc}
}

// Today returns the civil date of now in the business timezone.
func (e *Engine) Today(now time.Time) Date {
	return DateOf(now.In(e.Location))
}

// Slots lists aligned starts on date for a service of durationMinutes,
// excluding the break, occupied spans and, for today, anything before the
// lead time.
func (e *Engine) Slots(date Date, durationMinutes int, existing []Interval, class Class, now time.Time) SlotList {
	list := SlotList{Date: date, Class: class}
	today := e.Today(now)

	switch {
	case date.Before(today):
		list.Reason = ReasonPastDate
		return list
	case e.Hours.ClosedOn(date):
		list.Reason = ReasonClosed
		return list
	}

	window := e.Hours.Window(class)
	start := window.Open
	if date == today {
		earliest := e.EarliestStart(now)
		if !earliest.Valid() || earliest >= window.Close || earliest > window.LastStart {
			list.Reason = ReasonTooLateToday
			return list
		}
		if earliest > start {
			start = earliest
		}
	}

	step := e.Hours.SlotMinutes
	for c := e.align(start, window.Open); c <= window.LastStart; c = c.Add(step) {
		if e.ConflictsWithBreak(c, durationMinutes) {
			continue
		}
		if e.IsOccupied(date, c, durationMinutes, existing) {
			continue
		}
		list.Slots = append(list.Slots, c)
	}
	if len(list.Slots) == 0 {
		list.Reason = ReasonNoCapacity
	}
	return list
}

// EarliestStart is now plus the lead time rounded up to the next slot
// boundary. It returns NoClock when that falls on a later day.
func (e *Engine) EarliestStart(now time.Time) Clock {
	local := now.In(e.Location)
	min := local.Hour()*60 + local.Minute() + e.LeadHours*60
	if local.Second() > 0 || local.Nanosecond() > 0 {
		min++
	}
	step := e.Hours.SlotMinutes
	if step <= 0 {
		step = 30
	}
	if rem := min % step; rem != 0 {
		min += step - rem
	}
	if min >= 24*60 {
		return NoClock
	}
	return Clock(min)
}

// MeetsLeadTime reports whether a booking at date/c respects the lead time.
func (e *Engine) MeetsLeadTime(date Date, c Clock, now time.Time) bool {
	start := date.At(c, e.Location)
	return !start.Before(now.Add(time.Duration(e.LeadHours) * time.Hour))
}

// IsOccupied reports whether [c, c+duration) overlaps an existing booking.
func (e *Engine) IsOccupied(date Date, c Clock, durationMinutes int, existing []Interval) bool {
	start := date.At(c, e.Location)
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	for _, iv := range existing {
		if iv.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// ConflictsWithBreak reports whether [c, c+duration) touches the break.
func (e *Engine) ConflictsWithBreak(c Clock, durationMinutes int) bool {
	end := c.Add(durationMinutes)
	return c < e.Hours.BreakEnd && e.Hours.BreakStart < end
}

// IsSurchargeTime reports whether c falls outside general hours but inside
// the surcharge window.
func (e *Engine) IsSurchargeTime(c Clock) bool {
	g, s := e.Hours.General, e.Hours.Surcharge
	morning := c >= s.Open && c < g.Open
	evening := c >= g.Close && c < s.Close
	return morning || evening
}

// ClassFor derives the schedule class from a start time.
func (e *Engine) ClassFor(c Clock) Class {
	if e.IsSurchargeTime(c) {
		return ClassSurcharge
	}
	return ClassGeneral
}

// InWindow reports whether c is an acceptable start for class.
func (e *Engine) InWindow(c Clock, class Class) bool {
	return e.Hours.Window(class).Contains(c)
}

// Price is the amount charged for svc in the given class; the surcharge
// window doubles it.
func Price(svc catalog.Service, class Class) int {
	if class == ClassSurcharge {
		return svc.Price * 2
	}
	return svc.Price
}

func (e *Engine) align(c, origin Clock) Clock {
	step := Clock(e.Hours.SlotMinutes)
	if step <= 0 {
		return c
	}
	if c <= origin {
		return origin
	}
	off := (c - origin) % step
	if off == 0 {
		return c
	}
	return c + step - off
}
