package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps events in process. Used by tests and by the
// operator chat REPL.
type MemoryRepository struct {
	mu     sync.RWMutex
	events map[string]map[string]Appointment
	known  map[string]bool
}

// NewMemoryRepository creates a store with the given calendars. With no
// keys every calendar key is accepted.
func NewMemoryRepository(calendarKeys ...string) *MemoryRepository {
	r := &MemoryRepository{
		events: make(map[string]map[string]Appointment),
		known:  make(map[string]bool),
	}
	for _, k := range calendarKeys {
		r.known[k] = true
	}
	return r
}

func (r *MemoryRepository) check(key string) error {
	if len(r.known) > 0 && !r.known[key] {
		return fmt.Errorf("%w: %q", ErrCalendarNotFound, key)
	}
	return nil
}

func (r *MemoryRepository) ListAppointments(ctx context.Context, calendarKey string, from, to time.Time) ([]Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.check(calendarKey); err != nil {
		return nil, err
	}
	var out []Appointment
	for _, a := range r.events[calendarKey] {
		if a.End.After(from) && a.Start.Before(to) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (r *MemoryRepository) CreateAppointment(ctx context.Context, calendarKey string, appt NewAppointment) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return Ref{}, err
	}
	if !appt.End.After(appt.Start) {
		return Ref{}, fmt.Errorf("calendar: end must be after start")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(calendarKey); err != nil {
		return Ref{}, err
	}
	id := uuid.NewString()
	if r.events[calendarKey] == nil {
		r.events[calendarKey] = make(map[string]Appointment)
	}
	r.events[calendarKey][id] = Appointment{
		ID:          id,
		CalendarKey: calendarKey,
		Start:       appt.Start,
		End:         appt.End,
		Summary:     appt.Summary,
		Description: appt.Description,
	}
	return Ref{CalendarKey: calendarKey, EventID: id}, nil
}

func (r *MemoryRepository) DeleteAppointment(ctx context.Context, ref Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ref.CalendarKey); err != nil {
		return err
	}
	if _, ok := r.events[ref.CalendarKey][ref.EventID]; !ok {
		return ErrNotFound
	}
	delete(r.events[ref.CalendarKey], ref.EventID)
	return nil
}

// Len counts stored events across calendars.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, evs := range r.events {
		n += len(evs)
	}
	return n
}
