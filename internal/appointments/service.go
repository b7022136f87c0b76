// Package appointments creates, reschedules and cancels bookings on the
// staff calendars, re-validating every request against fresh availability.
package appointments

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/wolfman30/barber-booking-bot/internal/calendar"
	"github.com/wolfman30/barber-booking-bot/internal/catalog"
	"github.com/wolfman30/barber-booking-bot/internal/schedule"
	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

const (
	defaultSearchWindow = 30 * 24 * time.Hour
	reminderMinutes     = 30
)

// Recorder receives lifecycle outcomes.
type Recorder interface {
	ObserveBooking(outcome string)
}

// AuthAlerter is told when the calendar credentials expire.
type AuthAlerter interface {
	AuthExpired(ctx context.Context, err error)
}

// OrphanAlerter is told when a reschedule created the new appointment but
// could not remove the original, leaving two live bookings.
type OrphanAlerter interface {
	OrphanedAppointment(ctx context.Context, original calendar.Ref, client string, cause error)
}

// Booking is a fully collected request.
type Booking struct {
	Staff       catalog.StaffMember
	Service     catalog.Service
	Date        schedule.Date
	Time        schedule.Clock
	Class       schedule.Class
	ClientName  string
	ClientPhone string
	// Replaces is the appointment a reschedule moves away from.
	Replaces *calendar.Ref
}

// Confirmation describes a created appointment.
type Confirmation struct {
	Ref         calendar.Ref
	Start       time.Time
	End         time.Time
	Class       schedule.Class
	Price       int
	Rescheduled bool
	// ReplaceErr is set when the new appointment exists but the old one
	// could not be removed.
	ReplaceErr error
}

// Match is an upcoming appointment found for a client.
type Match struct {
	Appointment  calendar.Appointment
	Details      Details
	Staff        catalog.StaffMember
	Service      catalog.Service
	Modifiable   bool
	MinutesUntil int
}

// Service implements the booking lifecycle.
type Service struct {
	repo         calendar.Repository
	catalog      *catalog.Catalog
	engine       *schedule.Engine
	searchWindow time.Duration
	logger       *logging.Logger
	recorder     Recorder
	alerter      AuthAlerter
	orphans      OrphanAlerter
}

// Option customizes a Service.
type Option func(*Service)

func WithSearchWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.searchWindow = d
		}
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithAuthAlerter(a AuthAlerter) Option {
	return func(s *Service) { s.alerter = a }
}

func WithOrphanAlerter(a OrphanAlerter) Option {
	return func(s *Service) { s.orphans = a }
}

// NewService wires the lifecycle to a calendar repository.
func NewService(repo calendar.Repository, cat *catalog.Catalog, engine *schedule.Engine, opts ...Option) *Service {
	if repo == nil {
		panic("appointments: calendar repository cannot be nil")
	}
	if cat == nil {
		panic("appointments: catalog cannot be nil")
	}
	if engine == nil {
		panic("appointments: schedule engine cannot be nil")
	}
	s := &Service{
		repo:         repo,
		catalog:      cat,
		engine:       engine,
		searchWindow: defaultSearchWindow,
		logger:       logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine exposes the availability policy in use.
func (s *Service) Engine() *schedule.Engine { return s.engine }

// Catalog exposes the catalog in use.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Existing returns the booked intervals on date for a staff member,
// skipping the event identified by exclude.
func (s *Service) Existing(ctx context.Context, staff catalog.StaffMember, date schedule.Date, exclude *calendar.Ref) ([]schedule.Interval, error) {
	from := date.In(s.engine.Location)
	appts, err := s.repo.ListAppointments(ctx, staff.CalendarKey, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, s.calendarFailure(ctx, "list appointments", err)
	}
	out := make([]schedule.Interval, 0, len(appts))
	for _, a := range appts {
		if exclude != nil && a.ID == exclude.EventID {
			continue
		}
		out = append(out, schedule.Interval{Start: a.Start, End: a.End})
	}
	return out, nil
}

// Slots lists the bookable starts for staff/service on date. A calendar
// failure is returned as an *Error alongside an empty list.
func (s *Service) Slots(ctx context.Context, staff catalog.StaffMember, svc catalog.Service, date schedule.Date, class schedule.Class, exclude *calendar.Ref, now time.Time) (schedule.SlotList, error) {
	if class == "" {
		class = schedule.ClassGeneral
	}
	existing, err := s.Existing(ctx, staff, date, exclude)
	if err != nil {
		return schedule.SlotList{Date: date, Class: class, Reason: schedule.ReasonNoCapacity}, err
	}
	return s.engine.Slots(date, svc.DurationMinutes, existing, class, now), nil
}

// Confirm re-validates b against the calendar as it is now and creates the
// appointment. For a reschedule the original is removed only after the
// replacement exists.
func (s *Service) Confirm(ctx context.Context, b Booking, now time.Time) (Confirmation, error) {
	conf, err := s.confirm(ctx, b, now)
	if err != nil {
		s.record("rejected")
		return Confirmation{}, err
	}
	if conf.Rescheduled {
		s.record("rescheduled")
		if conf.ReplaceErr != nil {
			s.record("reschedule_orphan")
			if s.orphans != nil {
				s.orphans.OrphanedAppointment(ctx, *b.Replaces, b.ClientName, conf.ReplaceErr)
			}
		}
	} else {
		s.record("created")
	}
	return conf, nil
}

func (s *Service) confirm(ctx context.Context, b Booking, now time.Time) (Confirmation, error) {
	if err := s.validate(b, now); err != nil {
		return Confirmation{}, err
	}

	// The class is derived from the start time, never taken from the session.
	class := s.engine.ClassFor(b.Time)
	if class == schedule.ClassSurcharge && b.Class != schedule.ClassSurcharge {
		return Confirmation{}, validation("surcharge time was not acknowledged")
	}
	if !s.engine.InWindow(b.Time, class) {
		return Confirmation{}, validation("time is outside opening hours")
	}

	existing, err := s.Existing(ctx, b.Staff, b.Date, b.Replaces)
	if err != nil {
		return Confirmation{}, err
	}
	conflict := func(msg string) *Error {
		return &Error{
			Kind:    KindConflict,
			Message: msg,
			Slots:   s.engine.Slots(b.Date, b.Service.DurationMinutes, existing, class, now),
		}
	}
	if s.engine.ConflictsWithBreak(b.Time, b.Service.DurationMinutes) {
		return Confirmation{}, conflict("overlaps the break")
	}
	if !s.engine.MeetsLeadTime(b.Date, b.Time, now) {
		return Confirmation{}, conflict("inside the lead time")
	}
	if s.engine.IsOccupied(b.Date, b.Time, b.Service.DurationMinutes, existing) {
		return Confirmation{}, conflict("slot already booked")
	}

	start := b.Date.At(b.Time, s.engine.Location)
	end := start.Add(time.Duration(b.Service.DurationMinutes) * time.Minute)
	price := schedule.Price(b.Service, class)
	ref, err := s.repo.CreateAppointment(ctx, b.Staff.CalendarKey, calendar.NewAppointment{
		Summary: Summary(b.Service, b.ClientName),
		Description: EncodeDescription(Details{
			ClientName:      b.ClientName,
			ClientPhone:     b.ClientPhone,
			StaffName:       b.Staff.Name,
			ServiceName:     b.Service.Name,
			Class:           class,
			Price:           price,
			DurationMinutes: b.Service.DurationMinutes,
		}),
		Start:           start,
		End:             end,
		ReminderMinutes: reminderMinutes,
	})
	if err != nil {
		return Confirmation{}, s.calendarFailure(ctx, "create appointment", err)
	}

	conf := Confirmation{Ref: ref, Start: start, End: end, Class: class, Price: price}
	if b.Replaces != nil && !b.Replaces.IsZero() {
		conf.Rescheduled = true
		if err := s.repo.DeleteAppointment(ctx, *b.Replaces); err != nil && !errors.Is(err, calendar.ErrNotFound) {
			conf.ReplaceErr = err
			s.logger.Error("reschedule left the original appointment in place",
				"calendar", b.Replaces.CalendarKey, "event_id", b.Replaces.EventID, "error", err)
		}
	}
	s.logger.Info("appointment confirmed",
		"calendar", ref.CalendarKey, "event_id", ref.EventID, "start", start.Format(time.RFC3339),
		"class", string(class), "rescheduled", conf.Rescheduled)
	return conf, nil
}

func (s *Service) validate(b Booking, now time.Time) *Error {
	switch {
	case b.Staff.CalendarKey == "":
		return validation("staff member is required")
	case b.Service.ID == 0 || b.Service.DurationMinutes <= 0:
		return validation("service is required")
	case b.Date.IsZero():
		return validation("date is required")
	case !b.Time.Valid():
		return validation("time is required")
	case len([]rune(strings.TrimSpace(b.ClientName))) < 2:
		return validation("client name is too short")
	case strings.TrimSpace(b.ClientPhone) == "":
		return validation("client phone is required")
	case b.Date.Before(s.engine.Today(now)):
		return validation("date is in the past")
	case s.engine.Hours.ClosedOn(b.Date):
		return validation("closed on that day")
	}
	return nil
}

// CanModify applies the lead-time gate to an existing appointment. It
// returns the whole minutes left before the start.
func (s *Service) CanModify(start, now time.Time) (bool, int) {
	until := start.Sub(now)
	return until >= time.Duration(s.engine.LeadHours)*time.Hour, int(until / time.Minute)
}

// FindByClient scans every staff calendar over the search window for
// upcoming appointments whose client name or phone matches query.
func (s *Service) FindByClient(ctx context.Context, query string, now time.Time) ([]Match, error) {
	name := catalog.Fold(query)
	digits := digitsOf(query)
	if name == "" {
		return nil, validation("search query is empty")
	}

	var (
		out     []Match
		lastErr error
		failed  int
	)
	for _, staff := range s.catalog.Staff {
		appts, err := s.repo.ListAppointments(ctx, staff.CalendarKey, now, now.Add(s.searchWindow))
		if err != nil {
			if errors.Is(err, calendar.ErrAuthExpired) {
				return nil, s.calendarFailure(ctx, "search appointments", err)
			}
			s.logger.Warn("appointment search skipped calendar", "calendar", staff.CalendarKey, "error", err)
			lastErr = err
			failed++
			continue
		}
		for _, a := range appts {
			details := DecodeDescription(a.Description)
			if !matchesClient(details, a.Summary, name, digits) {
				continue
			}
			m := Match{Appointment: a, Details: details, Staff: staff}
			if svc, ok := s.catalog.ServiceByName(details.ServiceName); ok {
				m.Service = svc
			}
			m.Modifiable, m.MinutesUntil = s.CanModify(a.Start, now)
			out = append(out, m)
		}
	}
	if failed == len(s.catalog.Staff) && lastErr != nil {
		return nil, fromCalendar("search appointments", lastErr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Appointment.Start.Before(out[j].Appointment.Start) })
	return out, nil
}

func matchesClient(d Details, summary, name, digits string) bool {
	if len(digits) >= 7 {
		if phone := digitsOf(d.ClientPhone); phone != "" && strings.Contains(phone, digits) {
			return true
		}
	}
	client := d.ClientName
	if client == "" {
		client = ClientFromSummary(summary)
	}
	folded := catalog.Fold(client)
	return folded != "" && strings.Contains(folded, name)
}

// Cancel deletes an appointment when it is still outside the lead time.
func (s *Service) Cancel(ctx context.Context, ref calendar.Ref, start, now time.Time) error {
	if ok, minutes := s.CanModify(start, now); !ok {
		s.record("rejected")
		return &Error{Kind: KindTooLate, Message: "appointment starts too soon", MinutesUntil: minutes}
	}
	if err := s.repo.DeleteAppointment(ctx, ref); err != nil {
		s.record("rejected")
		return s.calendarFailure(ctx, "delete appointment", err)
	}
	s.record("cancelled")
	s.logger.Info("appointment cancelled", "calendar", ref.CalendarKey, "event_id", ref.EventID)
	return nil
}

func (s *Service) calendarFailure(ctx context.Context, op string, err error) *Error {
	e := fromCalendar(op, err)
	if e.Kind == KindAuthExpired && s.alerter != nil {
		s.alerter.AuthExpired(ctx, err)
	}
	return e
}

func (s *Service) record(outcome string) {
	if s.recorder != nil {
		s.recorder.ObserveBooking(outcome)
	}
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
