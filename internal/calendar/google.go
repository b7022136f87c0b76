package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

var calendarTracer = otel.Tracer("barberbot/calendar")

// calendarAPI is the slice of the Google Calendar service the repository
// needs.
type calendarAPI interface {
	ListCalendars(ctx context.Context) ([]*gcal.CalendarListEntry, error)
	ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]*gcal.Event, error)
	InsertEvent(ctx context.Context, calendarID string, ev *gcal.Event) (*gcal.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// GoogleRepository implements Repository on Google Calendar. Staff
// calendars are looked up by summary ("Citas - Mauricio") and the ids are
// cached for the life of the process.
type GoogleRepository struct {
	api      calendarAPI
	location *time.Location
	recorder Recorder
	logger   *logging.Logger

	mu  sync.Mutex
	ids map[string]string
}

// GoogleOption customizes a GoogleRepository.
type GoogleOption func(*GoogleRepository)

func WithLocation(loc *time.Location) GoogleOption {
	return func(r *GoogleRepository) {
		if loc != nil {
			r.location = loc
		}
	}
}

func WithRecorder(rec Recorder) GoogleOption {
	return func(r *GoogleRepository) { r.recorder = rec }
}

func WithLogger(logger *logging.Logger) GoogleOption {
	return func(r *GoogleRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func newGoogleRepository(api calendarAPI, opts ...GoogleOption) *GoogleRepository {
	if api == nil {
		panic("calendar: google api cannot be nil")
	}
	r := &GoogleRepository{
		api:      api,
		location: time.UTC,
		logger:   logging.Default(),
		ids:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewGoogleRepository wraps an authorized Calendar service.
func NewGoogleRepository(svc *gcal.Service, opts ...GoogleOption) *GoogleRepository {
	if svc == nil {
		panic("calendar: google service cannot be nil")
	}
	return newGoogleRepository(&googleService{svc: svc}, opts...)
}

func (r *GoogleRepository) ListAppointments(ctx context.Context, calendarKey string, from, to time.Time) (out []Appointment, err error) {
	ctx, done := r.trace(ctx, "list", calendarKey)
	defer func() { done(err) }()

	id, err := r.calendarID(ctx, calendarKey)
	if err != nil {
		return nil, err
	}
	events, err := r.api.ListEvents(ctx, id, from, to)
	if err != nil {
		return nil, classify("list events", err)
	}
	out = make([]Appointment, 0, len(events))
	for _, ev := range events {
		appt, ok := r.fromEvent(calendarKey, ev)
		if !ok {
			continue
		}
		out = append(out, appt)
	}
	return out, nil
}

func (r *GoogleRepository) CreateAppointment(ctx context.Context, calendarKey string, appt NewAppointment) (ref Ref, err error) {
	ctx, done := r.trace(ctx, "create", calendarKey)
	defer func() { done(err) }()

	id, err := r.calendarID(ctx, calendarKey)
	if err != nil {
		return Ref{}, err
	}
	created, err := r.api.InsertEvent(ctx, id, r.toEvent(appt))
	if err != nil {
		return Ref{}, classify("insert event", err)
	}
	r.logger.Info("calendar event created", "calendar", calendarKey, "event_id", created.Id, "start", appt.Start.Format(time.RFC3339))
	return Ref{CalendarKey: calendarKey, EventID: created.Id}, nil
}

func (r *GoogleRepository) DeleteAppointment(ctx context.Context, ref Ref) (err error) {
	ctx, done := r.trace(ctx, "delete", ref.CalendarKey)
	defer func() { done(err) }()

	id, err := r.calendarID(ctx, ref.CalendarKey)
	if err != nil {
		return err
	}
	if err := r.api.DeleteEvent(ctx, id, ref.EventID); err != nil {
		return classify("delete event", err)
	}
	r.logger.Info("calendar event deleted", "calendar", ref.CalendarKey, "event_id", ref.EventID)
	return nil
}

// calendarID resolves a calendar summary to its id, refreshing the cache
// once on a miss.
func (r *GoogleRepository) calendarID(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[key]; ok {
		return id, nil
	}
	entries, err := r.api.ListCalendars(ctx)
	if err != nil {
		return "", classify("list calendars", err)
	}
	for _, e := range entries {
		if e == nil {
			continue
		}
		r.ids[e.Summary] = e.Id
	}
	if id, ok := r.ids[key]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %q", ErrCalendarNotFound, key)
}

func (r *GoogleRepository) toEvent(appt NewAppointment) *gcal.Event {
	ev := &gcal.Event{
		Summary:     appt.Summary,
		Description: appt.Description,
		Start: &gcal.EventDateTime{
			DateTime: appt.Start.In(r.location).Format(time.RFC3339),
			TimeZone: r.location.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: appt.End.In(r.location).Format(time.RFC3339),
			TimeZone: r.location.String(),
		},
	}
	if appt.ReminderMinutes > 0 {
		ev.Reminders = &gcal.EventReminders{
			UseDefault:      false,
			Overrides:       []*gcal.EventReminder{{Method: "popup", Minutes: int64(appt.ReminderMinutes)}},
			ForceSendFields: []string{"UseDefault"},
		}
	}
	return ev
}

// fromEvent skips all-day and malformed events; they never block slots.
func (r *GoogleRepository) fromEvent(key string, ev *gcal.Event) (Appointment, bool) {
	if ev == nil || ev.Start == nil || ev.End == nil || ev.Start.DateTime == "" || ev.End.DateTime == "" {
		return Appointment{}, false
	}
	start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
	if err != nil {
		return Appointment{}, false
	}
	end, err := time.Parse(time.RFC3339, ev.End.DateTime)
	if err != nil {
		return Appointment{}, false
	}
	return Appointment{
		ID:          ev.Id,
		CalendarKey: key,
		Start:       start.In(r.location),
		End:         end.In(r.location),
		Summary:     ev.Summary,
		Description: ev.Description,
	}, true
}

func (r *GoogleRepository) trace(ctx context.Context, op, key string) (context.Context, func(error)) {
	ctx, span := calendarTracer.Start(ctx, "calendar."+op)
	span.SetAttributes(attribute.String("calendar.key", key))
	start := time.Now()
	return ctx, func(err error) {
		status := "ok"
		if err != nil {
			status = "error"
			if errors.Is(err, ErrAuthExpired) {
				status = "auth_expired"
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if r.recorder != nil {
			r.recorder.ObserveCalendar(op, status, time.Since(start))
		}
		span.End()
	}
}

// classify maps provider failures onto the package sentinels.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("calendar: %s: %w: %w", op, ErrAuthExpired, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("calendar: %s: %w: %w", op, ErrAuthExpired, err)
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("calendar: %s: %w: %w", op, ErrNotFound, err)
		}
	}
	if strings.Contains(err.Error(), "invalid_grant") {
		return fmt.Errorf("calendar: %s: %w: %w", op, ErrAuthExpired, err)
	}
	return fmt.Errorf("calendar: %s: %w", op, err)
}

// googleService adapts *gcal.Service to calendarAPI.
type googleService struct {
	svc *gcal.Service
}

func (g *googleService) ListCalendars(ctx context.Context) ([]*gcal.CalendarListEntry, error) {
	var out []*gcal.CalendarListEntry
	err := g.svc.CalendarList.List().Pages(ctx, func(page *gcal.CalendarList) error {
		out = append(out, page.Items...)
		return nil
	})
	return out, err
}

func (g *googleService) ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]*gcal.Event, error) {
	var out []*gcal.Event
	err := g.svc.Events.List(calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Pages(ctx, func(page *gcal.Events) error {
			out = append(out, page.Items...)
			return nil
		})
	return out, err
}

func (g *googleService) InsertEvent(ctx context.Context, calendarID string, ev *gcal.Event) (*gcal.Event, error) {
	return g.svc.Events.Insert(calendarID, ev).Context(ctx).Do()
}

func (g *googleService) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	return g.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
}
