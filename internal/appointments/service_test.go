package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/barber-booking-bot/internal/calendar"
	"github.com/wolfman30/barber-booking-bot/internal/catalog"
	"github.com/wolfman30/barber-booking-bot/internal/schedule"
)

var bogota = time.FixedZone("COT", -5*60*60)

// Monday 15 December 2025, 08:00 local.
var now = time.Date(2025, 12, 15, 8, 0, 0, 0, bogota)

type outcomes struct{ seen []string }

func (o *outcomes) ObserveBooking(outcome string) { o.seen = append(o.seen, outcome) }

type alerts struct{ n int }

func (a *alerts) AuthExpired(context.Context, error) { a.n++ }

type orphanAlerts struct {
	refs    []calendar.Ref
	clients []string
}

func (o *orphanAlerts) OrphanedAppointment(_ context.Context, original calendar.Ref, client string, _ error) {
	o.refs = append(o.refs, original)
	o.clients = append(o.clients, client)
}

// failingRepo wraps a repository and injects failures per operation.
type failingRepo struct {
	calendar.Repository
	listErr   error
	createErr error
	deleteErr error
	deletes   int
}

func (f *failingRepo) ListAppointments(ctx context.Context, key string, from, to time.Time) ([]calendar.Appointment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Repository.ListAppointments(ctx, key, from, to)
}

func (f *failingRepo) CreateAppointment(ctx context.Context, key string, appt calendar.NewAppointment) (calendar.Ref, error) {
	if f.createErr != nil {
		return calendar.Ref{}, f.createErr
	}
	return f.Repository.CreateAppointment(ctx, key, appt)
}

func (f *failingRepo) DeleteAppointment(ctx context.Context, ref calendar.Ref) error {
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Repository.DeleteAppointment(ctx, ref)
}

func newService(t *testing.T, repo calendar.Repository, opts ...Option) *Service {
	t.Helper()
	engine := schedule.NewEngine(schedule.DefaultHours(), 1, bogota)
	return NewService(repo, catalog.Default(), engine, opts...)
}

func booking(t *testing.T, staffID, serviceID int, date schedule.Date, at string) Booking {
	t.Helper()
	cat := catalog.Default()
	staff, ok := cat.StaffByID(staffID)
	require.True(t, ok)
	svc, ok := cat.ServiceByID(serviceID)
	require.True(t, ok)
	return Booking{
		Staff:       staff,
		Service:     svc,
		Date:        date,
		Time:        schedule.MustClock(at),
		Class:       schedule.ClassGeneral,
		ClientName:  "Juan Pérez",
		ClientPhone: "3001234567",
	}
}

func seed(t *testing.T, repo calendar.Repository, key string, date schedule.Date, at string, minutes int, summary, desc string) calendar.Ref {
	t.Helper()
	start := date.At(schedule.MustClock(at), bogota)
	ref, err := repo.CreateAppointment(context.Background(), key, calendar.NewAppointment{
		Summary: summary, Description: desc, Start: start, End: start.Add(time.Duration(minutes) * time.Minute),
	})
	require.NoError(t, err)
	return ref
}

func TestConfirmCreatesAppointment(t *testing.T) {
	repo := calendar.NewMemoryRepository()
	rec := &outcomes{}
	svc := newService(t, repo, WithRecorder(rec))
	tomorrow := schedule.NewDate(2025, 12, 16)

	conf, err := svc.Confirm(context.Background(), booking(t, 1, 2, tomorrow, "15:00"), now)
	require.NoError(t, err)
	assert.Equal(t, "Citas - Mauricio", conf.Ref.CalendarKey)
	assert.Equal(t, 25000, conf.Price)
	assert.Equal(t, schedule.ClassGeneral, conf.Class)
	assert.Equal(t, 45*time.Minute, conf.End.Sub(conf.Start))
	assert.False(t, conf.Rescheduled)
	assert.Equal(t, []string{"created"}, rec.seen)

	appts, err := repo.ListAppointments(context.Background(), "Citas - Mauricio", conf.Start, conf.End)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "🧔 Corte con barba - Juan Pérez", appts[0].Summary)
	d := DecodeDescription(appts[0].Description)
	assert.Equal(t, "Juan Pérez", d.ClientName)
	assert.Equal(t, "3001234567", d.ClientPhone)
	assert.Equal(t, 25000, d.Price)
}

func TestConfirmStaleSlotReturnsConflictWithFreshList(t *testing.T) {
	repo := calendar.NewMemoryRepository()
	svc := newService(t, repo)
	tomorrow := schedule.NewDate(2025, 12, 16)
	seed(t, repo, "Citas - Mauricio", tomorrow, "10:00", 45, "x", "")

	_, err := svc.Confirm(context.Background(), booking(t, 1, 1, tomorrow, "10:30"), now)
	require.Error(t, err)
	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, KindConflict, ae.Kind)
	assert.False(t, ae.Slots.Empty())
	assert.False(t, ae.Slots.Contains(schedule.MustClock("10:00")))
	assert.False(t, ae.Slots.Contains(schedule.MustClock("10:30")))
	assert.True(t, ae.Slots.Contains(schedule.MustClock("11:00")))
	assert.Equal(t, 1, repo.Len())
}

func TestConfirmRejections(t *testing.T) {
	tomorrow := schedule.NewDate(2025, 12, 16)
	sunday := schedule.NewDate(2025, 12, 21)
	tests := []struct {
		name   string
		mutate func(*Booking)
		kind   Kind
	}{
		{"break", func(b *Booking) { b.Time = schedule.MustClock("12:45") }, KindConflict},
		{"short name", func(b *Booking) { b.ClientName = "J" }, KindValidation},
		{"missing phone", func(b *Booking) { b.ClientPhone = " " }, KindValidation},
		{"sunday", func(b *Booking) { b.Date = sunday }, KindValidation},
		{"past", func(b *Booking) { b.Date = schedule.NewDate(2025, 12, 13) }, KindValidation},
		{"surcharge not acknowledged", func(b *Booking) { b.Time = schedule.MustClock("20:30") }, KindValidation},
		{"outside every window", func(b *Booking) { b.Time = schedule.MustClock("06:00"); b.Class = schedule.ClassSurcharge }, KindValidation},
		{"early morning without surcharge", func(b *Booking) { b.Time = schedule.MustClock("08:30") }, KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, calendar.NewMemoryRepository())
			b := booking(t, 1, 1, tomorrow, "15:00")
			tt.mutate(&b)
			_, err := svc.Confirm(context.Background(), b, now)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestConfirmLeadTimeToday(t *testing.T) {
	svc := newService(t, calendar.NewMemoryRepository())
	today := schedule.NewDate(2025, 12, 15)
	at := time.Date(2025, 12, 15, 9, 10, 0, 0, bogota)

	b := booking(t, 1, 1, today, "09:30")
	_, err := svc.Confirm(context.Background(), b, at)
	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, KindConflict, ae.Kind)
	require.False(t, ae.Slots.Empty())
	assert.Equal(t, "10:30", ae.Slots.Slots[0].String())
}

func TestConfirmSurchargeDoublesPrice(t *testing.T) {
	svc := newService(t, calendar.NewMemoryRepository())
	b := booking(t, 2, 1, schedule.NewDate(2025, 12, 16), "20:30")
	b.Class = schedule.ClassSurcharge

	conf, err := svc.Confirm(context.Background(), b, now)
	require.NoError(t, err)
	assert.Equal(t, schedule.ClassSurcharge, conf.Class)
	assert.Equal(t, 40000, conf.Price)
}

func TestRescheduleDeletesOriginalOnlyAfterCreate(t *testing.T) {
	mem := calendar.NewMemoryRepository()
	tomorrow := schedule.NewDate(2025, 12, 16)
	original := seed(t, mem, "Citas - Mauricio", tomorrow, "10:00", 30, "✂️ Corte de cabello - Juan Pérez", "")

	repo := &failingRepo{Repository: mem, createErr: errors.New("backend down")}
	svc := newService(t, repo)
	b := booking(t, 1, 1, tomorrow, "16:00")
	b.Replaces = &original

	_, err := svc.Confirm(context.Background(), b, now)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Equal(t, 0, repo.deletes)
	assert.Equal(t, 1, mem.Len())

	repo.createErr = nil
	conf, err := svc.Confirm(context.Background(), b, now)
	require.NoError(t, err)
	assert.True(t, conf.Rescheduled)
	assert.NoError(t, conf.ReplaceErr)
	assert.Equal(t, 1, repo.deletes)
	assert.Equal(t, 1, mem.Len())
}

func TestRescheduleIgnoresItsOwnSlot(t *testing.T) {
	mem := calendar.NewMemoryRepository()
	tomorrow := schedule.NewDate(2025, 12, 16)
	original := seed(t, mem, "Citas - Mauricio", tomorrow, "10:00", 30, "x", "")

	svc := newService(t, mem)
	b := booking(t, 1, 2, tomorrow, "10:00")
	b.Replaces = &original
	_, err := svc.Confirm(context.Background(), b, now)
	require.NoError(t, err)
}

func TestRescheduleReportsLeftoverOriginal(t *testing.T) {
	mem := calendar.NewMemoryRepository()
	tomorrow := schedule.NewDate(2025, 12, 16)
	original := seed(t, mem, "Citas - Stiven", tomorrow, "10:00", 30, "x", "")
	repo := &failingRepo{Repository: mem, deleteErr: errors.New("timeout")}
	seen := &outcomes{}
	orphans := &orphanAlerts{}
	svc := newService(t, repo, WithRecorder(seen), WithOrphanAlerter(orphans))

	b := booking(t, 1, 1, tomorrow, "11:00")
	b.Replaces = &original
	conf, err := svc.Confirm(context.Background(), b, now)
	require.NoError(t, err)
	assert.Error(t, conf.ReplaceErr)
	assert.Equal(t, 2, mem.Len())
	assert.Equal(t, []string{"rescheduled", "reschedule_orphan"}, seen.seen)
	assert.Equal(t, []calendar.Ref{original}, orphans.refs)
	assert.Equal(t, []string{"Juan Pérez"}, orphans.clients)
}

func TestAuthExpiredAlerts(t *testing.T) {
	repo := &failingRepo{Repository: calendar.NewMemoryRepository(), listErr: calendar.ErrAuthExpired}
	alerter := &alerts{}
	svc := newService(t, repo, WithAuthAlerter(alerter))

	_, err := svc.Confirm(context.Background(), booking(t, 1, 1, schedule.NewDate(2025, 12, 16), "15:00"), now)
	assert.Equal(t, KindAuthExpired, KindOf(err))
	assert.True(t, errors.Is(err, calendar.ErrAuthExpired))

	_, err = svc.FindByClient(context.Background(), "Juan", now)
	assert.Equal(t, KindAuthExpired, KindOf(err))
	assert.Equal(t, 2, alerter.n)
}

func TestSlotsDegradeOnCalendarFailure(t *testing.T) {
	repo := &failingRepo{Repository: calendar.NewMemoryRepository(), listErr: errors.New("boom")}
	svc := newService(t, repo)
	cat := catalog.Default()

	list, err := svc.Slots(context.Background(), cat.Staff[0], cat.Services[0], schedule.NewDate(2025, 12, 16), "", nil, now)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.True(t, list.Empty())
}

func TestFindByClient(t *testing.T) {
	mem := calendar.NewMemoryRepository()
	tomorrow := schedule.NewDate(2025, 12, 16)
	desc := EncodeDescription(Details{ClientName: "José Gómez", ClientPhone: "3109876543", StaffName: "Stiven", ServiceName: "Corte con barba", Class: schedule.ClassGeneral, Price: 25000, DurationMinutes: 45})
	seed(t, mem, "Citas - Stiven", tomorrow, "11:00", 45, "🧔 Corte con barba - José Gómez", desc)
	seed(t, mem, "Citas - Mauricio", tomorrow, "09:30", 30, "✂️ Corte de cabello - Jose Gomez", "")
	seed(t, mem, "Citas - Mauricio", schedule.NewDate(2025, 12, 15), "08:30", 30, "✂️ Corte de cabello - José Gómez", "")
	seed(t, mem, "Citas - Mauricio", tomorrow, "12:00", 30, "✂️ Corte de cabello - Pedro", "")

	svc := newService(t, mem)
	matches, err := svc.FindByClient(context.Background(), "jose gomez", now)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, 8, matches[0].Appointment.Start.Hour())
	assert.False(t, matches[0].Modifiable)
	assert.Equal(t, 30, matches[0].MinutesUntil)

	assert.Equal(t, "Mauricio", matches[1].Staff.Name)
	assert.True(t, matches[1].Modifiable)

	assert.Equal(t, "Stiven", matches[2].Staff.Name)
	assert.Equal(t, "Corte con barba", matches[2].Service.Name)

	byPhone, err := svc.FindByClient(context.Background(), "310 987 6543", now)
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	assert.Equal(t, "3109876543", byPhone[0].Details.ClientPhone)

	none, err := svc.FindByClient(context.Background(), "Camilo", now)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.FindByClient(context.Background(), "  ", now)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestCancel(t *testing.T) {
	mem := calendar.NewMemoryRepository()
	rec := &outcomes{}
	svc := newService(t, mem, WithRecorder(rec))
	tomorrow := schedule.NewDate(2025, 12, 16)
	ref := seed(t, mem, "Citas - Mauricio", tomorrow, "10:00", 30, "x", "")
	start := tomorrow.At(schedule.MustClock("10:00"), bogota)

	err := svc.Cancel(context.Background(), ref, start, start.Add(-30*time.Minute))
	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, KindTooLate, ae.Kind)
	assert.Equal(t, 30, ae.MinutesUntil)

	require.NoError(t, svc.Cancel(context.Background(), ref, start, now))
	assert.Equal(t, 0, mem.Len())

	err = svc.Cancel(context.Background(), ref, start, now)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, []string{"rejected", "cancelled", "rejected"}, rec.seen)
}

func TestNewServicePanicsOnNilCollaborators(t *testing.T) {
	engine := schedule.NewEngine(schedule.DefaultHours(), 1, bogota)
	assert.Panics(t, func() { NewService(nil, catalog.Default(), engine) })
	assert.Panics(t, func() { NewService(calendar.NewMemoryRepository(), nil, engine) })
	assert.Panics(t, func() { NewService(calendar.NewMemoryRepository(), catalog.Default(), nil) })
}
