package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/barber-booking-bot/internal/appointments"
	"github.com/wolfman30/barber-booking-bot/internal/calendar"
	"github.com/wolfman30/barber-booking-bot/internal/catalog"
	"github.com/wolfman30/barber-booking-bot/internal/nlu"
	"github.com/wolfman30/barber-booking-bot/internal/schedule"
	"github.com/wolfman30/barber-booking-bot/internal/session"
)

var (
	testLoc = time.FixedZone("COT", -5*3600)
	// Monday 19/10/2026 08:00 in the shop's timezone.
	testNow      = time.Date(2026, 10, 19, 8, 0, 0, 0, testLoc)
	testTomorrow = schedule.NewDate(2026, 10, 20)
)

type harness struct {
	machine *Machine
	appts   *appointments.Service
	repo    *calendar.MemoryRepository
	store   *session.MemoryStore
	cat     *catalog.Catalog
}

func newHarness(t *testing.T, opts ...MachineOption) *harness {
	t.Helper()
	cat := catalog.Default()
	repo := calendar.NewMemoryRepository()
	engine := schedule.NewEngine(schedule.DefaultHours(), 1, testLoc)
	appts := appointments.NewService(repo, cat, engine)
	store := session.NewMemoryStore(time.Hour)
	opts = append([]MachineOption{WithClock(func() time.Time { return testNow })}, opts...)
	return &harness{
		machine: NewMachine(store, appts, opts...),
		appts:   appts,
		repo:    repo,
		store:   store,
		cat:     cat,
	}
}

func (h *harness) send(t *testing.T, id, text string) string {
	t.Helper()
	replies, err := h.machine.Handle(context.Background(), id, text)
	require.NoError(t, err)
	return strings.Join(replies, "\n")
}

func (h *harness) session(t *testing.T, id string) Session {
	t.Helper()
	s, err := h.machine.Load(context.Background(), id)
	require.NoError(t, err)
	return s
}

func (h *harness) seed(t *testing.T, s Session) {
	t.Helper()
	require.NoError(t, h.machine.save(context.Background(), s))
}

func (h *harness) book(t *testing.T, staffID int, date schedule.Date, at schedule.Clock, name, phone string) appointments.Confirmation {
	t.Helper()
	staff, _ := h.cat.StaffByID(staffID)
	svc, _ := h.cat.ServiceByID(1)
	conf, err := h.appts.Confirm(context.Background(), appointments.Booking{
		Staff: staff, Service: svc, Date: date, Time: at,
		Class: schedule.ClassGeneral, ClientName: name, ClientPhone: phone,
	}, testNow)
	require.NoError(t, err)
	return conf
}

func TestMachineFullBookingByMenu(t *testing.T) {
	h := newHarness(t)
	id := "webchat:abc"

	assert.Contains(t, h.send(t, id, "hola"), "Bienvenido a Caballeros")
	assert.Equal(t, StateMenu, h.session(t, id).State)

	assert.Contains(t, h.send(t, id, "1"), "Selecciona tu barbero")
	assert.Contains(t, h.send(t, id, "2"), "Barbero seleccionado: 👨‍💼 Stiven")
	assert.Equal(t, StateSelectingService, h.session(t, id).State)

	h.send(t, id, "1")
	assert.Equal(t, StateSelectingScheduleClass, h.session(t, id).State)
	h.send(t, id, "1")
	assert.Equal(t, StateSelectingDate, h.session(t, id).State)

	reply := h.send(t, id, "mañana")
	assert.Contains(t, reply, "20/10/2026")
	assert.Contains(t, reply, "1. 09:30")
	s := h.session(t, id)
	assert.Equal(t, StateSelectingTime, s.State)
	require.NotEmpty(t, s.OfferedSlots)

	assert.Contains(t, h.send(t, id, "1"), "Hora seleccionada: 09:30")
	assert.Equal(t, StateCollectingName, h.session(t, id).State)

	h.send(t, id, "Juan Perez")
	assert.Equal(t, StateCollectingPhone, h.session(t, id).State)

	assert.Contains(t, h.send(t, id, "300 123 4567"), "CONFIRMACIÓN DE CITA")
	assert.Equal(t, StateConfirming, h.session(t, id).State)

	assert.Contains(t, h.send(t, id, "sí"), "CITA CONFIRMADA")
	assert.Equal(t, 1, h.repo.Len())
	assert.Equal(t, StateMenu, h.session(t, id).State, "session is dropped after confirming")

	appts, err := h.repo.ListAppointments(context.Background(), "Citas - Stiven", testNow, testNow.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, testTomorrow.At(schedule.NewClock(9, 30), testLoc), appts[0].Start)
	assert.Contains(t, appts[0].Description, "3001234567")
}

func TestMachineFreeTextPrefillsFields(t *testing.T) {
	h := newHarness(t)
	id := "webchat:free"

	reply := h.send(t, id, "quiero un corte con barba con Mauricio mañana a las 4")
	assert.Contains(t, reply, "He entendido tu solicitud")
	s := h.session(t, id)
	assert.Equal(t, 1, s.StaffID)
	assert.Equal(t, 2, s.ServiceID)
	require.NotNil(t, s.Date)
	assert.Equal(t, testTomorrow, *s.Date)
	require.NotNil(t, s.Time)
	assert.Equal(t, schedule.NewClock(16, 0), *s.Time)
	assert.Equal(t, StateCollectingName, s.State)
}

func TestMachineTimeOnlyStaysInTimeSelection(t *testing.T) {
	h := newHarness(t)
	id := "webchat:timeonly"
	h.seed(t, Session{ID: id, State: StateSelectingTime, Flow: FlowBook, StaffID: 2, ServiceID: 1, Class: schedule.ClassGeneral})

	h.send(t, id, "a las 10")
	s := h.session(t, id)
	assert.Equal(t, StateSelectingTime, s.State)
	assert.Nil(t, s.Date)
	require.NotNil(t, s.Time)
	assert.Equal(t, schedule.NewClock(10, 0), *s.Time)
	assert.Equal(t, 2, s.StaffID)
	assert.Equal(t, 1, s.ServiceID)

	h.send(t, id, "mañana")
	s = h.session(t, id)
	require.NotNil(t, s.Date)
	assert.Equal(t, testTomorrow, *s.Date)
	assert.Equal(t, schedule.NewClock(10, 0), *s.Time)
	assert.Equal(t, StateCollectingName, s.State)
}

func TestMachineStaleConfirmationReturnsToTimeSelection(t *testing.T) {
	h := newHarness(t)
	id := "webchat:stale"
	ten := schedule.NewClock(10, 0)
	date := testTomorrow
	h.seed(t, Session{
		ID: id, State: StateConfirming, Flow: FlowBook, StaffID: 2, ServiceID: 1,
		Date: &date, Time: &ten, Class: schedule.ClassGeneral,
		ClientName: "Ana", ClientPhone: "3001234567",
	})
	h.book(t, 2, testTomorrow, ten, "Otro Cliente", "3009999999")

	reply := h.send(t, id, "si")
	assert.Contains(t, reply, "ya no está disponible")

	s := h.session(t, id)
	assert.Equal(t, StateSelectingTime, s.State)
	assert.Nil(t, s.Time)
	require.NotEmpty(t, s.OfferedSlots)
	assert.NotContains(t, s.OfferedSlots, ten)
	assert.Equal(t, 1, h.repo.Len())
}

func TestMachineOccupiedTimeOffersAlternatives(t *testing.T) {
	h := newHarness(t)
	id := "webchat:busy"
	date := testTomorrow
	h.seed(t, Session{ID: id, State: StateSelectingTime, Flow: FlowBook, StaffID: 1, ServiceID: 1, Date: &date, Class: schedule.ClassGeneral})
	h.book(t, 1, testTomorrow, schedule.NewClock(11, 0), "Otro Cliente", "3009999999")

	reply := h.send(t, id, "11:00")
	assert.Contains(t, reply, "ya está ocupado para Mauricio")
	s := h.session(t, id)
	assert.Equal(t, StateSelectingTime, s.State)
	assert.Nil(t, s.Time)
	assert.NotContains(t, s.OfferedSlots, schedule.NewClock(11, 0))
}

func TestMachineSurchargeNeedsAcknowledgement(t *testing.T) {
	h := newHarness(t)
	id := "webchat:extra"
	date := testTomorrow
	h.seed(t, Session{ID: id, State: StateSelectingTime, Flow: FlowBook, StaffID: 1, ServiceID: 1, Date: &date, Class: schedule.ClassGeneral})

	assert.Contains(t, h.send(t, id, "21:00"), "ADVERTENCIA")
	s := h.session(t, id)
	assert.Equal(t, StateSelectingTime, s.State)
	assert.Equal(t, schedule.ClassSurcharge, s.Class)
	assert.False(t, s.SurchargeAcknowledged)

	h.send(t, id, "si")
	s = h.session(t, id)
	assert.True(t, s.SurchargeAcknowledged)
	assert.Equal(t, StateCollectingName, s.State)
}

func TestMachineSurchargeDeclinedReoffersGeneral(t *testing.T) {
	h := newHarness(t)
	id := "webchat:extra-no"
	date := testTomorrow
	nine := schedule.NewClock(21, 0)
	h.seed(t, Session{ID: id, State: StateSelectingTime, Flow: FlowBook, StaffID: 1, ServiceID: 1, Date: &date, Time: &nine, Class: schedule.ClassSurcharge})

	assert.Contains(t, h.send(t, id, "no"), "Selecciona un horario disponible")
	s := h.session(t, id)
	assert.Nil(t, s.Time)
	assert.Empty(t, s.Class)
	assert.Equal(t, StateSelectingTime, s.State)
}

func TestMachineBreakTimeRejected(t *testing.T) {
	h := newHarness(t)
	id := "webchat:lunch"
	date := testTomorrow
	h.seed(t, Session{ID: id, State: StateSelectingTime, Flow: FlowBook, StaffID: 1, ServiceID: 2, Date: &date, Class: schedule.ClassGeneral})

	assert.Contains(t, h.send(t, id, "12:30"), "almuerzo")
	assert.Nil(t, h.session(t, id).Time)
}

func TestMachineRescheduleCreatesThenDeletes(t *testing.T) {
	h := newHarness(t)
	id := "whatsapp:573001234567"
	original := h.book(t, 1, testTomorrow, schedule.NewClock(10, 0), "Juan Perez", "3001234567")

	assert.Contains(t, h.send(t, id, "quiero reagendar mi cita"), "Para reagendar tu cita")
	assert.Equal(t, StateRescheduling, h.session(t, id).State)

	assert.Contains(t, h.send(t, id, "Juan Perez"), "nueva fecha")
	s := h.session(t, id)
	assert.Equal(t, StateSelectingDate, s.State)
	assert.Equal(t, FlowReschedule, s.Flow)
	assert.Equal(t, 1, s.StaffID)
	assert.Equal(t, 1, s.ServiceID)
	assert.Equal(t, "Juan Perez", s.ClientName)
	assert.Equal(t, "3001234567", s.ClientPhone)
	require.NotNil(t, s.TargetRef())
	assert.Equal(t, original.Ref, *s.TargetRef())

	assert.Contains(t, h.send(t, id, "mañana a las 4"), "Reemplaza tu cita")
	assert.Equal(t, StateConfirming, h.session(t, id).State)

	assert.Contains(t, h.send(t, id, "si"), "CITA REAGENDADA")
	appts, err := h.repo.ListAppointments(context.Background(), "Citas - Mauricio", testNow, testNow.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, testTomorrow.At(schedule.NewClock(16, 0), testLoc), appts[0].Start)
	assert.NotEqual(t, original.Ref.EventID, appts[0].ID)
}

func TestMachineCancelFlow(t *testing.T) {
	h := newHarness(t)
	id := "telegram:99"
	h.book(t, 2, testTomorrow, schedule.NewClock(15, 0), "Pedro Gomez", "3105556677")

	assert.Contains(t, h.send(t, id, "cancelar"), "Para cancelar tu cita")
	assert.Contains(t, h.send(t, id, "3105556677"), "Cita a cancelar")
	s := h.session(t, id)
	assert.Equal(t, StateConfirming, s.State)
	assert.Equal(t, FlowCancel, s.Flow)

	assert.Contains(t, h.send(t, id, "quizas"), "SÍ para confirmar la cancelación")
	assert.Contains(t, h.send(t, id, "si"), "Cita cancelada exitosamente")
	assert.Equal(t, 0, h.repo.Len())
}

func TestMachineCancelTooLate(t *testing.T) {
	h := newHarness(t)
	id := "telegram:100"
	staff, _ := h.cat.StaffByID(1)
	start := testNow.Add(30 * time.Minute)
	_, err := h.repo.CreateAppointment(context.Background(), staff.CalendarKey, calendar.NewAppointment{
		Summary:     appointments.Summary(catalog.Service{Name: "Corte de cabello"}, "Luis Diaz"),
		Description: appointments.EncodeDescription(appointments.Details{ClientName: "Luis Diaz", ClientPhone: "3201112233"}),
		Start:       start,
		End:         start.Add(30 * time.Minute),
	})
	require.NoError(t, err)

	h.send(t, id, "cancelar")
	assert.Contains(t, h.send(t, id, "Luis Diaz"), "No puedes cancelar esta cita")
	assert.Equal(t, 1, h.repo.Len())
}

func TestMachineSearchNotFoundKeepsSearching(t *testing.T) {
	h := newHarness(t)
	id := "webchat:nf"
	h.send(t, id, "reagendar")
	assert.Contains(t, h.send(t, id, "Nadie Existe"), "No encontré ninguna cita")
	assert.Equal(t, StateRescheduling, h.session(t, id).State)
}

func TestMachineGreetingResetsSession(t *testing.T) {
	h := newHarness(t)
	id := "webchat:reset"
	date := testTomorrow
	h.seed(t, Session{ID: id, State: StateSelectingTime, StaffID: 1, ServiceID: 1, Date: &date})

	assert.Contains(t, h.send(t, id, "Hola!"), "Bienvenido")
	s := h.session(t, id)
	assert.Equal(t, StateMenu, s.State)
	assert.Zero(t, s.StaffID)
	assert.Nil(t, s.Date)
}

func TestMachineGreetingWithRequestStillResets(t *testing.T) {
	h := newHarness(t)
	id := "webchat:reset-request"
	date := testTomorrow
	h.seed(t, Session{ID: id, State: StateCollectingName, Flow: FlowBook, StaffID: 2, ServiceID: 1, Date: &date, Class: schedule.ClassGeneral})

	assert.Contains(t, h.send(t, id, "hola, quiero cita para mañana"), "Bienvenido")
	s := h.session(t, id)
	assert.Equal(t, StateMenu, s.State)
	assert.Zero(t, s.StaffID)
	assert.Nil(t, s.Date)
}

func TestMachineSurchargeDeclinedWithoutDateAsksForDate(t *testing.T) {
	h := newHarness(t)
	id := "webchat:extra-nodate"
	h.seed(t, Session{ID: id, State: StateSelectingDate, Flow: FlowBook, StaffID: 2, ServiceID: 1})

	assert.Contains(t, h.send(t, id, "a las 8 pm"), "ADVERTENCIA")
	s := h.session(t, id)
	assert.Equal(t, StateSelectingTime, s.State)
	assert.Nil(t, s.Date)
	assert.Equal(t, schedule.ClassSurcharge, s.Class)

	assert.Contains(t, h.send(t, id, "no"), msgAskDate)
	s = h.session(t, id)
	assert.Equal(t, StateSelectingDate, s.State)
	assert.Nil(t, s.Time)
	assert.Equal(t, schedule.ClassGeneral, s.Class)
	assert.False(t, s.SurchargeAcknowledged)

	assert.Contains(t, h.send(t, id, "mañana"), "20/10/2026")
	s = h.session(t, id)
	assert.Equal(t, StateSelectingTime, s.State)
	require.NotEmpty(t, s.OfferedSlots)
}

func TestMachineSurchargeDeclinedFromMenuAsksForStaff(t *testing.T) {
	h := newHarness(t)
	id := "webchat:extra-menu"

	assert.Contains(t, h.send(t, id, "quiero un corte a las 8 pm"), "ADVERTENCIA")
	assert.Equal(t, StateSelectingTime, h.session(t, id).State)

	assert.Contains(t, h.send(t, id, "no"), "Selecciona tu barbero")
	s := h.session(t, id)
	assert.Equal(t, StateSelectingStaff, s.State)
	assert.Equal(t, 1, s.ServiceID)
	assert.Nil(t, s.Time)
}

func TestMachineTimeFirstFromMenuFollowsMissingFields(t *testing.T) {
	h := newHarness(t)
	id := "webchat:time-first"

	reply := h.send(t, id, "quiero un corte a las 3")
	assert.Contains(t, reply, "Selecciona tu barbero")
	assert.NotContains(t, reply, msgAskDate)
	s := h.session(t, id)
	assert.Equal(t, StateSelectingStaff, s.State)
	assert.Equal(t, 1, s.ServiceID)
	require.NotNil(t, s.Time)
	assert.Equal(t, schedule.NewClock(15, 0), *s.Time)

	assert.Contains(t, h.send(t, id, "2"), msgAskDate)
	assert.Equal(t, StateSelectingDate, h.session(t, id).State)

	h.send(t, id, "mañana")
	s = h.session(t, id)
	require.NotNil(t, s.Date)
	assert.Equal(t, testTomorrow, *s.Date)
	assert.Equal(t, schedule.NewClock(15, 0), *s.Time)
	assert.Equal(t, 2, s.StaffID)
	assert.Equal(t, StateCollectingName, s.State)
}

func TestMachinePhoneChoiceUsesChatNumber(t *testing.T) {
	h := newHarness(t)
	id := "whatsapp:573001234567"
	date := testTomorrow
	ten := schedule.NewClock(10, 0)
	h.seed(t, Session{ID: id, State: StateCollectingPhone, StaffID: 1, ServiceID: 1, Date: &date, Time: &ten, Class: schedule.ClassGeneral, ClientName: "Ana"})

	h.send(t, id, "1")
	s := h.session(t, id)
	assert.Equal(t, "3001234567", s.ClientPhone)
	assert.Equal(t, StateConfirming, s.State)
}

func TestMachineRejectsInvalidPhone(t *testing.T) {
	h := newHarness(t)
	id := "webchat:phone"
	h.seed(t, Session{ID: id, State: StateCollectingPhone, StaffID: 1, ServiceID: 1, ClientName: "Ana"})

	assert.Contains(t, h.send(t, id, "1234567"), "10 dígitos")
	assert.Empty(t, h.session(t, id).ClientPhone)
}

func TestMachineClosedDayRejected(t *testing.T) {
	h := newHarness(t)
	id := "webchat:sunday"
	h.seed(t, Session{ID: id, State: StateSelectingDate, StaffID: 1, ServiceID: 1, Class: schedule.ClassGeneral})

	assert.Contains(t, h.send(t, id, "el domingo"), "domingos no atendemos")
	s := h.session(t, id)
	assert.Nil(t, s.Date)
	assert.Equal(t, StateSelectingDate, s.State)
}

func TestMachineDeclineEndsSession(t *testing.T) {
	h := newHarness(t)
	id := "webchat:decline"
	date := testTomorrow
	ten := schedule.NewClock(10, 0)
	h.seed(t, Session{ID: id, State: StateConfirming, StaffID: 1, ServiceID: 1, Date: &date, Time: &ten, ClientName: "Ana", ClientPhone: "3001234567"})

	assert.Contains(t, h.send(t, id, "no"), "Cita cancelada")
	_, err := h.store.Get(context.Background(), id)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Equal(t, 0, h.repo.Len())
}

func TestMachineIgnoresBlankText(t *testing.T) {
	h := newHarness(t)
	replies, err := h.machine.Handle(context.Background(), "webchat:x", "   ")
	require.NoError(t, err)
	assert.Nil(t, replies)

	_, err = h.machine.Handle(context.Background(), "", "hola")
	assert.Error(t, err)
}

func TestChatPhone(t *testing.T) {
	assert.Equal(t, "3001234567", chatPhone("whatsapp:573001234567"))
	assert.Equal(t, "3001234567", chatPhone("whatsapp:573001234567@s.whatsapp.net"))
	assert.Equal(t, "14155550100", chatPhone("whatsapp:14155550100"))
	assert.Empty(t, chatPhone("telegram:573001234567"))
	assert.Empty(t, chatPhone("whatsapp:abc"))
}

func TestIsGreeting(t *testing.T) {
	for _, in := range []string{"hola", "Hola!", "buenas tardes", "buenos días amigo", "menu", "oe", "hola quiero un corte", "Hola, quiero cita para mañana"} {
		assert.True(t, isGreeting(catalog.Fold(in)), in)
	}
	for _, in := range []string{"1", "mañana", "holaaa", "quiero un corte", "Noe Hinestroza"} {
		assert.False(t, isGreeting(catalog.Fold(in)), in)
	}
}

type scriptedExtractor struct {
	replies map[string]*nlu.Extraction
	calls   []string
}

func (e *scriptedExtractor) Extract(ctx context.Context, text string, nctx nlu.Context) (*nlu.Extraction, error) {
	e.calls = append(e.calls, text)
	if x, ok := e.replies[text]; ok {
		return x, nil
	}
	return &nlu.Extraction{Intent: nlu.IntentOther, Confidence: 0.2}, nil
}

func TestMachineRulesAnswerBeforeNLU(t *testing.T) {
	x := &scriptedExtractor{replies: map[string]*nlu.Extraction{
		"lo de siempre": {Intent: nlu.IntentBookAppointment, Service: "Corte con barba", Confidence: 0.9},
	}}
	h := newHarness(t, WithExtractor(x))
	id := "webchat:tiers"
	h.seed(t, Session{ID: id, State: StateSelectingStaff, Flow: FlowBook})

	h.send(t, id, "2")
	assert.Empty(t, x.calls)
	assert.Equal(t, StateSelectingService, h.session(t, id).State)

	h.send(t, id, "lo de siempre")
	assert.Equal(t, []string{"lo de siempre"}, x.calls)
	s := h.session(t, id)
	assert.Equal(t, 2, s.ServiceID)
	assert.Equal(t, StateSelectingScheduleClass, s.State)
}

func TestMachineMenuBookingIntentPrefillsFields(t *testing.T) {
	x := &scriptedExtractor{replies: map[string]*nlu.Extraction{
		"me gustaria ir donde el de siempre": {
			Intent: nlu.IntentBookAppointment, Staff: "Mauricio", Date: "20/10/2026", Confidence: 0.95,
		},
		"me gustaria pasar por la barberia": {Intent: nlu.IntentBookAppointment, Confidence: 0.9},
	}}
	h := newHarness(t, WithExtractor(x))

	id := "webchat:nlu-menu"
	h.send(t, id, "me gustaria ir donde el de siempre")
	s := h.session(t, id)
	assert.Equal(t, FlowBook, s.Flow)
	assert.Equal(t, 1, s.StaffID)
	require.NotNil(t, s.Date)
	assert.Equal(t, testTomorrow, *s.Date)
	assert.Equal(t, StateSelectingService, s.State)

	other := "webchat:nlu-menu-bare"
	assert.Contains(t, h.send(t, other, "me gustaria pasar por la barberia"), "Selecciona tu barbero")
	assert.Equal(t, StateSelectingStaff, h.session(t, other).State)
}

func TestMachinePartialExtractionKeepsKnownFields(t *testing.T) {
	x := &scriptedExtractor{replies: map[string]*nlu.Extraction{
		"lo de siempre": {Intent: nlu.IntentBookAppointment, Service: "Corte con barba", Confidence: 0.9},
	}}
	h := newHarness(t, WithExtractor(x))
	id := "webchat:partial"
	date := testTomorrow
	h.seed(t, Session{ID: id, State: StateSelectingService, Flow: FlowBook, StaffID: 2, Date: &date, Class: schedule.ClassGeneral})

	h.send(t, id, "lo de siempre")
	s := h.session(t, id)
	assert.Equal(t, 2, s.StaffID)
	assert.Equal(t, 2, s.ServiceID)
	require.NotNil(t, s.Date)
	assert.Equal(t, testTomorrow, *s.Date)
	assert.Equal(t, schedule.ClassGeneral, s.Class)
	assert.Equal(t, StateSelectingTime, s.State)
	assert.NotEmpty(t, s.OfferedSlots)
}

func TestMachineLowConfidenceFallsThroughToReprompt(t *testing.T) {
	x := &scriptedExtractor{replies: map[string]*nlu.Extraction{
		"el mas rapido": {Intent: nlu.IntentBookAppointment, Staff: "Mauricio", Confidence: 0.5},
	}}
	h := newHarness(t, WithExtractor(x))
	id := "webchat:low"
	h.seed(t, Session{ID: id, State: StateSelectingStaff, Flow: FlowBook})

	reply := h.send(t, id, "el mas rapido")
	assert.Contains(t, reply, "Opción no válida")
	assert.Contains(t, reply, "Selecciona tu barbero")
	assert.Equal(t, []string{"el mas rapido"}, x.calls)
	s := h.session(t, id)
	assert.Zero(t, s.StaffID)
	assert.Equal(t, StateSelectingStaff, s.State)
}

func TestMachineAmbiguousDateWaitsForRules(t *testing.T) {
	x := &scriptedExtractor{replies: map[string]*nlu.Extraction{
		"cuando tengan espacio": {Intent: nlu.IntentBookAppointment, AmbiguousDate: true, Confidence: 0.9},
	}}
	h := newHarness(t, WithExtractor(x))
	id := "webchat:ambiguous"
	h.seed(t, Session{ID: id, State: StateSelectingDate, Flow: FlowBook, StaffID: 1, ServiceID: 1, Class: schedule.ClassGeneral})

	assert.Contains(t, h.send(t, id, "cuando tengan espacio"), "dime específicamente")
	assert.Equal(t, StateAmbiguousDate, h.session(t, id).State)

	assert.Contains(t, h.send(t, id, "no se, pronto"), "dime específicamente")
	assert.Equal(t, StateAmbiguousDate, h.session(t, id).State)
	assert.Len(t, x.calls, 1, "ambiguous dates are read by rules only")

	h.send(t, id, "mañana")
	s := h.session(t, id)
	require.NotNil(t, s.Date)
	assert.Equal(t, testTomorrow, *s.Date)
	assert.Equal(t, StateSelectingTime, s.State)
}
