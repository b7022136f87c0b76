package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wolfman30/barber-booking-bot/internal/appointments"
	"github.com/wolfman30/barber-booking-bot/internal/catalog"
	"github.com/wolfman30/barber-booking-bot/internal/nlu"
	"github.com/wolfman30/barber-booking-bot/internal/resolver"
	"github.com/wolfman30/barber-booking-bot/internal/schedule"
)

var (
	greetingPhrases = []string{
		"hola", "buenos dias", "buenas tardes", "buenas noches", "buenas", "hey", "hi", "hello",
		"saludos", "inicio", "menu", "empezar", "comenzar", "nuevo", "otra vez", "oe", "oye",
	}

	bookKeywords = []string{
		"agendar", "reservar", "cita", "turno", "agenda", "separar", "apartar",
	}
	// wantKeywords signal a booking only when nothing more specific matched.
	wantKeywords = []string{"quiero", "necesito", "corte"}
	infoKeywords = []string{
		"servicios", "precios", "precio", "cuanto cuesta", "cuanto vale", "valor", "tarifas", "informacion", "info",
	}
	rescheduleKeywords = []string{
		"reagendar", "reprogramar", "cambiar cita", "cambiar mi cita", "cambiar la cita",
		"modificar cita", "modificar mi cita", "modificar la cita", "cambiar fecha", "cambiar la fecha",
		"cambiar hora", "cambiar la hora", "mover cita", "mover mi cita", "mover la cita",
	}
	cancelKeywords = []string{
		"cancelar", "cancela", "anular", "anula", "ya no puedo ir",
	}

	yesWords = map[string]bool{
		"si": true, "s": true, "yes": true, "confirmo": true, "confirmar": true, "dale": true,
		"ok": true, "okay": true, "claro": true, "correcto": true, "listo": true, "perfecto": true,
	}
	noWords = map[string]bool{
		"no": true, "n": true, "nop": true, "nel": true, "negativo": true,
	}
)

func words(folded string) []string {
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// isGreeting reports whether any greeting phrase appears as whole words.
// A match anywhere restarts the dialogue, even mid-flow.
func isGreeting(folded string) bool {
	return containsAny(folded, greetingPhrases)
}

func containsAny(folded string, phrases []string) bool {
	for _, p := range phrases {
		if catalog.ContainsPhrase(folded, p) {
			return true
		}
	}
	return false
}

func isYes(folded string) bool {
	ws := words(folded)
	return len(ws) > 0 && yesWords[ws[0]]
}

func isNo(folded string) bool {
	ws := words(folded)
	return len(ws) > 0 && noWords[ws[0]]
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// menuNumber parses a short numeric menu choice.
func menuNumber(folded string) (int, bool) {
	s := strings.TrimRight(strings.TrimSpace(folded), ".)")
	if !isNumber(s) || len(s) > 3 {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// understood renders the echo for fields picked out of a free-form message.
func (m *Machine) understood(p Patch) string {
	if !hasBookingFields(p) {
		return ""
	}
	var (
		staff *catalog.StaffMember
		svc   *catalog.Service
	)
	if p.StaffID != nil {
		if st, ok := m.catalog().StaffByID(*p.StaffID); ok {
			staff = &st
		}
	}
	if p.ServiceID != nil {
		if sv, ok := m.catalog().ServiceByID(*p.ServiceID); ok {
			svc = &sv
		}
	}
	return m.copy.Understood(staff, svc, p.Date, p.Time)
}

func (m *Machine) startSearch(flow Flow) (Reply, Patch) {
	state, prompt := StateRescheduling, msgReschedulePrompt
	if flow == FlowCancel {
		state, prompt = StateCancelling, msgCancelPrompt
	}
	return say(prompt), Patch{
		State: ptr(state),
		Flow:  ptr(flow),
		Clear: []Field{FieldCandidates, FieldTarget},
	}
}

// sideIntent answers requests that do not fill the current field: price
// questions, the staff list, and switching to reschedule or cancel.
func (m *Machine) sideIntent(t Turn, x *nlu.Extraction, reprompt string) (Reply, Patch, bool) {
	if x == nil {
		return Reply{}, Patch{}, false
	}
	switch x.Intent {
	case nlu.IntentAskServices, nlu.IntentAskPrices:
		return say(m.copy.ServicesAndPrices(), reprompt), Patch{}, true
	case nlu.IntentAskStaff:
		if t.Session.State == StateSelectingStaff {
			return say(m.copy.StaffMenu()), Patch{}, true
		}
		return say(fmt.Sprintf("💈 Nuestros barberos: %s", strings.Join(m.catalog().StaffNames(), ", ")), reprompt), Patch{}, true
	case nlu.IntentReschedule:
		reply, p := m.startSearch(FlowReschedule)
		return reply, p, true
	case nlu.IntentCancel:
		reply, p := m.startSearch(FlowCancel)
		return reply, p, true
	}
	return Reply{}, Patch{}, false
}

func (m *Machine) handleMenu(ctx context.Context, t Turn) (Reply, Patch) {
	f := t.Folded
	book := Patch{Flow: ptr(FlowBook)}
	switch {
	case f == "1":
		return say(m.copy.StaffMenu()), book.Merge(goTo(StateSelectingStaff))
	case f == "2":
		return say(m.copy.ServicesAndPrices()), Patch{}
	case containsAny(f, rescheduleKeywords):
		return m.startSearch(FlowReschedule)
	case containsAny(f, cancelKeywords):
		return m.startSearch(FlowCancel)
	}

	wantsBooking := containsAny(f, bookKeywords)
	if containsAny(f, infoKeywords) && !wantsBooking {
		return say(m.copy.ServicesAndPrices()), Patch{}
	}
	fields := m.readFields(t)
	if hasBookingFields(fields) {
		p := book.Merge(fields)
		return m.proceed(ctx, t, p, m.understood(fields))
	}
	if wantsBooking || containsAny(f, wantKeywords) {
		return say(m.copy.StaffMenu()), book.Merge(goTo(StateSelectingStaff))
	}

	x := m.extract(ctx, t, "main menu")
	if reply, p, ok := m.sideIntent(t, x, ""); ok {
		return reply, p
	}
	if x != nil {
		switch x.Intent {
		case nlu.IntentGreeting:
			return say(m.greeting()), Patch{}
		case nlu.IntentBookAppointment:
			fields := m.fromExtraction(x)
			p := book.Merge(fields)
			if !hasBookingFields(fields) {
				return say(m.copy.StaffMenu()), p.Merge(goTo(StateSelectingStaff))
			}
			return m.proceed(ctx, t, p, m.understood(fields))
		}
	}
	return say(msgInvalidMenuOption), Patch{}
}

func (m *Machine) handleStaff(ctx context.Context, t Turn) (Reply, Patch) {
	if st, ok := m.catalog().MatchStaff(t.Text); ok {
		p := m.readFields(t)
		p.StaffID = ptr(st.ID)
		return m.proceed(ctx, t, p, fmt.Sprintf("✅ Barbero seleccionado: %s %s", st.Emoji, st.Name))
	}
	x := m.extract(ctx, t, "choose a barber")
	if x != nil {
		if p := m.fromExtraction(x); p.StaffID != nil {
			return m.proceed(ctx, t, p, m.understood(p))
		}
	}
	if reply, p, ok := m.sideIntent(t, x, m.copy.StaffMenu()); ok {
		return reply, p
	}
	return say("❌ Opción no válida.", m.copy.StaffMenu()), Patch{}
}

func (m *Machine) handleService(ctx context.Context, t Turn) (Reply, Patch) {
	if svc, ok := m.catalog().MatchService(t.Text); ok {
		p := m.readFields(t)
		p.ServiceID = ptr(svc.ID)
		if p.StaffID != nil && t.Session.StaffID != 0 {
			p.StaffID = nil
		}
		return m.proceed(ctx, t, p, fmt.Sprintf("✅ Servicio seleccionado: %s %s", svc.Emoji, svc.Name))
	}
	x := m.extract(ctx, t, "choose a service")
	if x != nil {
		if p := m.fromExtraction(x); p.ServiceID != nil {
			return m.proceed(ctx, t, p, m.understood(p))
		}
	}
	if reply, p, ok := m.sideIntent(t, x, m.copy.ServiceMenu()); ok {
		return reply, p
	}
	return say("❌ Opción no válida.", m.copy.ServiceMenu()), Patch{}
}

func (m *Machine) handleScheduleClass(ctx context.Context, t Turn) (Reply, Patch) {
	class, ok := schedule.ParseClass(t.Folded)
	if !ok {
		if fields := m.readFields(t); fields.Date != nil || fields.Time != nil {
			return m.proceed(ctx, t, fields, "")
		}
		x := m.extract(ctx, t, "general or extra schedule")
		if x != nil {
			p := m.fromExtraction(x)
			if p.Class != nil || p.Date != nil || p.Time != nil {
				return m.proceed(ctx, t, p, "")
			}
		}
		if reply, p, ok := m.sideIntent(t, x, m.copy.ScheduleClassMenu()); ok {
			return reply, p
		}
		return say(msgInvalidClass), Patch{}
	}

	prefix := "✅ Horario general seleccionado."
	if class == schedule.ClassSurcharge {
		prefix = "🌙 Horario extra seleccionado (precio doble)."
	}
	p := Patch{Class: ptr(class), SurchargeAcknowledged: ptr(class == schedule.ClassSurcharge)}
	return m.proceed(ctx, t, p, prefix)
}

func (m *Machine) handleName(ctx context.Context, t Turn) (Reply, Patch) {
	name := strings.Join(strings.Fields(t.Text), " ")
	if utf8.RuneCountInString(name) < 2 || isNumber(name) {
		return say(msgNameTooShort), Patch{}
	}
	return m.proceed(ctx, t, Patch{ClientName: ptr(name)}, fmt.Sprintf("✅ Gracias, %s.", name))
}

func (m *Machine) handlePhone(ctx context.Context, t Turn) (Reply, Patch) {
	current := chatPhone(t.SessionID)
	f := strings.TrimSpace(t.Folded)

	var phone string
	switch {
	case f == "1" && current != "":
		phone = current
	case f == "2" && current != "":
		return say(msgTypePhone), Patch{}
	default:
		if digits := localPhone(digitsOnly(t.Text)); len(digits) >= 7 {
			if len(digits) != 10 || digits[0] != '3' {
				return say(msgInvalidPhone), Patch{}
			}
			phone = digits
		}
	}

	if phone == "" && current != "" {
		if isYes(f) {
			phone = current
		} else if x := m.extract(ctx, t, "use the current phone or type another"); x != nil && x.UseCurrentPhone != nil {
			if !*x.UseCurrentPhone {
				return say(msgTypePhone), Patch{}
			}
			phone = current
		}
	}
	if phone == "" {
		if current != "" {
			return say(msgPhoneChoice), Patch{}
		}
		return say(msgInvalidPhone), Patch{}
	}
	return m.proceed(ctx, t, Patch{ClientPhone: ptr(phone)}, fmt.Sprintf("✅ Teléfono registrado: %s", phone))
}

func (m *Machine) handleDate(ctx context.Context, t Turn) (Reply, Patch) {
	res := m.resolver.Resolve(ctx, t.Text, t.Today, m.nluContext(t, "date for the appointment"))
	switch {
	case res.Date == nil && res.Ambiguous:
		return say(msgAmbiguousDate), goTo(StateAmbiguousDate)
	case res.Date == nil && res.Time != nil:
		return m.chooseTime(ctx, t, Patch{}, *res.Time, "")
	case res.Date == nil:
		if reply, p, ok := m.sideIntent(t, res.Extraction, msgAskDate); ok {
			return reply, p
		}
		return say(msgDateNotUnderstood), Patch{}
	}
	return m.proceed(ctx, t, Patch{Date: res.Date, Time: res.Time}, "")
}

// handleAmbiguousDate accepts only what the rules can read; the model
// already failed on this utterance.
func (m *Machine) handleAmbiguousDate(ctx context.Context, t Turn) (Reply, Patch) {
	res := resolver.ParseDateTime(t.Text, t.Today)
	if res.Date == nil {
		return say(msgAmbiguousDate), Patch{}
	}
	p := Patch{Date: res.Date, Time: res.Time}
	next := Apply(t.Session, p)
	if nextState(next) == StateSelectingDate {
		p = p.Merge(goTo(StateSelectingDate))
	}
	return m.proceed(ctx, t, p, "")
}

func (m *Machine) handleTime(ctx context.Context, t Turn) (Reply, Patch) {
	s := t.Session
	f := t.Folded

	if s.Time != nil && s.Class == schedule.ClassSurcharge && !s.SurchargeAcknowledged {
		switch {
		case isYes(f):
			p := Patch{SurchargeAcknowledged: ptr(true)}
			reply, ap := m.advance(ctx, t, Apply(s, p), "✅ Horario extra confirmado.")
			return reply, p.Merge(ap)
		case isNo(f):
			p := Patch{Clear: []Field{FieldTime, FieldClass}}
			if s.Date == nil {
				// Nothing to list yet; stay on general hours and ask for the date.
				p = Patch{Clear: []Field{FieldTime}, Class: ptr(schedule.ClassGeneral), SurchargeAcknowledged: ptr(false)}
			}
			reply, ap := m.offerSlots(ctx, t, Apply(s, p), "")
			return reply, p.Merge(ap)
		}
	}

	if n, ok := menuNumber(f); ok {
		if n < 1 || n > len(s.OfferedSlots) {
			return say(msgInvalidTimeOption), Patch{}
		}
		return m.chooseTime(ctx, t, Patch{}, s.OfferedSlots[n-1], "")
	}

	res := m.resolver.Resolve(ctx, t.Text, t.Today, m.nluContext(t, "start time for the appointment"))
	switch {
	case res.Date != nil:
		return m.proceed(ctx, t, Patch{Date: res.Date, Time: res.Time}, "")
	case res.Time != nil:
		reply, p := m.chooseTime(ctx, t, Patch{}, *res.Time, "")
		if s.Date == nil && p.Time != nil {
			// Keep waiting here; the date that follows is validated
			// together with this time.
			p = p.Merge(goTo(StateSelectingTime))
		}
		return reply, p
	}
	if reply, p, ok := m.sideIntent(t, res.Extraction, ""); ok {
		return reply, p
	}
	return say(msgInvalidTimeOption), Patch{}
}

func (m *Machine) handleConfirm(ctx context.Context, t Turn) (Reply, Patch) {
	s := t.Session
	if s.Flow == FlowCancel {
		return m.confirmCancel(ctx, t)
	}
	switch {
	case isNo(t.Folded):
		return say(msgBookingDeclined), Patch{End: true}
	case !isYes(t.Folded):
		return say(msgConfirmYesNo), Patch{}
	}
	if len(MissingFields(s)) > 0 {
		return m.advance(ctx, t, s, "")
	}

	staff, _ := m.staffOf(s)
	svc, _ := m.serviceOf(s)
	booking := appointments.Booking{
		Staff:       staff,
		Service:     svc,
		Date:        *s.Date,
		Time:        *s.Time,
		Class:       s.Class,
		ClientName:  s.ClientName,
		ClientPhone: s.ClientPhone,
	}
	if s.Flow == FlowReschedule {
		booking.Replaces = s.TargetRef()
	}

	conf, err := m.appts.Confirm(ctx, booking, t.Now)
	if err != nil {
		return m.confirmFailed(ctx, t, err)
	}
	msgs := []string{m.copy.Confirmed(s, staff, svc, conf.Class, conf.Price, conf.Rescheduled)}
	if conf.ReplaceErr != nil {
		msgs = append(msgs, "⚠️ No pude eliminar tu cita anterior. Por favor, avísanos para cancelarla manualmente.")
	}
	return say(msgs...), Patch{End: true}
}

// confirmFailed maps a rejected booking onto the dialogue. A slot that was
// taken or became invalid goes back to time selection with a fresh list.
func (m *Machine) confirmFailed(ctx context.Context, t Turn, err error) (Reply, Patch) {
	s := t.Session
	switch appointments.KindOf(err) {
	case appointments.KindAuthExpired:
		return say(msgTokenExpired), Patch{}
	case appointments.KindConflict, appointments.KindValidation:
	default:
		m.logger.Error("booking failed", "session_id", t.SessionID, "error", err)
		return say(msgCreateFailed), Patch{}
	}

	p := Patch{Clear: []Field{FieldTime, FieldClass, FieldOffered}}
	probe := Apply(s, p)
	var list schedule.SlotList
	var aerr *appointments.Error
	if errors.As(err, &aerr) && (len(aerr.Slots.Slots) > 0 || aerr.Slots.Reason != schedule.ReasonNone) {
		list = aerr.Slots
	} else if fresh, ferr := m.slots(ctx, t, probe); ferr == nil {
		list = fresh
	}
	if list.Empty() {
		p = p.Merge(Patch{State: ptr(StateSelectingDate), Clear: []Field{FieldDate}})
		return say(m.copy.NoLongerAvailable(*s.Time, nil), m.copy.NoSlots(list)), p
	}
	p = p.Merge(Patch{State: ptr(StateSelectingTime), OfferedSlots: list.Slots})
	return say(m.copy.NoLongerAvailable(*s.Time, list.Slots)), p
}

func (m *Machine) confirmCancel(ctx context.Context, t Turn) (Reply, Patch) {
	s := t.Session
	switch {
	case isNo(t.Folded):
		return say(msgCancelKept), Patch{End: true}
	case !isYes(t.Folded):
		return say(msgCancelYesNo), Patch{}
	}
	if s.Target == nil {
		return say(msgCancelGone), Patch{End: true}
	}
	target := *s.Target
	loc := m.engine().Location

	err := m.appts.Cancel(ctx, target.Ref, target.Start, t.Now)
	if err == nil {
		return say(m.copy.Cancelled(target, loc)), Patch{End: true}
	}
	var aerr *appointments.Error
	switch appointments.KindOf(err) {
	case appointments.KindTooLate:
		minutes := 0
		if errors.As(err, &aerr) {
			minutes = aerr.MinutesUntil
		}
		return say(m.copy.TooLate(FlowCancel, target, minutes, m.engine().LeadHours, loc)), Patch{End: true}
	case appointments.KindNotFound:
		return say(msgCancelGone), Patch{End: true}
	case appointments.KindAuthExpired:
		return say(msgTokenExpired), Patch{}
	}
	m.logger.Error("cancel failed", "session_id", t.SessionID, "error", err)
	return say(msgCancelFailed), Patch{}
}

func candidateOf(match appointments.Match) Candidate {
	client := match.Details.ClientName
	if client == "" {
		client = appointments.ClientFromSummary(match.Appointment.Summary)
	}
	return Candidate{
		Ref:         match.Appointment.Ref(),
		Summary:     match.Appointment.Summary,
		Start:       match.Appointment.Start,
		StaffID:     match.Staff.ID,
		ServiceID:   match.Service.ID,
		ClientName:  client,
		ClientPhone: match.Details.ClientPhone,
	}
}

// handleSearch serves both RESCHEDULING and CANCELLING: a number picks from
// the listed candidates, anything else is a name or phone to search for.
func (m *Machine) handleSearch(ctx context.Context, t Turn) (Reply, Patch) {
	s := t.Session
	flow := s.Flow
	if flow != FlowReschedule && flow != FlowCancel {
		flow = FlowReschedule
		if s.State == StateCancelling {
			flow = FlowCancel
		}
	}

	if n, ok := menuNumber(t.Folded); ok && len(s.Candidates) > 0 {
		if n < 1 || n > len(s.Candidates) {
			return say(m.copy.InvalidCandidate(len(s.Candidates))), Patch{}
		}
		return m.selectCandidate(flow, s.Candidates[n-1])
	}

	matches, err := m.appts.FindByClient(ctx, t.Text, t.Now)
	if err != nil {
		switch appointments.KindOf(err) {
		case appointments.KindAuthExpired:
			return say(msgTokenExpired), Patch{}
		case appointments.KindValidation:
			return say(msgSearchPrompt), Patch{}
		}
		m.logger.Error("appointment search failed", "session_id", t.SessionID, "error", err)
		return say(msgSearchFailed), Patch{}
	}
	if len(matches) == 0 {
		return say(m.copy.NotFound(t.Text)), Patch{}
	}

	var open []Candidate
	for _, match := range matches {
		if match.Modifiable {
			open = append(open, candidateOf(match))
		}
	}
	loc := m.engine().Location
	switch len(open) {
	case 0:
		if len(matches) == 1 {
			return say(m.copy.TooLate(flow, candidateOf(matches[0]), matches[0].MinutesUntil, m.engine().LeadHours, loc)), Patch{End: true}
		}
		return say(m.copy.NoneModifiable(flow, m.engine().LeadHours)), Patch{End: true}
	case 1:
		return m.selectCandidate(flow, open[0])
	}
	return say(m.copy.CandidateList(flow, open, loc)), Patch{Flow: ptr(flow), Candidates: open}
}

func (m *Machine) selectCandidate(flow Flow, cand Candidate) (Reply, Patch) {
	loc := m.engine().Location
	if flow == FlowCancel {
		return say(m.copy.AppointmentCard("Cita a cancelar", cand, loc), "¿Confirmas que quieres cancelar esta cita? Responde SÍ o NO."), Patch{
			State:  ptr(StateConfirming),
			Flow:   ptr(FlowCancel),
			Target: &cand,
			Clear:  []Field{FieldCandidates},
		}
	}
	p := Patch{
		State:  ptr(StateSelectingDate),
		Flow:   ptr(FlowReschedule),
		Target: &cand,
		Clear:  []Field{FieldCandidates, FieldDate, FieldTime, FieldClass, FieldOffered},
	}
	if cand.StaffID > 0 {
		p.StaffID = ptr(cand.StaffID)
	}
	if cand.ServiceID > 0 {
		p.ServiceID = ptr(cand.ServiceID)
	}
	if cand.ClientName != "" {
		p.ClientName = ptr(cand.ClientName)
	}
	if cand.ClientPhone != "" {
		p.ClientPhone = ptr(cand.ClientPhone)
	}
	return say(m.copy.AppointmentCard("Cita encontrada", cand, loc), msgAskNewDate), p
}
