// Package conversation runs the booking dialogue: one state machine turn per
// inbound chat message, persisted through a session store and fed by a
// queue worker.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/barber-booking-bot/internal/appointments"
	"github.com/wolfman30/barber-booking-bot/internal/catalog"
	"github.com/wolfman30/barber-booking-bot/internal/nlu"
	"github.com/wolfman30/barber-booking-bot/internal/resolver"
	"github.com/wolfman30/barber-booking-bot/internal/schedule"
	"github.com/wolfman30/barber-booking-bot/internal/session"
	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

var errNoDate = errors.New("conversation: no date chosen")

// Recorder receives per-turn latency.
type Recorder interface {
	ObserveHandler(state string, d time.Duration)
}

// Turn is everything a state handler may read.
type Turn struct {
	SessionID string
	Text      string
	Folded    string
	Session   Session
	Now       time.Time
	Today     schedule.Date
}

// Reply is the ordered outbound text for one turn.
type Reply struct {
	Messages []string
}

func say(msgs ...string) Reply {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m) != "" {
			out = append(out, m)
		}
	}
	return Reply{Messages: out}
}

type handlerFunc func(ctx context.Context, t Turn) (Reply, Patch)

// Machine is the conversation state machine. It is safe for concurrent use;
// turns for the same session are serialized.
type Machine struct {
	store     session.Store
	appts     *appointments.Service
	extractor nlu.Extractor
	gate      nlu.Gate
	resolver  *resolver.Resolver
	copy      Copy
	locks     *sessionLocks
	logger    *logging.Logger
	recorder  Recorder
	now       func() time.Time
	handlers  map[State]handlerFunc
}

// MachineOption customizes a Machine.
type MachineOption func(*Machine)

// WithExtractor enables the NLU tier.
func WithExtractor(x nlu.Extractor) MachineOption {
	return func(m *Machine) {
		if x != nil {
			m.extractor = x
		}
	}
}

// WithGate overrides the reliability gate.
func WithGate(g nlu.Gate) MachineOption {
	return func(m *Machine) { m.gate = g }
}

func WithBusinessName(name string) MachineOption {
	return func(m *Machine) {
		if strings.TrimSpace(name) != "" {
			m.copy.BusinessName = name
		}
	}
}

func WithMachineLogger(logger *logging.Logger) MachineOption {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMachineRecorder(r Recorder) MachineOption {
	return func(m *Machine) { m.recorder = r }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMachine wires the dialogue to its session store and lifecycle service.
func NewMachine(store session.Store, appts *appointments.Service, opts ...MachineOption) *Machine {
	if store == nil {
		panic("conversation: session store cannot be nil")
	}
	if appts == nil {
		panic("conversation: appointments service cannot be nil")
	}
	m := &Machine{
		store:     store,
		appts:     appts,
		extractor: nlu.Disabled{},
		gate:      nlu.DefaultGate(),
		copy: Copy{
			BusinessName: "Caballeros",
			Catalog:      appts.Catalog(),
			Hours:        appts.Engine().Hours,
		},
		locks:  newSessionLocks(),
		logger: logging.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.resolver = resolver.New(m.extractor, m.gate, m.logger.Logger)
	m.handlers = map[State]handlerFunc{
		StateMenu:                   m.handleMenu,
		StateSelectingStaff:         m.handleStaff,
		StateSelectingService:       m.handleService,
		StateSelectingScheduleClass: m.handleScheduleClass,
		StateCollectingName:         m.handleName,
		StateCollectingPhone:        m.handlePhone,
		StateSelectingDate:          m.handleDate,
		StateAmbiguousDate:          m.handleAmbiguousDate,
		StateSelectingTime:          m.handleTime,
		StateConfirming:             m.handleConfirm,
		StateRescheduling:           m.handleSearch,
		StateCancelling:             m.handleSearch,
	}
	return m
}

// Handle runs one dialogue turn for sessionID and returns the replies to
// send. Whitespace-only text produces nothing. Errors are limited to session
// persistence; every domain failure becomes a reply.
func (m *Machine) Handle(ctx context.Context, sessionID, text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("conversation: session id required")
	}
	if text == "" {
		return nil, nil
	}

	unlock := m.locks.Lock(sessionID)
	defer unlock()

	started := time.Now()
	log := m.logger.Session(sessionID)
	sess, err := m.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	turn := Turn{
		SessionID: sessionID,
		Text:      text,
		Folded:    catalog.Fold(text),
		Session:   sess,
		Now:       now,
		Today:     m.appts.Engine().Today(now),
	}

	var (
		reply Reply
		patch Patch
	)
	if isGreeting(turn.Folded) {
		sess = NewSession(sessionID)
		reply = say(m.greeting())
	} else {
		h, ok := m.handlers[sess.State]
		if !ok {
			log.Warn("unknown session state, showing menu", "state", string(sess.State))
			sess = NewSession(sessionID)
			h = m.handleMenu
			turn.Session = sess
		}
		reply, patch = h(ctx, turn)
	}

	next := Apply(sess, patch)
	next.UpdatedAt = now
	if patch.End {
		if err := m.store.Delete(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("conversation: delete session: %w", err)
		}
	} else if err := m.save(ctx, next); err != nil {
		return nil, err
	}

	if m.recorder != nil {
		m.recorder.ObserveHandler(string(sess.State), time.Since(started))
	}
	log.Info("turn handled", "state", string(sess.State), "next_state", string(next.State), "ended", patch.End, "replies", len(reply.Messages))
	return reply.Messages, nil
}

// Load returns the stored session, or a fresh one at the menu.
func (m *Machine) Load(ctx context.Context, sessionID string) (Session, error) {
	raw, err := m.store.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return NewSession(sessionID), nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("conversation: load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		m.logger.Warn("discarding unreadable session", "session_id", sessionID, "error", err)
		return NewSession(sessionID), nil
	}
	sess.ID = sessionID
	if !sess.State.Valid() {
		sess.State = StateMenu
	}
	return sess, nil
}

// Reset drops a session so the next message starts at the menu.
func (m *Machine) Reset(ctx context.Context, sessionID string) error {
	unlock := m.locks.Lock(sessionID)
	defer unlock()
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("conversation: reset session: %w", err)
	}
	return nil
}

func (m *Machine) save(ctx context.Context, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("conversation: encode session: %w", err)
	}
	if err := m.store.Put(ctx, s.ID, raw); err != nil {
		return fmt.Errorf("conversation: save session: %w", err)
	}
	return nil
}

func (m *Machine) greeting() string {
	if m.nluEnabled() {
		return m.copy.SmartGreeting()
	}
	return m.copy.MainMenu()
}

func (m *Machine) nluEnabled() bool {
	_, off := m.extractor.(nlu.Disabled)
	return !off
}

func (m *Machine) catalog() *catalog.Catalog { return m.appts.Catalog() }

func (m *Machine) engine() *schedule.Engine { return m.appts.Engine() }

func (m *Machine) staffOf(s Session) (catalog.StaffMember, bool) {
	return m.catalog().StaffByID(s.StaffID)
}

func (m *Machine) serviceOf(s Session) (catalog.Service, bool) {
	return m.catalog().ServiceByID(s.ServiceID)
}

// extract runs the NLU tier and applies the gate. Any failure yields nil so
// the caller falls through to its deterministic re-prompt.
func (m *Machine) extract(ctx context.Context, t Turn, hint string) *nlu.Extraction {
	x, err := m.extractor.Extract(ctx, t.Text, m.nluContext(t, hint))
	if err != nil {
		if !errors.Is(err, nlu.ErrUnavailable) {
			m.logger.Debug("nlu skipped", "session_id", t.SessionID, "error", err)
		}
		return nil
	}
	if err := m.gate.Check(x); err != nil {
		return nil
	}
	return x
}

func (m *Machine) nluContext(t Turn, hint string) nlu.Context {
	s := t.Session
	nctx := nlu.Context{
		State:       string(s.State),
		ClientName:  s.ClientName,
		ClientPhone: s.ClientPhone,
		ChatPhone:   chatPhone(t.SessionID),
		Hint:        hint,
		Now:         t.Now,
	}
	if st, ok := m.staffOf(s); ok {
		nctx.Staff = st.Name
	}
	if svc, ok := m.serviceOf(s); ok {
		nctx.Service = svc.Name
	}
	if s.Date != nil {
		nctx.Date = s.Date.String()
	}
	if s.Time != nil {
		nctx.Time = s.Time.String()
	}
	return nctx
}

// readFields picks staff, service, date and time out of free text with the
// deterministic rules. Bare numbers are menu choices and yield nothing.
func (m *Machine) readFields(t Turn) Patch {
	var p Patch
	if isNumber(t.Folded) {
		return p
	}
	if st, ok := m.catalog().MatchStaff(t.Text); ok {
		p.StaffID = ptr(st.ID)
	}
	if svc, ok := m.catalog().MatchService(t.Text); ok {
		p.ServiceID = ptr(svc.ID)
	}
	res := resolver.ParseDateTime(t.Text, t.Today)
	p.Date = res.Date
	p.Time = res.Time
	return p
}

// fromExtraction converts a gated reading into a patch. Fields the model
// left empty are not touched.
func (m *Machine) fromExtraction(x *nlu.Extraction) Patch {
	var p Patch
	if x == nil {
		return p
	}
	if x.Staff != "" {
		if st, ok := m.catalog().MatchStaff(x.Staff); ok {
			p.StaffID = ptr(st.ID)
		}
	}
	if x.Service != "" {
		if svc, ok := m.catalog().MatchService(x.Service); ok {
			p.ServiceID = ptr(svc.ID)
		}
	}
	res := resolver.FromExtraction(x)
	p.Date = res.Date
	p.Time = res.Time
	if class, ok := schedule.ParseClass(catalog.Fold(x.ScheduleClass)); ok {
		p.Class = ptr(class)
		p.SurchargeAcknowledged = ptr(class == schedule.ClassSurcharge)
	}
	return p
}

func hasBookingFields(p Patch) bool {
	return p.StaffID != nil || p.ServiceID != nil || p.Date != nil || p.Time != nil
}

// proceed merges p into the session, runs time validation when p brings a
// new start time or a date for an already chosen time, and then moves to the
// next missing field.
func (m *Machine) proceed(ctx context.Context, t Turn, p Patch, prefix string) (Reply, Patch) {
	next := Apply(t.Session, p)

	if p.Date != nil {
		if msg := m.dateProblem(t, *p.Date); msg != "" {
			p.Date = nil
			p = p.Merge(Patch{Clear: []Field{FieldDate, FieldOffered}})
			next = Apply(t.Session, p)
			if nextState(next) == StateSelectingDate {
				return say(prefix, msg), p.Merge(goTo(StateSelectingDate))
			}
			reply, ap := m.advance(ctx, t, next, "")
			return say(append([]string{prefix, msg}, reply.Messages...)...), p.Merge(ap)
		}
	}

	if next.Time != nil && (p.Time != nil || p.Date != nil) {
		c := *next.Time
		return m.chooseTime(ctx, t, p, c, prefix)
	}
	reply, ap := m.advance(ctx, t, next, prefix)
	return reply, p.Merge(ap)
}

// dateProblem returns the rejection text for dates that can never be booked.
func (m *Machine) dateProblem(t Turn, d schedule.Date) string {
	switch {
	case d.Before(t.Today):
		return msgPastDate
	case m.engine().Hours.ClosedOn(d):
		return msgClosedDay
	}
	return ""
}

// nextState maps the first missing field onto the state that asks for it.
func nextState(s Session) State {
	missing := MissingFields(s)
	if len(missing) == 0 {
		return StateConfirming
	}
	switch missing[0] {
	case FieldStaff:
		return StateSelectingStaff
	case FieldService:
		return StateSelectingService
	case FieldDate:
		if s.Class == "" && s.Time == nil && s.Flow != FlowReschedule {
			return StateSelectingScheduleClass
		}
		return StateSelectingDate
	case FieldTime:
		return StateSelectingTime
	case FieldName:
		return StateCollectingName
	default:
		return StateCollectingPhone
	}
}

// advance moves s to the state for its first missing field and renders that
// state's prompt after prefix.
func (m *Machine) advance(ctx context.Context, t Turn, s Session, prefix string) (Reply, Patch) {
	state := nextState(s)
	switch state {
	case StateSelectingTime:
		return m.offerSlots(ctx, t, s, prefix)
	case StateConfirming:
		staff, _ := m.staffOf(s)
		svc, _ := m.serviceOf(s)
		return say(prefix, m.copy.ConfirmationPrompt(s, staff, svc)), goTo(StateConfirming)
	}
	return say(prefix, m.prompt(t, s, state)), goTo(state)
}

func (m *Machine) prompt(t Turn, s Session, state State) string {
	switch state {
	case StateSelectingStaff:
		return m.copy.StaffMenu()
	case StateSelectingService:
		return m.copy.ServiceMenu()
	case StateSelectingScheduleClass:
		return m.copy.ScheduleClassMenu()
	case StateSelectingDate:
		if s.Flow == FlowReschedule && s.Time == nil {
			return msgAskNewDate
		}
		return msgAskDate
	case StateCollectingName:
		return msgAskName
	case StateCollectingPhone:
		return m.copy.PhonePrompt(chatPhone(t.SessionID))
	}
	return m.copy.MainMenu()
}

// slots lists availability for the session's staff, service and date. A
// calendar read failure other than expired credentials degrades to an
// empty snapshot; confirmation re-checks against the calendar anyway.
func (m *Machine) slots(ctx context.Context, t Turn, s Session) (schedule.SlotList, error) {
	if s.Date == nil {
		return schedule.SlotList{}, errNoDate
	}
	staff, _ := m.staffOf(s)
	svc, _ := m.serviceOf(s)
	class := s.Class
	if class == "" {
		class = schedule.ClassGeneral
	}
	list, err := m.appts.Slots(ctx, staff, svc, *s.Date, class, s.TargetRef(), t.Now)
	if err == nil {
		return list, nil
	}
	if appointments.KindOf(err) == appointments.KindAuthExpired {
		return list, err
	}
	m.logger.Warn("availability degraded to empty calendar", "session_id", t.SessionID, "error", err)
	return m.engine().Slots(*s.Date, svc.DurationMinutes, nil, class, t.Now), nil
}

// offerSlots shows the numbered list for the chosen date, or sends the
// customer back to date selection when nothing is free. Without a date it
// asks for the first missing field instead.
func (m *Machine) offerSlots(ctx context.Context, t Turn, s Session, prefix string) (Reply, Patch) {
	if s.Date == nil {
		state := nextState(s)
		return say(prefix, m.prompt(t, s, state)), goTo(state)
	}
	list, err := m.slots(ctx, t, s)
	if err != nil {
		return say(prefix, msgTokenExpired), Patch{}
	}
	if list.Empty() {
		return say(prefix, m.copy.NoSlots(list)), Patch{
			State: ptr(StateSelectingDate),
			Clear: []Field{FieldDate, FieldOffered},
		}
	}
	return say(prefix, m.copy.SlotList(*s.Date, list.Slots)), Patch{
		State:        ptr(StateSelectingTime),
		OfferedSlots: list.Slots,
	}
}

// freshSlots is the list shown alongside a rejected time.
func (m *Machine) freshSlots(ctx context.Context, t Turn, s Session) []schedule.Clock {
	if s.Date == nil {
		return nil
	}
	list, err := m.slots(ctx, t, s)
	if err != nil {
		return nil
	}
	return list.Slots
}

// chooseTime validates a requested start time against hours, the break,
// the lead time and the calendar, warns once about surcharge pricing, and
// otherwise records it and advances.
func (m *Machine) chooseTime(ctx context.Context, t Turn, base Patch, c schedule.Clock, prefix string) (Reply, Patch) {
	eng := m.engine()
	s := Apply(t.Session, base)
	svc, _ := m.serviceOf(s)
	duration := svc.DurationMinutes
	class := eng.ClassFor(c)

	reject := func(msg string, fresh []schedule.Clock) (Reply, Patch) {
		p := base.Merge(Patch{Clear: []Field{FieldTime}})
		if s.Date != nil {
			p = p.Merge(Patch{State: ptr(StateSelectingTime), OfferedSlots: fresh})
		}
		return say(prefix, msg), p
	}
	listFor := func() []schedule.Clock {
		probe := s
		probe.Time = nil
		return m.freshSlots(ctx, t, probe)
	}

	if !eng.InWindow(c, class) {
		fresh := listFor()
		return reject(m.copy.OutsideHours(c, fresh), fresh)
	}
	if duration > 0 && eng.ConflictsWithBreak(c, duration) {
		fresh := listFor()
		return reject(m.copy.BreakTime(fresh), fresh)
	}
	if s.Date != nil {
		if !eng.MeetsLeadTime(*s.Date, c, t.Now) {
			fresh := listFor()
			return reject(m.copy.LeadTime(eng.LeadHours, fresh), fresh)
		}
		if staff, ok := m.staffOf(s); ok && duration > 0 {
			existing, err := m.appts.Existing(ctx, staff, *s.Date, s.TargetRef())
			switch {
			case appointments.KindOf(err) == appointments.KindAuthExpired:
				return say(prefix, msgTokenExpired), base
			case err != nil:
				m.logger.Warn("occupancy check skipped", "session_id", t.SessionID, "error", err)
			case eng.IsOccupied(*s.Date, c, duration, existing):
				fresh := eng.Slots(*s.Date, duration, existing, classOrGeneral(s.Class), t.Now).Slots
				return reject(m.copy.TimeOccupied(c, staff, fresh), fresh)
			}
		}
	}

	p := base.Merge(Patch{Time: ptr(c), Class: ptr(class)})
	if class == schedule.ClassSurcharge {
		acknowledged := s.Class == schedule.ClassSurcharge && s.SurchargeAcknowledged
		if !acknowledged {
			p = p.Merge(Patch{SurchargeAcknowledged: ptr(false), State: ptr(StateSelectingTime)})
			return say(prefix, m.copy.SurchargeWarning(c, svc)), p
		}
		p = p.Merge(Patch{SurchargeAcknowledged: ptr(true)})
	} else {
		p = p.Merge(Patch{SurchargeAcknowledged: ptr(false)})
	}

	next := Apply(t.Session, p)
	lead := prefix
	if lead == "" {
		lead = fmt.Sprintf("✅ Hora seleccionada: %s", c)
	}
	if next.Date == nil {
		state := nextState(next)
		return say(lead, m.prompt(t, next, state)), p.Merge(goTo(state))
	}
	reply, ap := m.advance(ctx, t, next, lead)
	return reply, p.Merge(ap)
}

func classOrGeneral(c schedule.Class) schedule.Class {
	if c == "" {
		return schedule.ClassGeneral
	}
	return c
}

// chatPhone extracts the customer's number from a WhatsApp session id such
// as "whatsapp:573001234567". The Colombian country code is dropped so the
// result matches what customers type.
func chatPhone(sessionID string) string {
	channel, id, ok := strings.Cut(sessionID, ":")
	if !ok || channel != "whatsapp" {
		return ""
	}
	if at := strings.IndexByte(id, '@'); at >= 0 {
		id = id[:at]
	}
	if len(id) < 10 || len(id) > 15 || !isNumber(id) {
		return ""
	}
	return localPhone(id)
}

func localPhone(digits string) string {
	if len(digits) == 12 && strings.HasPrefix(digits, "57") {
		return digits[2:]
	}
	return digits
}
