package conversation

import (
	"time"

	"github.com/wolfman30/barber-booking-bot/internal/calendar"
	"github.com/wolfman30/barber-booking-bot/internal/schedule"
)

// State is the dialogue step a session is waiting on.
type State string

const (
	StateMenu                   State = "MENU"
	StateSelectingStaff         State = "SELECTING_STAFF"
	StateSelectingService       State = "SELECTING_SERVICE"
	StateSelectingScheduleClass State = "SELECTING_SCHEDULE_CLASS"
	StateCollectingName         State = "COLLECTING_NAME"
	StateCollectingPhone        State = "COLLECTING_PHONE"
	StateSelectingDate          State = "SELECTING_DATE"
	StateAmbiguousDate          State = "AMBIGUOUS_DATE"
	StateSelectingTime          State = "SELECTING_TIME"
	StateConfirming             State = "CONFIRMING"
	StateRescheduling           State = "RESCHEDULING"
	StateCancelling             State = "CANCELLING"
)

var allStates = []State{
	StateMenu, StateSelectingStaff, StateSelectingService, StateSelectingScheduleClass,
	StateCollectingName, StateCollectingPhone, StateSelectingDate, StateAmbiguousDate,
	StateSelectingTime, StateConfirming, StateRescheduling, StateCancelling,
}

// Valid reports whether s is one of the enumerated states.
func (s State) Valid() bool {
	for _, st := range allStates {
		if st == s {
			return true
		}
	}
	return false
}

// Flow is what the customer is trying to do.
type Flow string

const (
	FlowBook       Flow = "book"
	FlowReschedule Flow = "reschedule"
	FlowCancel     Flow = "cancel"
)

// Field names a piece of session data. The first six are the booking fields
// MissingFields reports on; the rest can only be cleared.
type Field string

const (
	FieldStaff   Field = "staff"
	FieldService Field = "service"
	FieldDate    Field = "date"
	FieldTime    Field = "time"
	FieldName    Field = "name"
	FieldPhone   Field = "phone"

	FieldClass      Field = "schedule_class"
	FieldCandidates Field = "candidates"
	FieldTarget     Field = "target"
	FieldOffered    Field = "offered_slots"
)

// Candidate is an existing appointment the customer may pick to reschedule
// or cancel.
type Candidate struct {
	Ref         calendar.Ref `json:"ref"`
	Summary     string       `json:"summary"`
	Start       time.Time    `json:"start"`
	StaffID     int          `json:"staff_id,omitempty"`
	ServiceID   int          `json:"service_id,omitempty"`
	ClientName  string       `json:"client_name,omitempty"`
	ClientPhone string       `json:"client_phone,omitempty"`
}

// Session is the per-customer dialogue state persisted between turns.
type Session struct {
	ID                    string           `json:"id"`
	State                 State            `json:"state"`
	Flow                  Flow             `json:"flow,omitempty"`
	StaffID               int              `json:"staff_id,omitempty"`
	ServiceID             int              `json:"service_id,omitempty"`
	Date                  *schedule.Date   `json:"date,omitempty"`
	Time                  *schedule.Clock  `json:"time,omitempty"`
	Class                 schedule.Class   `json:"schedule_class,omitempty"`
	SurchargeAcknowledged bool             `json:"surcharge_acknowledged,omitempty"`
	ClientName            string           `json:"client_name,omitempty"`
	ClientPhone           string           `json:"client_phone,omitempty"`
	Candidates            []Candidate      `json:"candidates,omitempty"`
	Target                *Candidate       `json:"target,omitempty"`
	OfferedSlots          []schedule.Clock `json:"offered_slots,omitempty"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// NewSession returns an empty session waiting at the main menu.
func NewSession(id string) Session {
	return Session{ID: id, State: StateMenu}
}

// TargetRef returns the appointment being replaced or cancelled, if any.
func (s Session) TargetRef() *calendar.Ref {
	if s.Target == nil || s.Target.Ref.IsZero() {
		return nil
	}
	ref := s.Target.Ref
	return &ref
}

// MissingFields lists the booking fields still unknown, in the order the
// dialogue asks for them.
func MissingFields(s Session) []Field {
	var out []Field
	if s.StaffID == 0 {
		out = append(out, FieldStaff)
	}
	if s.ServiceID == 0 {
		out = append(out, FieldService)
	}
	if s.Date == nil || s.Date.IsZero() {
		out = append(out, FieldDate)
	}
	if s.Time == nil || !s.Time.Valid() {
		out = append(out, FieldTime)
	}
	if s.ClientName == "" {
		out = append(out, FieldName)
	}
	if s.ClientPhone == "" {
		out = append(out, FieldPhone)
	}
	return out
}

// Patch is a merge patch over Session. Nil fields keep the current value;
// Clear is the only way to drop one.
type Patch struct {
	State                 *State
	Flow                  *Flow
	StaffID               *int
	ServiceID             *int
	Date                  *schedule.Date
	Time                  *schedule.Clock
	Class                 *schedule.Class
	SurchargeAcknowledged *bool
	ClientName            *string
	ClientPhone           *string
	Candidates            []Candidate
	Target                *Candidate
	OfferedSlots          []schedule.Clock
	Clear                 []Field
	// End deletes the session once the reply is sent.
	End bool
}

// Apply merges p into s. Cleared fields are dropped before set fields are
// written, so one patch can replace a value.
func Apply(s Session, p Patch) Session {
	for _, f := range p.Clear {
		switch f {
		case FieldStaff:
			s.StaffID = 0
		case FieldService:
			s.ServiceID = 0
		case FieldDate:
			s.Date = nil
		case FieldTime:
			s.Time = nil
		case FieldName:
			s.ClientName = ""
		case FieldPhone:
			s.ClientPhone = ""
		case FieldClass:
			s.Class = ""
			s.SurchargeAcknowledged = false
		case FieldCandidates:
			s.Candidates = nil
		case FieldTarget:
			s.Target = nil
		case FieldOffered:
			s.OfferedSlots = nil
		}
	}
	if p.State != nil && p.State.Valid() {
		s.State = *p.State
	}
	if p.Flow != nil {
		s.Flow = *p.Flow
	}
	if p.StaffID != nil && *p.StaffID > 0 {
		s.StaffID = *p.StaffID
	}
	if p.ServiceID != nil && *p.ServiceID > 0 {
		s.ServiceID = *p.ServiceID
	}
	if p.Date != nil && !p.Date.IsZero() {
		d := *p.Date
		s.Date = &d
	}
	if p.Time != nil && p.Time.Valid() {
		c := *p.Time
		s.Time = &c
	}
	if p.Class != nil && *p.Class != "" {
		s.Class = *p.Class
	}
	if p.SurchargeAcknowledged != nil {
		s.SurchargeAcknowledged = *p.SurchargeAcknowledged
	}
	if p.ClientName != nil && *p.ClientName != "" {
		s.ClientName = *p.ClientName
	}
	if p.ClientPhone != nil && *p.ClientPhone != "" {
		s.ClientPhone = *p.ClientPhone
	}
	if p.Candidates != nil {
		s.Candidates = append([]Candidate(nil), p.Candidates...)
	}
	if p.Target != nil {
		t := *p.Target
		s.Target = &t
	}
	if p.OfferedSlots != nil {
		s.OfferedSlots = append([]schedule.Clock(nil), p.OfferedSlots...)
	}
	if !s.State.Valid() {
		s.State = StateMenu
	}
	return s
}

// Merge layers next on top of p. A field cleared by next also drops the
// value p would have set.
func (p Patch) Merge(next Patch) Patch {
	out := p
	for _, f := range next.Clear {
		switch f {
		case FieldStaff:
			out.StaffID = nil
		case FieldService:
			out.ServiceID = nil
		case FieldDate:
			out.Date = nil
		case FieldTime:
			out.Time = nil
		case FieldName:
			out.ClientName = nil
		case FieldPhone:
			out.ClientPhone = nil
		case FieldClass:
			out.Class = nil
			out.SurchargeAcknowledged = nil
		case FieldCandidates:
			out.Candidates = nil
		case FieldTarget:
			out.Target = nil
		case FieldOffered:
			out.OfferedSlots = nil
		}
	}
	out.Clear = append(append([]Field(nil), p.Clear...), next.Clear...)
	if next.State != nil {
		out.State = next.State
	}
	if next.Flow != nil {
		out.Flow = next.Flow
	}
	if next.StaffID != nil {
		out.StaffID = next.StaffID
	}
	if next.ServiceID != nil {
		out.ServiceID = next.ServiceID
	}
	if next.Date != nil {
		out.Date = next.Date
	}
	if next.Time != nil {
		out.Time = next.Time
	}
	if next.Class != nil {
		out.Class = next.Class
	}
	if next.SurchargeAcknowledged != nil {
		out.SurchargeAcknowledged = next.SurchargeAcknowledged
	}
	if next.ClientName != nil {
		out.ClientName = next.ClientName
	}
	if next.ClientPhone != nil {
		out.ClientPhone = next.ClientPhone
	}
	if next.Candidates != nil {
		out.Candidates = next.Candidates
	}
	if next.Target != nil {
		out.Target = next.Target
	}
	if next.OfferedSlots != nil {
		out.OfferedSlots = next.OfferedSlots
	}
	out.End = p.End || next.End
	return out
}

func ptr[T any](v T) *T { return &v }

func goTo(s State) Patch { return Patch{State: ptr(s)} }
