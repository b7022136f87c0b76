package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/barber-booking-bot/internal/appointments"
	"github.com/wolfman30/barber-booking-bot/internal/calendar"
	"github.com/wolfman30/barber-booking-bot/internal/catalog"
	"github.com/wolfman30/barber-booking-bot/internal/schedule"
	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

// SlotFinder computes availability. appointments.Service satisfies it.
type SlotFinder interface {
	Catalog() *catalog.Catalog
	Slots(ctx context.Context, staff catalog.StaffMember, svc catalog.Service, date schedule.Date, class schedule.Class, exclude *calendar.Ref, now time.Time) (schedule.SlotList, error)
}

// AdminSlotsHandler answers availability queries for the owner.
type AdminSlotsHandler struct {
	finder SlotFinder
	logger *logging.Logger
	now    func() time.Time
}

func NewAdminSlotsHandler(finder SlotFinder, logger *logging.Logger) *AdminSlotsHandler {
	if finder == nil {
		panic("handlers: slot finder required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminSlotsHandler{finder: finder, logger: logger, now: time.Now}
}

// SlotsResponse lists free starts for one barber, service and day.
type SlotsResponse struct {
	Staff   string           `json:"staff"`
	Service string           `json:"service"`
	Date    schedule.Date    `json:"date"`
	Class   schedule.Class   `json:"schedule_class"`
	Slots   []schedule.Clock `json:"slots"`
	Reason  schedule.Reason  `json:"reason,omitempty"`
}

// GetSlots handles GET /admin/slots?staff=&service=&date=&class=
func (h *AdminSlotsHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cat := h.finder.Catalog()

	staff, ok := lookupStaff(cat, q.Get("staff"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown staff")
		return
	}
	svc, ok := lookupService(cat, q.Get("service"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown service")
		return
	}
	date, err := parseQueryDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be DD/MM/YYYY or YYYY-MM-DD")
		return
	}
	class := schedule.ClassGeneral
	if raw := q.Get("class"); raw != "" {
		c, ok := schedule.ParseClass(strings.ToLower(raw))
		if !ok {
			writeError(w, http.StatusBadRequest, "class must be general or extra")
			return
		}
		class = c
	}

	list, err := h.finder.Slots(r.Context(), staff, svc, date, class, nil, h.now())
	if err != nil {
		h.logger.Error("admin: slots lookup failed", "error", err, "staff", staff.Name)
		status := http.StatusBadGateway
		if errors.Is(err, calendar.ErrAuthExpired) || appointments.KindOf(err) == appointments.KindAuthExpired {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, "calendar unavailable")
		return
	}
	slots := list.Slots
	if slots == nil {
		slots = []schedule.Clock{}
	}
	writeJSON(w, http.StatusOK, SlotsResponse{
		Staff:   staff.Name,
		Service: svc.Name,
		Date:    list.Date,
		Class:   list.Class,
		Slots:   slots,
		Reason:  list.Reason,
	})
}

func lookupStaff(cat *catalog.Catalog, raw string) (catalog.StaffMember, bool) {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.Atoi(raw); err == nil {
		return cat.StaffByID(id)
	}
	return cat.MatchStaff(raw)
}

func lookupService(cat *catalog.Catalog, raw string) (catalog.Service, bool) {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.Atoi(raw); err == nil {
		return cat.ServiceByID(id)
	}
	return cat.MatchService(raw)
}

func parseQueryDate(raw string) (schedule.Date, error) {
	if d, err := schedule.ParseDate(raw); err == nil {
		return d, nil
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return schedule.Date{}, err
	}
	return schedule.DateOf(t), nil
}
