package appointments

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfman30/barber-booking-bot/internal/catalog"
	"github.com/wolfman30/barber-booking-bot/internal/schedule"
)

// Details is what an event description records about a booking.
type Details struct {
	ClientName      string
	ClientPhone     string
	StaffName       string
	ServiceName     string
	Class           schedule.Class
	Price           int
	DurationMinutes int
}

const (
	labelClient   = "Cliente"
	labelPhone    = "Teléfono"
	labelStaff    = "Barbero"
	labelService  = "Servicio"
	labelClass    = "Tipo de horario"
	labelPrice    = "Precio"
	labelDuration = "Duración"
)

// EncodeDescription renders the labeled event description.
func EncodeDescription(d Details) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", labelClient, d.ClientName)
	fmt.Fprintf(&b, "%s: %s\n", labelPhone, d.ClientPhone)
	fmt.Fprintf(&b, "%s: %s\n", labelStaff, d.StaffName)
	fmt.Fprintf(&b, "%s: %s\n", labelService, d.ServiceName)
	fmt.Fprintf(&b, "%s: %s\n", labelClass, classLabel(d.Class))
	fmt.Fprintf(&b, "%s: $%s COP\n", labelPrice, catalog.FormatPrice(d.Price))
	fmt.Fprintf(&b, "%s: %d minutos", labelDuration, d.DurationMinutes)
	return b.String()
}

// DecodeDescription reads back what EncodeDescription wrote. Labels match
// regardless of case and accents; unknown lines are ignored so manually
// created events still decode partially.
func DecodeDescription(desc string) Details {
	var d Details
	for _, line := range strings.Split(desc, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch catalog.Fold(label) {
		case catalog.Fold(labelClient):
			d.ClientName = value
		case catalog.Fold(labelPhone):
			d.ClientPhone = value
		case catalog.Fold(labelStaff):
			d.StaffName = value
		case catalog.Fold(labelService):
			d.ServiceName = value
		case catalog.Fold(labelClass):
			if strings.HasPrefix(catalog.Fold(value), "extra") {
				d.Class = schedule.ClassSurcharge
			} else {
				d.Class = schedule.ClassGeneral
			}
		case catalog.Fold(labelPrice):
			d.Price = leadingNumber(strings.ReplaceAll(value, ".", ""))
		case catalog.Fold(labelDuration):
			d.DurationMinutes = leadingNumber(value)
		}
	}
	return d
}

// Summary is the event title: "<emoji> <service> - <client>".
func Summary(svc catalog.Service, clientName string) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s - %s", svc.Emoji, svc.Name, clientName))
}

// ClientFromSummary returns the trailing "- Name" segment of a title.
func ClientFromSummary(summary string) string {
	i := strings.LastIndex(summary, " - ")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(summary[i+3:])
}

func classLabel(c schedule.Class) string {
	if c == schedule.ClassSurcharge {
		return "Extra"
	}
	return "General"
}

func leadingNumber(s string) int {
	s = strings.TrimLeft(strings.TrimSpace(s), "$ ")
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}
