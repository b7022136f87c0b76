package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/barber-booking-bot/internal/catalog"
	"github.com/wolfman30/barber-booking-bot/internal/schedule"
)

const (
	msgInvalidMenuOption = "❌ Opción no válida. Por favor, responde con 1 o 2.\n\n💡 Si quieres empezar de nuevo, escribe 'hola' o 'menu'."
	msgInvalidClass      = "❌ Opción no válida. Por favor, responde con 1 para horario general o 2 para horario extra."
	msgNameTooShort      = "❌ Por favor, escribe tu nombre completo (mínimo 2 caracteres):"
	msgTypePhone         = "Por favor, escribe el número de teléfono que quieres usar (ejemplo: 3001234567):"
	msgPhoneChoice       = "❌ Por favor, responde con 1 para usar tu número actual o 2 para registrar un número diferente."
	msgInvalidPhone      = "❌ El número debe tener 10 dígitos y empezar por 3 (ejemplo: 3001234567). Por favor, intenta de nuevo:"
	msgPastDate          = "❌ No puedes agendar citas para fechas pasadas. Por favor, selecciona una fecha futura:"
	msgClosedDay         = "❌ Los domingos no atendemos. Por favor, elige un día de lunes a sábado:"
	msgDateNotUnderstood = "❌ No pude entender la fecha. Por favor, intenta de nuevo:\n\n• 'Hoy' o 'mañana'\n• 'El próximo martes'\n• '15 de diciembre'"
	msgAmbiguousDate     = "🤔 No pude entender la fecha. Por favor, dime específicamente:\n\n• \"Hoy\" o \"mañana\"\n• \"El próximo martes\" o \"el viernes\"\n• \"15 de diciembre\" o \"el 20\"\n• O cualquier fecha que prefieras"
	msgInvalidTimeOption = "❌ Opción de horario inválida. Por favor, selecciona un número de la lista o escribe la hora (ejemplo: 10:30 o 'a las 4')."
	msgConfirmYesNo      = "❌ Por favor, responde con SÍ para confirmar o NO para cancelar."
	msgBookingDeclined   = "❌ Cita cancelada. Si cambias de opinión, puedes escribir 'hola' para comenzar de nuevo."
	msgCreateFailed      = "❌ Error al crear la cita. Por favor, intenta de nuevo más tarde."
	msgCancelYesNo       = "❌ Por favor, responde con SÍ para confirmar la cancelación o NO para mantener la cita."
	msgCancelKept        = "✅ Listo, tu cita sigue activa.\n\nSi necesitas algo más, escribe 'hola' para comenzar."
	msgCancelFailed      = "❌ Error al cancelar la cita. Por favor, intenta de nuevo más tarde."
	msgCancelGone        = "❌ No encontré esa cita en el calendario; es posible que ya haya sido cancelada.\n\nSi necesitas algo más, escribe 'hola' para comenzar."
	msgSearchFailed      = "❌ No pude consultar las citas en este momento. Por favor, intenta de nuevo en unos minutos."
	msgSearchPrompt      = "Por favor, proporciona tu nombre completo o número de teléfono para buscar tu cita:"
	msgReschedulePrompt  = "🔄 Para reagendar tu cita, necesito encontrar tu cita actual.\n\n" + msgSearchPrompt
	msgCancelPrompt      = "❌ Para cancelar tu cita, necesito encontrar tu cita actual.\n\n" + msgSearchPrompt
	msgTokenExpired      = "❌ Error de autenticación con Google Calendar. Por favor, contacta al administrador para re-autorizar la aplicación."
	msgProcessingError   = "❌ Ocurrió un error al procesar tu mensaje. Por favor, intenta de nuevo."
	msgBreakTime         = "❌ Lo siento, no se pueden agendar citas durante el horario de almuerzo (1:00 PM - 2:00 PM)."
	msgAskDate           = "¿Para qué fecha te gustaría agendar tu cita?"
	msgAskNewDate        = "¿Para qué nueva fecha y hora te gustaría reagendar esta cita?"
	msgAskName           = "Por favor, escribe tu nombre completo:"
	msgSlotsFooter       = "Responde con el número de la opción que prefieras:"
)

// Copy renders every customer-facing text. It holds the catalog and hours
// so the menus always match what the engine enforces.
type Copy struct {
	BusinessName string
	Catalog      *catalog.Catalog
	Hours        schedule.Hours
}

// MainMenu is the numbered greeting shown when NLU is off.
func (c Copy) MainMenu() string {
	return fmt.Sprintf(`¡Hola! 👋 Bienvenido a %s💈
Soy tu asistente virtual y estoy aquí para ayudarte a reservar tu turno o responder tus dudas.

¿Qué te gustaría hacer hoy?:

1. Agendar una cita ✂️
2. Conocer nuestros servicios y precios 📋

📌 Nota: Nuestro horario de atención es de %s a %s.

Por favor, responde con el número de la opción que prefieras.`,
		c.BusinessName, clock12(c.Hours.General.Open), clock12(c.Hours.General.Close))
}

// SmartGreeting is the free-form greeting shown when NLU is on.
func (c Copy) SmartGreeting() string {
	var b strings.Builder
	fmt.Fprintf(&b, "¡Hola! 👋 Bienvenido a %s💈\n\n", c.BusinessName)
	b.WriteString("Soy tu asistente virtual y puedo ayudarte a agendar tu cita fácil y rápido.\n\n📋 Servicios:\n\n")
	for _, s := range c.Catalog.Services {
		fmt.Fprintf(&b, "%s %s - $%s (%d min)\n", s.Emoji, s.Name, catalog.FormatPrice(s.Price), s.DurationMinutes)
	}
	fmt.Fprintf(&b, "\n💈 Barberos: %s\n\n", strings.Join(c.Catalog.StaffNames(), " | "))
	b.WriteString("⏰ Horario:\n\n")
	fmt.Fprintf(&b, "💈 Lun a Sáb: %s – %s\n", c.Hours.General.Open, c.Hours.General.Close)
	fmt.Fprintf(&b, "🌙 Extra: %s – %s (precio doble)\n", c.Hours.Surcharge.Open, c.Hours.Surcharge.Close)
	fmt.Fprintf(&b, "🍽 Almuerzo: %s – %s\n\n", c.Hours.BreakStart, c.Hours.BreakEnd)
	b.WriteString("🎯 Solo dime qué servicio quieres y con quién, y te ayudo con el resto.\n\n")
	b.WriteString("También puedo ayudarte a reagendar o cancelar una cita.\n\n¿En qué puedo ayudarte hoy?")
	return b.String()
}

func (c Copy) StaffMenu() string {
	var b strings.Builder
	b.WriteString("👨‍💼 Selecciona tu barbero preferido:\n\n")
	for i, m := range c.Catalog.Staff {
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, m.Emoji, m.Name)
	}
	b.WriteString("\nPor favor, responde con el número del barbero que prefieras:")
	return b.String()
}

func (c Copy) ServiceMenu() string {
	var b strings.Builder
	b.WriteString("✂️ Selecciona el servicio que deseas:\n\n")
	for i, s := range c.Catalog.Services {
		fmt.Fprintf(&b, "%d. %s %s - $%s COP\n", i+1, s.Emoji, s.Name, catalog.FormatPrice(s.Price))
	}
	b.WriteString("\nPor favor, responde con el número del servicio que prefieras:")
	return b.String()
}

// ServicesAndPrices is the detailed price list.
func (c Copy) ServicesAndPrices() string {
	var b strings.Builder
	b.WriteString("📋 NUESTROS SERVICIOS Y PRECIOS:\n\n")
	for _, s := range c.Catalog.Services {
		fmt.Fprintf(&b, "%s %s\n", s.Emoji, s.Name)
		if s.Description != "" {
			fmt.Fprintf(&b, "   %s\n", s.Description)
		}
		fmt.Fprintf(&b, "   ⏱️ Duración: %d minutos\n", s.DurationMinutes)
		fmt.Fprintf(&b, "   💰 Precio: $%s COP\n\n", catalog.FormatPrice(s.Price))
	}
	b.WriteString("¿Te gustaría agendar alguno de estos servicios? Responde 1 para agendar una cita.")
	return b.String()
}

func (c Copy) ScheduleClassMenu() string {
	g, s := c.Hours.General, c.Hours.Surcharge
	return fmt.Sprintf(`🕐 TIPOS DE HORARIO DISPONIBLES:

1. 🌅 HORARIO GENERAL
⏰ %s - %s (última cita %s)
💰 Precio normal

2. 🌙 HORARIO EXTRA
⏰ %s - %s (última cita %s)
💰 Precio doble (para casos especiales)

¿Qué tipo de horario prefieres? Responde 1 o 2.`,
		clock12(g.Open), clock12(g.Close), clock12(g.LastStart),
		clock12(s.Open), clock12(s.Close), clock12(s.LastStart))
}

// PhonePrompt offers the chat number when the channel exposes one.
func (c Copy) PhonePrompt(chatPhone string) string {
	if chatPhone == "" {
		return msgTypePhone
	}
	return fmt.Sprintf("¿Qué número de teléfono quieres usar para la cita?\n\n1. 📱 Usar mi número actual: %s\n2. ✏️ Registrar un número diferente\n\nResponde con 1 o 2:", chatPhone)
}

// SlotList renders a numbered list of offered starts.
func (c Copy) SlotList(date schedule.Date, slots []schedule.Clock) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Fecha seleccionada: %s\n\nSelecciona un horario disponible:\n\n", date)
	writeSlots(&b, slots)
	b.WriteString("\n" + msgSlotsFooter)
	return b.String()
}

// NoSlots explains an empty slot list and asks for another date.
func (c Copy) NoSlots(list schedule.SlotList) string {
	switch list.Reason {
	case schedule.ReasonPastDate:
		return msgPastDate
	case schedule.ReasonClosed:
		return msgClosedDay
	case schedule.ReasonTooLateToday:
		return "❌ Ya no quedan horarios disponibles para hoy.\n\nPor favor, selecciona otra fecha:"
	default:
		return fmt.Sprintf("❌ No hay horarios disponibles para el %s.\n\nPor favor, selecciona otra fecha:", list.Date)
	}
}

// TimeOccupied is shown when a requested start is taken.
func (c Copy) TimeOccupied(t schedule.Clock, staff catalog.StaffMember, fresh []schedule.Clock) string {
	msg := fmt.Sprintf("❌ Lo siento, el horario %s ya está ocupado para %s.\n\nPor favor, selecciona otro horario disponible", t, staff.Name)
	return withSlots(msg, fresh)
}

// NoLongerAvailable is shown when confirmation finds the slot gone.
func (c Copy) NoLongerAvailable(t schedule.Clock, fresh []schedule.Clock) string {
	msg := fmt.Sprintf("❌ Lo siento, el horario %s ya no está disponible.\n\nPor favor, selecciona otro horario disponible", t)
	return withSlots(msg, fresh)
}

func (c Copy) BreakTime(fresh []schedule.Clock) string {
	return withSlots(msgBreakTime+"\n\nPor favor, selecciona otro horario disponible", fresh)
}

func (c Copy) OutsideHours(t schedule.Clock, fresh []schedule.Clock) string {
	msg := fmt.Sprintf("❌ La hora %s está fuera de nuestro horario de atención (%s - %s, horario extra %s - %s).\n\nPor favor, selecciona otro horario",
		t, c.Hours.General.Open, c.Hours.General.LastStart, c.Hours.Surcharge.Open, c.Hours.Surcharge.LastStart)
	return withSlots(msg, fresh)
}

func (c Copy) LeadTime(leadHours int, fresh []schedule.Clock) string {
	unit := "horas"
	if leadHours == 1 {
		unit = "hora"
	}
	msg := fmt.Sprintf("❌ Las citas para hoy deben agendarse con al menos %d %s de anticipación.\n\nPor favor, selecciona otro horario", leadHours, unit)
	return withSlots(msg, fresh)
}

// SurchargeWarning is the one-time notice that a start doubles the price.
func (c Copy) SurchargeWarning(t schedule.Clock, svc catalog.Service) string {
	return fmt.Sprintf("⚠️ ADVERTENCIA: Has seleccionado un horario extra (%s).\n\n🌙 Este horario tiene un precio doble:\n💰 Precio normal: $%s COP\n💰 Precio extra: $%s COP\n\n¿Confirmas que quieres continuar con este horario extra? Responde SÍ o elige otro horario.",
		t, catalog.FormatPrice(svc.Price), catalog.FormatPrice(schedule.Price(svc, schedule.ClassSurcharge)))
}

// Understood echoes what the bot picked up so far.
func (c Copy) Understood(staff *catalog.StaffMember, svc *catalog.Service, date *schedule.Date, t *schedule.Clock) string {
	var b strings.Builder
	b.WriteString("¡Perfecto! He entendido tu solicitud:\n")
	if staff != nil {
		fmt.Fprintf(&b, "\nBarbero: %s %s", staff.Emoji, staff.Name)
	}
	if svc != nil {
		fmt.Fprintf(&b, "\nServicio: %s %s", svc.Emoji, svc.Name)
	}
	if date != nil {
		fmt.Fprintf(&b, "\nFecha: 📅 %s", date)
	}
	if t != nil && t.Valid() {
		fmt.Fprintf(&b, "\nHora: 🕐 %s", clock12(*t))
	}
	return b.String()
}

// ConfirmationPrompt summarises a complete booking and asks SÍ/NO.
func (c Copy) ConfirmationPrompt(s Session, staff catalog.StaffMember, svc catalog.Service) string {
	class := schedule.ClassGeneral
	if s.Class == schedule.ClassSurcharge {
		class = schedule.ClassSurcharge
	}
	var b strings.Builder
	b.WriteString("📋 CONFIRMACIÓN DE CITA\n\n")
	fmt.Fprintf(&b, "👤 Cliente: %s\n", s.ClientName)
	fmt.Fprintf(&b, "📞 Teléfono: %s\n", s.ClientPhone)
	fmt.Fprintf(&b, "👨‍💼 Barbero: %s %s\n", staff.Emoji, staff.Name)
	fmt.Fprintf(&b, "✂️ Servicio: %s %s\n", svc.Emoji, svc.Name)
	if class == schedule.ClassSurcharge {
		b.WriteString("🌙 Horario Extra (Precio doble)\n")
	}
	fmt.Fprintf(&b, "💰 Precio: $%s COP\n", catalog.FormatPrice(schedule.Price(svc, class)))
	fmt.Fprintf(&b, "⏱️ Duración: %d minutos\n", svc.DurationMinutes)
	fmt.Fprintf(&b, "📅 Fecha: %s\n", s.Date)
	fmt.Fprintf(&b, "🕐 Hora: %s\n\n", clock12(*s.Time))
	if s.Flow == FlowReschedule && s.Target != nil {
		fmt.Fprintf(&b, "🔄 Reemplaza tu cita: %s\n\n", s.Target.Summary)
	}
	b.WriteString("¿Confirmas esta cita? Responde:\n✅ SÍ - para confirmar\n❌ NO - para cancelar")
	return b.String()
}

// Confirmed is sent once the calendar holds the appointment.
func (c Copy) Confirmed(s Session, staff catalog.StaffMember, svc catalog.Service, class schedule.Class, price int, rescheduled bool) string {
	var b strings.Builder
	if rescheduled {
		b.WriteString("🔄 ¡CITA REAGENDADA! 🔄\n\n")
	} else {
		b.WriteString("🎉 ¡CITA CONFIRMADA! 🎉\n\n")
	}
	fmt.Fprintf(&b, "✅ %s %s\n", svc.Emoji, svc.Name)
	fmt.Fprintf(&b, "👤 Cliente: %s\n", s.ClientName)
	fmt.Fprintf(&b, "📞 Teléfono: %s\n", s.ClientPhone)
	fmt.Fprintf(&b, "👨‍💼 Barbero: %s %s\n", staff.Emoji, staff.Name)
	if class == schedule.ClassSurcharge {
		b.WriteString("🌙 Horario Extra (Precio doble)\n")
	}
	fmt.Fprintf(&b, "📅 Fecha: %s\n", s.Date)
	fmt.Fprintf(&b, "🕐 Hora: %s\n", clock12(*s.Time))
	fmt.Fprintf(&b, "💰 Precio: $%s COP\n", catalog.FormatPrice(price))
	fmt.Fprintf(&b, "⏱️ Duración: %d minutos\n\n", svc.DurationMinutes)
	b.WriteString("¡Te esperamos! 💈")
	return b.String()
}

// AppointmentCard describes one found appointment.
func (c Copy) AppointmentCard(title string, cand Candidate, loc *time.Location) string {
	start := cand.Start.In(loc)
	return fmt.Sprintf("📅 %s:\n\n👤 Cliente: %s\n📅 Fecha: %s\n🕐 Hora: %s",
		title, cand.Summary, schedule.DateOf(start), clock12(schedule.ClockOf(start)))
}

// CandidateList numbers the appointments the customer can pick from.
func (c Copy) CandidateList(flow Flow, cands []Candidate, loc *time.Location) string {
	verb := "reagendadas"
	question := "¿Cuál cita quieres reagendar?"
	if flow == FlowCancel {
		verb = "canceladas"
		question = "¿Cuál cita quieres cancelar?"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📅 Encontré %d citas que pueden ser %s:\n\n", len(cands), verb)
	for i, cand := range cands {
		start := cand.Start.In(loc)
		fmt.Fprintf(&b, "%d. %s - %s %s\n", i+1, cand.Summary, schedule.DateOf(start), clock12(schedule.ClockOf(start)))
	}
	fmt.Fprintf(&b, "\n%s Responde con el número (1, 2, 3, etc.)", question)
	return b.String()
}

// TooLate explains why an appointment can no longer be changed.
func (c Copy) TooLate(flow Flow, cand Candidate, minutes, leadHours int, loc *time.Location) string {
	verb, past := "reagendar", "reagendadas"
	if flow == FlowCancel {
		verb, past = "cancelar", "canceladas"
	}
	start := cand.Start.In(loc)
	return fmt.Sprintf("❌ No puedes %s esta cita.\n\n📅 Cita: %s\n🕐 Fecha: %s %s\n⏰ Tiempo restante: %d minutos\n\n⚠️ Las citas solo pueden ser %s con un mínimo de %s de anticipación.",
		verb, cand.Summary, schedule.DateOf(start), clock12(schedule.ClockOf(start)), minutes, past, leadPhrase(leadHours))
}

func (c Copy) NoneModifiable(flow Flow, leadHours int) string {
	past := "reagendadas"
	if flow == FlowCancel {
		past = "canceladas"
	}
	return fmt.Sprintf("❌ No tienes citas que puedan ser %s.\n\n⚠️ Las citas solo pueden ser %s con un mínimo de %s de anticipación.", past, past, leadPhrase(leadHours))
}

func (c Copy) NotFound(query string) string {
	return fmt.Sprintf("❌ No encontré ninguna cita con \"%s\".\n\nPor favor, verifica tu nombre o número de teléfono y vuelve a intentar.", query)
}

func (c Copy) InvalidCandidate(n int) string {
	return fmt.Sprintf("❌ Opción no válida. Por favor, selecciona un número del 1 al %d.", n)
}

func (c Copy) Cancelled(cand Candidate, loc *time.Location) string {
	start := cand.Start.In(loc)
	return fmt.Sprintf("✅ Cita cancelada exitosamente.\n\n📅 Cita cancelada: %s\n🕐 Fecha: %s %s\n\nSi necesitas agendar una nueva cita, escribe \"hola\" para comenzar.",
		cand.Summary, schedule.DateOf(start), clock12(schedule.ClockOf(start)))
}

func leadPhrase(hours int) string {
	if hours == 1 {
		return "1 hora"
	}
	return fmt.Sprintf("%d horas", hours)
}

func withSlots(msg string, slots []schedule.Clock) string {
	if len(slots) == 0 {
		return msg + "."
	}
	var b strings.Builder
	b.WriteString(msg + ":\n\n")
	writeSlots(&b, slots)
	return strings.TrimRight(b.String(), "\n")
}

func writeSlots(b *strings.Builder, slots []schedule.Clock) {
	for i, s := range slots {
		fmt.Fprintf(b, "%d. %s\n", i+1, s)
	}
}

// clock12 renders 15:00 as "3:00 PM".
func clock12(c schedule.Clock) string {
	if !c.Valid() {
		return ""
	}
	h := c.Hour()
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	switch {
	case h == 0:
		h = 12
	case h > 12:
		h -= 12
	}
	return fmt.Sprintf("%d:%02d %s", h, c.Minute(), suffix)
}
