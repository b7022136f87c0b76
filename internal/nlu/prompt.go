package nlu

import (
	"fmt"
	"strings"

	"github.com/wolfman30/barber-booking-bot/internal/catalog"
)

var spanishWeekdays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func buildSystemPrompt(businessName string, cat *catalog.Catalog, nctx Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Eres el asistente de reservas de la barbería \"%s\". Analiza el mensaje del cliente y devuelve SOLO un objeto JSON.\n\n", businessName)

	b.WriteString("CATÁLOGO:\n")
	fmt.Fprintf(&b, "- Barberos: %s\n", strings.Join(cat.StaffNames(), ", "))
	for _, s := range cat.Services {
		fmt.Fprintf(&b, "- \"%s\" (ID %d) $%s COP, %d min. Alias: %s\n",
			s.Name, s.ID, catalog.FormatPrice(s.Price), s.DurationMinutes, strings.Join(s.Aliases, ", "))
	}
	b.WriteString("- Horario general 09:30 a 20:00 (última cita 19:30), lunes a sábado. Horario extra 07:00 a 22:00 con precio doble. Almuerzo 13:00 a 14:00. Domingo cerrado.\n\n")

	now := nctx.Now
	fmt.Fprintf(&b, "FECHA ACTUAL: %s %s, hora %s.\n\n", spanishWeekdays[now.Weekday()], now.Format("02/01/2006"), now.Format("15:04"))

	b.WriteString("ESTADO DE LA CONVERSACIÓN:\n")
	fmt.Fprintf(&b, "- Paso actual: %s\n", orDefault(nctx.State, "menu"))
	fmt.Fprintf(&b, "- Barbero: %s\n", orDefault(nctx.Staff, "sin elegir"))
	fmt.Fprintf(&b, "- Servicio: %s\n", orDefault(nctx.Service, "sin elegir"))
	fmt.Fprintf(&b, "- Fecha: %s\n", orDefault(nctx.Date, "sin elegir"))
	fmt.Fprintf(&b, "- Hora: %s\n", orDefault(nctx.Time, "sin elegir"))
	fmt.Fprintf(&b, "- Nombre del cliente: %s\n", orDefault(nctx.ClientName, "no proporcionado"))
	fmt.Fprintf(&b, "- Teléfono del cliente: %s\n", orDefault(nctx.ClientPhone, "no proporcionado"))
	if nctx.ChatPhone != "" {
		fmt.Fprintf(&b, "- Número del chat: %s\n", nctx.ChatPhone)
	}
	if nctx.Hint != "" {
		fmt.Fprintf(&b, "- Contexto: %s\n", nctx.Hint)
	}

	b.WriteString(`
REGLAS:
1. Intenciones: "greeting" (saludos), "book_appointment" (agendar, reservar, cita, turno), "ask_services", "ask_prices", "ask_barbers", "phone_choice", "reschedule" (cambiar, reagendar, mover la cita), "cancel" (cancelar o borrar la cita), "other" si no es claro.
2. Usa los alias para identificar el servicio: "corte" es "Corte de cabello", "corte y barba" es "Corte con barba", "marcar barba" es "Servicio sencillo".
3. Fechas en DD/MM/YYYY relativas a la fecha actual. "mañana" es el día siguiente, "pasado mañana" dos días después, "próximo martes" el siguiente martes que no sea hoy.
4. Horas en HH:MM de 24 horas. Una hora entre 1 y 8 sin "mañana" se interpreta como de la tarde.
5. Si la fecha no se puede determinar con certeza marca "ambiguous_date": true.
6. Si el cliente quiere usar el número del chat ("mi número", "el mismo", "este") marca "use_current_phone": true; si quiere otro número, false; si no aplica, null.
7. Nunca borres datos ya confirmados en el estado: si solo menciona una hora, devuelve solo la hora.
8. Si en el paso de elegir barbero o servicio pregunta "¿cuáles hay?", responde con "ask_barbers" o "ask_services".
9. Deja "scheduleType" en null; el sistema lo deduce de la hora.

Responde exactamente con esta estructura:
{"intent": "...", "barber": string|null, "service": string|null, "date": "DD/MM/YYYY"|null, "time": "HH:MM"|null, "natural_date": string|null, "natural_time": string|null, "ambiguous_date": bool, "use_current_phone": bool|null, "scheduleType": null, "confidence": 0.0-1.0, "needs_info": ["barber","service","date","time","name","phone"]}
`)
	return b.String()
}

func buildUserPrompt(text string) string {
	return fmt.Sprintf("MENSAJE DEL CLIENTE: %q", strings.TrimSpace(text))
}
