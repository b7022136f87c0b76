package resolver

import (
	"regexp"
	"strconv"
	"time"

	"github.com/wolfman30/barber-booking-bot/internal/catalog"
	"github.com/wolfman30/barber-booking-bot/internal/schedule"
)

var (
	pasadoMananaRE  = regexp.MustCompile(`\bpasado\s+manana\b`)
	hoyRE           = regexp.MustCompile(`\bhoy\b`)
	mananaRE        = regexp.MustCompile(`\bmanana\b`)
	mananaPeriodRE  = regexp.MustCompile(`\b(?:de|por|en)\s+la\s+manana\b`)
	paraElRE        = regexp.MustCompile(`\bpara\s+el\b`)
	weekdayRE       = regexp.MustCompile(`\b(?:(proximo|este)\s+)?(lunes|martes|miercoles|jueves|viernes|sabado|domingo)\b`)
	dayMonthRE      = regexp.MustCompile(`\b(\d{1,2})\s+de\s+(enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre)(?:\s+(?:de|del)\s+(\d{4}))?\b`)
	slashDateRE     = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`)
	dayOfMonthRE    = regexp.MustCompile(`\bel\s+(\d{1,2})(?:\s|$|[,.!?])`)
	dayOfMonthTimes = regexp.MustCompile(`\bel\s+\d{1,2}\s*(?::|y\s|am\b|pm\b|de\s+la\b)`)
)

var weekdaysByName = map[string]time.Weekday{
	"domingo":   time.Sunday,
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miercoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sabado":    time.Saturday,
}

var monthsByName = map[string]time.Month{
	"enero":      time.January,
	"febrero":    time.February,
	"marzo":      time.March,
	"abril":      time.April,
	"mayo":       time.May,
	"junio":      time.June,
	"julio":      time.July,
	"agosto":     time.August,
	"septiembre": time.September,
	"setiembre":  time.September,
	"octubre":    time.October,
	"noviembre":  time.November,
	"diciembre":  time.December,
}

// ParseDate reads a calendar day out of a Spanish utterance relative to
// today. It recognizes relative words, weekday names, "15 de diciembre",
// "15/12[/2025]" and "el 20". Dates without a year that already passed
// roll forward to the next year (or the next month for "el 20").
func ParseDate(text string, today schedule.Date) (schedule.Date, bool) {
	t := catalog.Fold(text)
	if t == "" {
		return schedule.Date{}, false
	}

	if pasadoMananaRE.MatchString(t) {
		return today.AddDays(2), true
	}
	if hoyRE.MatchString(t) {
		return today, true
	}

	if m := dayMonthRE.FindStringSubmatch(t); m != nil {
		day, _ := strconv.Atoi(m[1])
		month := monthsByName[m[2]]
		if m[3] != "" {
			year, _ := strconv.Atoi(m[3])
			return civilDate(year, month, day)
		}
		return upcoming(today, month, day)
	}

	if m := slashDateRE.FindStringSubmatch(t); m != nil {
		day, _ := strconv.Atoi(m[1])
		mon, _ := strconv.Atoi(m[2])
		if mon < 1 || mon > 12 {
			return schedule.Date{}, false
		}
		if m[3] != "" {
			year, _ := strconv.Atoi(m[3])
			if len(m[3]) == 2 {
				year += 2000
			}
			return civilDate(year, time.Month(mon), day)
		}
		return upcoming(today, time.Month(mon), day)
	}

	if m := weekdayRE.FindStringSubmatch(t); m != nil {
		target := weekdaysByName[m[2]]
		diff := (int(target) - int(today.Weekday()) + 7) % 7
		if diff == 0 {
			// Naming today's weekday means next week's.
			diff = 7
		}
		return today.AddDays(diff), true
	}

	// "mañana" is tomorrow unless it only names the morning ("el martes por
	// la mañana", "para el 20 en la mañana").
	withoutPeriod := mananaPeriodRE.ReplaceAllString(t, " ")
	if mananaRE.MatchString(withoutPeriod) && !paraElRE.MatchString(t) {
		return today.AddDays(1), true
	}

	if !dayOfMonthTimes.MatchString(t) {
		if m := dayOfMonthRE.FindStringSubmatch(t); m != nil {
			day, _ := strconv.Atoi(m[1])
			d, ok := civilDate(today.Year, today.Month, day)
			if !ok {
				return schedule.Date{}, false
			}
			if d.Before(today) {
				next := today.In(time.UTC).AddDate(0, 1, 1-today.Day)
				return civilDate(next.Year(), next.Month(), day)
			}
			return d, true
		}
	}
	return schedule.Date{}, false
}

// civilDate rejects days that do not exist, such as 31/04.
func civilDate(year int, month time.Month, day int) (schedule.Date, bool) {
	if day < 1 || day > 31 || month < time.January || month > time.December {
		return schedule.Date{}, false
	}
	d := schedule.NewDate(year, month, day)
	if d.Month != month || d.Day != day {
		return schedule.Date{}, false
	}
	return d, true
}

func upcoming(today schedule.Date, month time.Month, day int) (schedule.Date, bool) {
	d, ok := civilDate(today.Year, month, day)
	if ok && !d.Before(today) {
		return d, true
	}
	// 29/02 may exist in neither this year nor the next; give up then.
	return civilDate(today.Year+1, month, day)
}
