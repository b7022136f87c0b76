package resolver

import (
	"regexp"
	"strconv"

	"github.com/wolfman30/barber-booking-bot/internal/catalog"
	"github.com/wolfman30/barber-booking-bot/internal/schedule"
)

var (
	middayRE   = regexp.MustCompile(`\bmediodia\b`)
	periodRE   = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?(?:\s+y\s+(media|cuarto|\d{1,2}))?\s+(?:de|en|por)\s+la\s+(manana|tarde|noche)\b`)
	meridiemRE = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*([ap])\.?\s?m\b\.?`)
	hhmmRE     = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	aLasRE     = regexp.MustCompile(`\ba\s+las?\s+(\d{1,2})(?:\s+y\s+(media|cuarto|\d{1,2}))?\b`)
	yMediaRE   = regexp.MustCompile(`\b(\d{1,2})\s+y\s+(media|cuarto|\d{1,2})\b`)
)

// ParseTime reads a time of day out of a Spanish utterance. Explicit
// periods ("de la tarde", "pm") win; otherwise a bare hour goes through
// pmHeuristic.
func ParseTime(text string) (schedule.Clock, bool) {
	t := catalog.Fold(text)
	if t == "" {
		return schedule.NoClock, false
	}

	if middayRE.MatchString(t) {
		return schedule.NewClock(12, 0), true
	}

	if m := periodRE.FindStringSubmatch(t); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, ok := minutesOf(m[2], m[3])
		if !ok || hour > 12 {
			return schedule.NoClock, false
		}
		switch m[4] {
		case "manana":
			if hour == 12 {
				hour = 0
			}
		default:
			if hour < 12 {
				hour += 12
			}
		}
		return clock(hour, minute)
	}

	if m := meridiemRE.FindStringSubmatch(t); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, ok := minutesOf(m[2], "")
		if !ok || hour < 1 || hour > 12 {
			return schedule.NoClock, false
		}
		if m[3] == "p" && hour < 12 {
			hour += 12
		}
		if m[3] == "a" && hour == 12 {
			hour = 0
		}
		return clock(hour, minute)
	}

	if m := hhmmRE.FindStringSubmatch(t); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		// "09:00" is explicit; "3:30" is a bare afternoon hour.
		if len(m[1]) == 1 {
			hour = pmHeuristic(hour)
		}
		return clock(hour, minute)
	}

	if m := aLasRE.FindStringSubmatch(t); m != nil {
		return bareHour(m[1], m[2])
	}
	if m := yMediaRE.FindStringSubmatch(t); m != nil {
		return bareHour(m[1], m[2])
	}
	return schedule.NoClock, false
}

// pmHeuristic maps a bare hour from 1 to 8 to the afternoon. The shop never
// opens before 07:00 and clients say "a las 3" for 15:00; "a las 7" stays
// ambiguous in theory but in practice means the evening.
func pmHeuristic(hour int) int {
	if hour >= 1 && hour <= 8 {
		return hour + 12
	}
	return hour
}

func bareHour(h, rest string) (schedule.Clock, bool) {
	hour, _ := strconv.Atoi(h)
	minute, ok := minutesOf("", rest)
	if !ok {
		return schedule.NoClock, false
	}
	return clock(pmHeuristic(hour), minute)
}

// minutesOf reads ":MM" or the "y media|cuarto|MM" suffix.
func minutesOf(colon, suffix string) (int, bool) {
	switch {
	case colon != "":
		m, _ := strconv.Atoi(colon)
		return m, m < 60
	case suffix == "media":
		return 30, true
	case suffix == "cuarto":
		return 15, true
	case suffix != "":
		m, _ := strconv.Atoi(suffix)
		return m, m < 60
	}
	return 0, true
}

func clock(hour, minute int) (schedule.Clock, bool) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return schedule.NoClock, false
	}
	return schedule.NewClock(hour, minute), true
}
