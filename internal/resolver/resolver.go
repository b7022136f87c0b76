// Package resolver turns Spanish date and time expressions into civil
// values. Deterministic rules run first; the NLU extractor is consulted
// only when they find nothing, and its answer must clear the gate.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/wolfman30/barber-booking-bot/internal/nlu"
	"github.com/wolfman30/barber-booking-bot/internal/schedule"
)

// Source records which tier produced a result.
type Source string

const (
	SourceNone  Source = ""
	SourceRules Source = "rules"
	SourceNLU   Source = "nlu"
)

// Result is what the cascade could determine. Date and Time are nil when
// not found; a time-only utterance yields a nil Date.
type Result struct {
	Date      *schedule.Date
	Time      *schedule.Clock
	Ambiguous bool
	Source    Source
	// Extraction is the gated NLU reading, when that tier answered.
	Extraction *nlu.Extraction
}

// Empty reports whether nothing usable was found.
func (r Result) Empty() bool {
	return r.Date == nil && r.Time == nil && !r.Ambiguous
}

// ParseDateTime applies the deterministic rules only.
func ParseDateTime(text string, today schedule.Date) Result {
	var res Result
	if d, ok := ParseDate(text, today); ok {
		res.Date = &d
	}
	if c, ok := ParseTime(text); ok {
		res.Time = &c
	}
	if !res.Empty() {
		res.Source = SourceRules
	}
	return res
}

// Resolver runs the rules then NLU cascade.
type Resolver struct {
	extractor nlu.Extractor
	gate      nlu.Gate
	logger    *slog.Logger
}

// New builds a Resolver. A nil extractor disables the NLU tier.
func New(extractor nlu.Extractor, gate nlu.Gate, logger *slog.Logger) *Resolver {
	if extractor == nil {
		extractor = nlu.Disabled{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{extractor: extractor, gate: gate, logger: logger}
}

// Resolve returns the first tier that produced anything. NLU failures and
// readings below the gate yield an empty Result so callers re-prompt.
func (r *Resolver) Resolve(ctx context.Context, text string, today schedule.Date, nctx nlu.Context) Result {
	if strings.TrimSpace(text) == "" {
		return Result{}
	}
	if res := ParseDateTime(text, today); !res.Empty() {
		return res
	}

	x, err := r.extractor.Extract(ctx, text, nctx)
	if err != nil {
		if !errors.Is(err, nlu.ErrUnavailable) {
			r.logger.Debug("resolver: nlu skipped", "error", err)
		}
		return Result{}
	}
	if err := r.gate.Check(x); err != nil {
		return Result{}
	}
	return FromExtraction(x)
}

// FromExtraction converts the date and time fields of a gated reading.
// Malformed fields are dropped rather than failing the whole reading.
func FromExtraction(x *nlu.Extraction) Result {
	if x == nil {
		return Result{}
	}
	res := Result{Ambiguous: x.AmbiguousDate, Extraction: x}
	if x.Date != "" && !x.AmbiguousDate {
		if d, err := schedule.ParseDate(x.Date); err == nil {
			res.Date = &d
		}
	}
	if x.Time != "" {
		if c, err := schedule.ParseClock(x.Time); err == nil {
			res.Time = &c
		}
	}
	if !res.Empty() {
		res.Source = SourceNLU
	}
	return res
}
