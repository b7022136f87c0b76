// Package nlu turns free-form chat text into structured booking fields
// using a language model behind a reliability gate.
package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/barber-booking-bot/internal/catalog"
)

// Intent is the user's goal as classified by the model.
type Intent string

const (
	IntentGreeting        Intent = "greeting"
	IntentBookAppointment Intent = "book_appointment"
	IntentAskServices     Intent = "ask_services"
	IntentAskPrices       Intent = "ask_prices"
	IntentAskStaff        Intent = "ask_barbers"
	IntentPhoneChoice     Intent = "phone_choice"
	IntentReschedule      Intent = "reschedule"
	IntentCancel          Intent = "cancel"
	IntentOther           Intent = "other"
)

var (
	// ErrLowConfidence marks an extraction that failed the reliability gate.
	// Callers fall through to their deterministic re-prompt.
	ErrLowConfidence = errors.New("nlu: extraction below confidence threshold")
	// ErrUnavailable is returned when no provider is configured.
	ErrUnavailable = errors.New("nlu: no provider configured")
	// ErrNoJSON is returned when the model reply carries no JSON object.
	ErrNoJSON = errors.New("nlu: response did not contain a json object")
)

// Extraction is the structured reading of one utterance.
type Extraction struct {
	Intent          Intent   `json:"intent"`
	Staff           string   `json:"barber"`
	Service         string   `json:"service"`
	Date            string   `json:"date"`
	Time            string   `json:"time"`
	NaturalDate     string   `json:"natural_date"`
	NaturalTime     string   `json:"natural_time"`
	AmbiguousDate   bool     `json:"ambiguous_date"`
	UseCurrentPhone *bool    `json:"use_current_phone"`
	ScheduleClass   string   `json:"scheduleType"`
	Confidence      float64  `json:"confidence"`
	NeedsInfo       []string `json:"needs_info"`
}

// Context is everything the model should know about the session.
type Context struct {
	State       string
	Staff       string
	Service     string
	Date        string
	Time        string
	ClientName  string
	ClientPhone string
	ChatPhone   string
	Hint        string
	Now         time.Time
}

// Extractor is the NLU capability consumed by the dialogue.
type Extractor interface {
	Extract(ctx context.Context, text string, nctx Context) (*Extraction, error)
}

// Recorder receives per-call outcomes.
type Recorder interface {
	ObserveNLU(provider, result string)
}

// Gate decides whether an extraction is trustworthy.
type Gate struct {
	Threshold float64
}

// DefaultGate requires confidence above 0.7.
func DefaultGate() Gate { return Gate{Threshold: 0.7} }

// Check returns ErrLowConfidence unless the extraction clears the
// threshold and names a concrete intent.
func (g Gate) Check(x *Extraction) error {
	if x == nil || x.Confidence <= g.Threshold || x.Intent == IntentOther || x.Intent == "" {
		return ErrLowConfidence
	}
	return nil
}

// LLMExtractor implements Extractor with any LLMClient.
type LLMExtractor struct {
	client       LLMClient
	catalog      *catalog.Catalog
	businessName string
	model        string
	timeout      time.Duration
	logger       *slog.Logger
	recorder     Recorder
}

// ExtractorOption customizes an LLMExtractor.
type ExtractorOption func(*LLMExtractor)

func WithModel(model string) ExtractorOption {
	return func(e *LLMExtractor) { e.model = model }
}

func WithTimeout(d time.Duration) ExtractorOption {
	return func(e *LLMExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) ExtractorOption {
	return func(e *LLMExtractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithRecorder(r Recorder) ExtractorOption {
	return func(e *LLMExtractor) { e.recorder = r }
}

func WithBusinessName(name string) ExtractorOption {
	return func(e *LLMExtractor) { e.businessName = name }
}

func NewLLMExtractor(client LLMClient, cat *catalog.Catalog, opts ...ExtractorOption) *LLMExtractor {
	if client == nil {
		panic("nlu: llm client cannot be nil")
	}
	if cat == nil {
		cat = catalog.Default()
	}
	e := &LLMExtractor{
		client:       client,
		catalog:      cat,
		businessName: "Caballeros",
		timeout:      8 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract asks the model for a structured reading of text. The gate is not
// applied here so callers can inspect weak readings; use Gate.Check.
func (e *LLMExtractor) Extract(ctx context.Context, text string, nctx Context) (*Extraction, error) {
	provider := providerName(e.client)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("nlu: empty utterance")
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if nctx.Now.IsZero() {
		nctx.Now = time.Now()
	}
	resp, err := e.client.Complete(callCtx, LLMRequest{
		Model:        e.model,
		Instructions: buildSystemPrompt(e.businessName, e.catalog, nctx),
		Prompt:       buildUserPrompt(text),
		MaxTokens:    512,
		Temperature:  0.1,
	})
	if err != nil {
		e.record(provider, "error")
		e.logger.Warn("nlu extraction failed", "provider", provider, "state", nctx.State, "error", err)
		return nil, fmt.Errorf("nlu: complete: %w", err)
	}

	x, err := ParseExtraction(resp.Text)
	if err != nil {
		e.record(provider, "invalid")
		e.logger.Warn("nlu response unparseable", "provider", provider, "error", err)
		return nil, err
	}
	e.record(provider, "ok")
	e.logger.Debug("nlu extraction", "provider", provider, "intent", x.Intent, "confidence", x.Confidence)
	return x, nil
}

func (e *LLMExtractor) record(provider, result string) {
	if e.recorder != nil {
		e.recorder.ObserveNLU(provider, result)
	}
}

var jsonObjectRE = regexp.MustCompile(`(?s)\{.*\}`)

// ParseExtraction pulls the first-to-last brace span out of a model reply
// and decodes it. Null fields decode to zero values.
func ParseExtraction(raw string) (*Extraction, error) {
	match := jsonObjectRE.FindString(raw)
	if match == "" {
		return nil, ErrNoJSON
	}
	var x Extraction
	if err := json.Unmarshal([]byte(match), &x); err != nil {
		return nil, fmt.Errorf("nlu: decode extraction: %w", err)
	}
	x.Intent = Intent(strings.ToLower(strings.TrimSpace(string(x.Intent))))
	x.ScheduleClass = strings.ToLower(strings.TrimSpace(x.ScheduleClass))
	x.Staff = strings.TrimSpace(x.Staff)
	x.Service = strings.TrimSpace(x.Service)
	x.Date = strings.TrimSpace(x.Date)
	x.Time = strings.TrimSpace(x.Time)
	return &x, nil
}

// Disabled is the Extractor used when no provider is configured.
type Disabled struct{}

func (Disabled) Extract(context.Context, string, Context) (*Extraction, error) {
	return nil, ErrUnavailable
}
