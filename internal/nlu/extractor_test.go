package nlu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/barber-booking-bot/internal/catalog"
)

type stubLLM struct {
	name  string
	text  string
	err   error
	calls int
	last  LLMRequest
	wait  bool
}

func (s *stubLLM) Name() string { return s.name }

func (s *stubLLM) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.calls++
	s.last = req
	if s.wait {
		<-ctx.Done()
		return LLMResponse{}, ctx.Err()
	}
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return LLMResponse{Text: s.text}, nil
}

type recorder struct {
	results []string
}

func (r *recorder) ObserveNLU(provider, result string) {
	r.results = append(r.results, provider+":"+result)
}

func TestParseExtraction(t *testing.T) {
	raw := "Claro, aquí está:\n```json\n{\"intent\":\"Book_Appointment\",\"barber\":\"Mauricio\",\"service\":null,\"date\":\"16/12/2025\",\"time\":\"15:00\",\"ambiguous_date\":false,\"use_current_phone\":null,\"scheduleType\":null,\"confidence\":0.92,\"needs_info\":[\"service\"]}\n```"
	x, err := ParseExtraction(raw)
	require.NoError(t, err)
	assert.Equal(t, IntentBookAppointment, x.Intent)
	assert.Equal(t, "Mauricio", x.Staff)
	assert.Empty(t, x.Service)
	assert.Equal(t, "16/12/2025", x.Date)
	assert.Equal(t, "15:00", x.Time)
	assert.Nil(t, x.UseCurrentPhone)
	assert.InDelta(t, 0.92, x.Confidence, 1e-9)
	assert.Equal(t, []string{"service"}, x.NeedsInfo)
}

func TestParseExtractionErrors(t *testing.T) {
	_, err := ParseExtraction("no json here")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseExtraction("{not json}")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoJSON))
}

func TestGate(t *testing.T) {
	g := DefaultGate()
	tests := []struct {
		name string
		x    *Extraction
		ok   bool
	}{
		{"nil", nil, false},
		{"reliable", &Extraction{Intent: IntentBookAppointment, Confidence: 0.9}, true},
		{"threshold is exclusive", &Extraction{Intent: IntentBookAppointment, Confidence: 0.7}, false},
		{"other intent", &Extraction{Intent: IntentOther, Confidence: 0.99}, false},
		{"missing intent", &Extraction{Confidence: 0.99}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Check(tt.x)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrLowConfidence)
			}
		})
	}
}

func TestLLMExtractorBuildsContextualPrompt(t *testing.T) {
	llm := &stubLLM{name: "gemini", text: `{"intent":"book_appointment","time":"10:00","confidence":0.9}`}
	rec := &recorder{}
	ex := NewLLMExtractor(llm, catalog.Default(), WithRecorder(rec), WithBusinessName("Barbería Central"))

	now := time.Date(2025, time.December, 15, 9, 0, 0, 0, time.UTC)
	x, err := ex.Extract(context.Background(), "a las 10", Context{
		State:   "SELECTING_TIME",
		Staff:   "Stiven",
		Service: "Corte de cabello",
		Date:    "16/12/2025",
		Now:     now,
	})
	require.NoError(t, err)
	assert.Equal(t, "10:00", x.Time)
	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, []string{"gemini:ok"}, rec.results)

	system := llm.last.Instructions
	assert.Contains(t, system, "Barbería Central")
	assert.Contains(t, system, "lunes 15/12/2025")
	assert.Contains(t, system, "Barbero: Stiven")
	assert.Contains(t, system, "Fecha: 16/12/2025")
	assert.Contains(t, system, "corte con perfilado de barba")
	assert.Contains(t, llm.last.Prompt, "a las 10")
}

func TestLLMExtractorErrors(t *testing.T) {
	rec := &recorder{}
	failing := NewLLMExtractor(&stubLLM{name: "bedrock", err: errors.New("throttled")}, nil, WithRecorder(rec))
	_, err := failing.Extract(context.Background(), "hola", Context{})
	require.Error(t, err)

	garbage := NewLLMExtractor(&stubLLM{name: "bedrock", text: "lo siento"}, nil, WithRecorder(rec))
	_, err = garbage.Extract(context.Background(), "hola", Context{})
	assert.ErrorIs(t, err, ErrNoJSON)
	assert.Equal(t, []string{"bedrock:error", "bedrock:invalid"}, rec.results)

	_, err = garbage.Extract(context.Background(), "   ", Context{})
	assert.Error(t, err)
}

func TestLLMExtractorTimeout(t *testing.T) {
	llm := &stubLLM{name: "gemini", wait: true}
	ex := NewLLMExtractor(llm, nil, WithTimeout(20*time.Millisecond))
	start := time.Now()
	_, err := ex.Extract(context.Background(), "mañana", Context{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDisabledExtractor(t *testing.T) {
	_, err := Disabled{}.Extract(context.Background(), "hola", Context{})
	assert.ErrorIs(t, err, ErrUnavailable)
}
