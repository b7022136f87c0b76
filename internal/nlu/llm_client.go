package nlu

import "context"

// LLMRequest is one extraction call: fixed instructions plus the customer's
// utterance. The dialogue never replays history to the model. A negative
// Temperature keeps the provider default.
type LLMRequest struct {
	Model        string
	Instructions string
	Prompt       string
	MaxTokens    int32
	Temperature  float32
}

type LLMResponse struct {
	Text         string
	StopReason   string
	InputTokens  int32
	OutputTokens int32
}

// LLMClient is the completion capability every model provider implements.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
