package nlu

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestBedrockLLMClientComplete(t *testing.T) {
	api := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: ` {"intent":"greeting"} `}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(4), TotalTokens: aws.Int32(14)},
	}}
	client := NewBedrockLLMClient(api, "anthropic.claude-3-haiku")

	resp, err := client.Complete(context.Background(), LLMRequest{
		Instructions: "sistema",
		Prompt:       " hola ",
		Temperature:  -1,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"greeting"}`, resp.Text)
	assert.Equal(t, int32(10), resp.InputTokens)
	assert.Equal(t, int32(4), resp.OutputTokens)
	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(api.input.ModelId))
	assert.Len(t, api.input.System, 1)
	require.Len(t, api.input.Messages, 1)
	assert.Equal(t, brtypes.ConversationRoleUser, api.input.Messages[0].Role)
	assert.Nil(t, api.input.InferenceConfig)
}

func TestBedrockLLMClientErrors(t *testing.T) {
	_, err := NewBedrockLLMClient(&fakeConverse{}, "").Complete(context.Background(), LLMRequest{})
	require.Error(t, err)

	api := &fakeConverse{err: errors.New("denied")}
	_, err = NewBedrockLLMClient(api, "m").Complete(context.Background(), LLMRequest{Prompt: "x"})
	require.Error(t, err)

	_, err = NewBedrockLLMClient(&fakeConverse{}, "m").Complete(context.Background(), LLMRequest{Prompt: "  "})
	require.Error(t, err)

	assert.Panics(t, func() { NewBedrockLLMClient(nil, "m") })
}

func TestFallbackLLMClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	primary := &stubLLM{name: "gemini", err: errors.New("quota")}
	fallback := &stubLLM{name: "bedrock", text: "ok"}

	client := NewFallbackLLMClient(primary, fallback, logger)
	resp, err := client.Complete(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, "gemini", client.Name())
	assert.Equal(t, 1, fallback.calls)

	fallback.err = errors.New("down")
	_, err = client.Complete(context.Background(), LLMRequest{})
	assert.EqualError(t, err, "down")

	solo := NewFallbackLLMClient(primary, nil, logger)
	_, err = solo.Complete(context.Background(), LLMRequest{})
	assert.EqualError(t, err, "quota")
}
