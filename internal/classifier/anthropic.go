package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const systemPrompt = "You are the support assistant of a cargo delivery company. " +
	"Answer briefly and only about orders, delivery, tracking, addresses, refunds and tariffs. " +
	"If you are not sure of the answer, reply with an empty message."

// Messager is the slice of the Anthropic client the generator calls.
type Messager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicGenerator answers questions with a Claude model.
type AnthropicGenerator struct {
	messages  Messager
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
}

const defaultGenerateTimeout = 20 * time.Second

// NewAnthropicGenerator creates a generator using apiKey. An empty model
// selects the default. Each call is bounded by timeout.
func NewAnthropicGenerator(apiKey, model string, timeout time.Duration) *AnthropicGenerator {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	g := newAnthropicGenerator(&c.Messages, model)
	if timeout > 0 {
		g.timeout = timeout
	}
	return g
}

func newAnthropicGenerator(m Messager, model string) *AnthropicGenerator {
	g := &AnthropicGenerator{
		messages:  m,
		model:     anthropic.ModelClaudeSonnet4_20250514,
		maxTokens: 512,
		timeout:   defaultGenerateTimeout,
	}
	if model != "" {
		g.model = anthropic.Model(model)
	}
	return g
}

// Generate returns the model's answer to message.
func (g *AnthropicGenerator) Generate(ctx context.Context, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.messages.New(ctx, anthropic.MessageNewParams{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(message))},
		Temperature: anthropic.Float(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}
