// Package classifier decides whether the bot can answer a user message or
// must hand it to a human operator.
package classifier

import (
	"context"
	"log/slog"
	"strings"
)

// Replies used when a message is handed to an operator.
const (
	HandoffReply  = "🔄 Please wait, I'm passing your request to an operator.\n\nAn operator will reply shortly."
	NoAnswerReply = "Sorry, I couldn't find a good answer to your question. Let me pass you to an operator for a detailed consultation."
	ErrorReply    = "Sorry, something went wrong. Passing you to an operator..."
)

// Result is the outcome of classifying one message.
type Result struct {
	Reply         string
	NeedsOperator bool
}

// Classifier maps a user message to a reply or an operator hand-off.
type Classifier interface {
	Classify(ctx context.Context, userID int64, message string) (Result, error)
}

// Generator produces a free-form answer. An empty answer means "don't know".
type Generator interface {
	Generate(ctx context.Context, message string) (string, error)
}

// Chain answers from the FAQ first and then, for on-topic questions, from
// an optional Generator. Anything else goes to an operator.
type Chain struct {
	faq    *FAQ
	gen    Generator
	topics []string
}

// NewChain creates a Chain. gen may be nil, in which case unmatched messages
// are always handed off.
func NewChain(faq *FAQ, gen Generator) *Chain {
	return &Chain{faq: faq, gen: gen, topics: faq.Topics()}
}

// Classify never returns an error: generator failures degrade to a hand-off.
func (c *Chain) Classify(ctx context.Context, userID int64, message string) (Result, error) {
	if answer, ok := c.faq.Match(message); ok {
		return Result{Reply: answer}, nil
	}
	if c.gen == nil || !c.onTopic(message) {
		return Result{Reply: HandoffReply, NeedsOperator: true}, nil
	}

	answer, err := c.gen.Generate(ctx, message)
	if err != nil {
		slog.Warn("Generator failed, handing off", "user_id", userID, "error", err)
		return Result{Reply: ErrorReply, NeedsOperator: true}, nil
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Result{Reply: NoAnswerReply, NeedsOperator: true}, nil
	}
	return Result{Reply: answer}, nil
}

func (c *Chain) onTopic(message string) bool {
	if len(c.topics) == 0 {
		return true
	}
	lower := strings.ToLower(message)
	for _, t := range c.topics {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
