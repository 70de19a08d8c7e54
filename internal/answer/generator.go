package answer

import (
	"context"

	"github.com/travel-rag/backend/internal/llm"
	"github.com/travel-rag/backend/internal/session"
)

// LLMGenerator adapts the OpenAI chat client to the pipeline's Generator
// contract, replaying session turns as chat messages.
type LLMGenerator struct {
	client *llm.Client
}

func NewLLMGenerator(client *llm.Client) *LLMGenerator {
	return &LLMGenerator{client: client}
}

func (g *LLMGenerator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	history := make([]llm.Message, 0, len(req.History))
	for _, turn := range req.History {
		role := llm.RoleHuman
		if turn.Role == session.RoleAssistant {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: turn.Content})
	}

	return g.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: req.SystemPrompt,
		History:      history,
		UserPrompt:   req.Question,
	})
}
