// Package assistant is the thin conversation-loop adapter: it takes a
// user's utterance (already transcribed to text by the voice pipeline),
// enriches the prompt with short-term context and relevant long-term
// memories, calls Claude, and records the exchange back into the memory
// system. Speech capture, playback, and prompt engineering beyond this
// assembly stay outside the module.
package assistant

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/mnemohq/mnemo/memory"
)

// MemoryService is the slice of the memory System the loop needs.
type MemoryService interface {
	AddInteraction(ctx context.Context, userID, userMessage, assistantResponse string, metadata map[string]string) error
	Search(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error)
	GetContext(ctx context.Context, userID string, limit int) ([]memory.Interaction, error)
}

// Options configures the loop.
type Options struct {
	Model        anthropic.Model
	MaxTokens    int64
	SystemPrompt string

	// ContextTurns is how many recent exchanges go into the prompt.
	ContextTurns int

	// RecallLimit is how many long-term memories are retrieved per turn.
	RecallLimit int
}

// Loop drives one conversation against Claude with memory enrichment.
type Loop struct {
	client *anthropic.Client
	memory MemoryService
	opts   Options
}

// New creates a conversation loop.
func New(client *anthropic.Client, mem MemoryService, optFns ...func(*Options)) *Loop {
	opts := Options{
		Model:        anthropic.ModelClaudeSonnet4_20250514,
		MaxTokens:    1024,
		SystemPrompt: defaultSystemPrompt,
		ContextTurns: 10,
		RecallLimit:  5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Loop{client: client, memory: mem, opts: opts}
}

// Respond handles one user utterance and returns the assistant's reply.
// Memory failures degrade: retrieval errors drop the enrichment, and the
// post-turn record is fire-and-forget with errors logged, so a memory
// outage never silences the assistant.
func (l *Loop) Respond(ctx context.Context, userID, userText string) (string, error) {
	system := l.opts.SystemPrompt
	if recalled := l.recall(ctx, userText); recalled != "" {
		system += "\n\n" + recalled
	}

	messages := l.historyMessages(ctx, userID)
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(userText)))

	resp, err := l.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     l.opts.Model,
		MaxTokens: l.opts.MaxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	reply := sb.String()

	if err := l.memory.AddInteraction(ctx, userID, userText, reply, nil); err != nil {
		log.Printf("[ASSISTANT] recording interaction failed for user %s: %v", userID, err)
	}
	return reply, nil
}

// recall formats relevant long-term memories as a system prompt block.
func (l *Loop) recall(ctx context.Context, query string) string {
	results, err := l.memory.Search(ctx, query, memory.SearchOptions{Limit: l.opts.RecallLimit})
	if err != nil {
		log.Printf("[ASSISTANT] memory recall failed: %v", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Relevant things you remember about this user:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, r.Memory.Category, r.Memory.Content)
	}
	return sb.String()
}

// historyMessages converts recent short-term context into alternating
// user/assistant messages, oldest first.
func (l *Loop) historyMessages(ctx context.Context, userID string) []anthropic.MessageParam {
	turns, err := l.memory.GetContext(ctx, userID, l.opts.ContextTurns)
	if err != nil {
		log.Printf("[ASSISTANT] loading context failed for user %s: %v", userID, err)
		return nil
	}

	// GetContext returns most recent first; the API wants oldest first.
	messages := make([]anthropic.MessageParam, 0, len(turns)*2)
	for i := len(turns) - 1; i >= 0; i-- {
		turn := turns[i]
		messages = append(messages,
			anthropic.NewUserMessage(anthropic.NewTextBlock(turn.UserMessage)),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.AssistantResponse)),
		)
	}
	return messages
}

const defaultSystemPrompt = `You are a helpful personal voice assistant with long-term memory.

You remember important things users tell you across conversations: their
preferences, personal details, health information, and explicit requests to
remember something. When your memories are relevant, use them naturally;
do not recite them back verbatim.

Keep responses concise and conversational, suitable for being read aloud.`
