package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// LLMService defines chat completion against a hosted language model.
// Implementations wrap OpenRouter, DeepSeek, Anthropic Claude and Google Gemini.
type LLMService interface {
	// Chat generates a completion response based on the conversation history.
	// The messages slice should contain the full conversation context including
	// system prompts and user messages.
	//
	// Transport and timeout failures are reported wrapped in common.ErrTransientIO.
	Chat(ctx context.Context, messages []Message) (string, error)

	// Model returns the model identifier used for completions
	Model() string

	// Close releases resources and performs cleanup operations.
	Close() error
}
