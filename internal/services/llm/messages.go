// Package llm wraps the hosted chat models used for scoring and decisions.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/interfaces"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// splitSystem validates a conversation and separates the first system message
// from the user/assistant turns.
func splitSystem(messages []interfaces.Message) ([]interfaces.Message, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == RoleUser {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	turns := make([]interfaces.Message, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}
		if msg.Role != RoleAssistant {
			msg.Role = RoleUser
		}
		turns = append(turns, msg)
	}

	return turns, systemText, nil
}

// transportError wraps a provider call failure as transient unless the caller cancelled
func transportError(ctx context.Context, provider string, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return err
	}
	return common.Transient(fmt.Errorf("%s API call failed: %w", provider, err))
}
