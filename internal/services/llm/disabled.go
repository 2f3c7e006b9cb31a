package llm

import (
	"context"

	"github.com/ternarybob/secsignal/internal/interfaces"
)

// DisabledService stands in for a provider that is not configured. It lets
// stages be listed without credentials; every Chat returns the configuration error.
type DisabledService struct {
	model string
	err   error
}

// NewDisabledService creates a placeholder for model that fails with err
func NewDisabledService(model string, err error) *DisabledService {
	return &DisabledService{model: model, err: err}
}

func (s *DisabledService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return "", s.err
}

func (s *DisabledService) Model() string {
	return s.model + " (not configured)"
}

func (s *DisabledService) Close() error {
	return nil
}
