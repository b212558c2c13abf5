package advisory

import (
	"context"

	"github.com/mnemolabs/mnemo/internal/domain"
)

// MockClient is a configurable advisory client for testing.
// Set the response fields to control what Advise returns.
type MockClient struct {
	Verdict *domain.AdvisoryVerdict
	Err     error

	// Call tracking for assertions
	Calls []domain.AdvisoryFeatures
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Advise(_ context.Context, f domain.AdvisoryFeatures) (*domain.AdvisoryVerdict, error) {
	c.Calls = append(c.Calls, f)
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Verdict, nil
}
