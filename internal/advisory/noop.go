package advisory

import (
	"context"

	"github.com/mnemolabs/mnemo/internal/domain"
)

// NoopClient is the absent advisory model. It abstains on every call;
// the engine degrades to the pure deterministic policy with no behavior
// change other than missing advisory metadata.
type NoopClient struct{}

func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

func (c *NoopClient) Advise(_ context.Context, _ domain.AdvisoryFeatures) (*domain.AdvisoryVerdict, error) {
	return nil, nil
}
