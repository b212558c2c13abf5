// Package advisory wraps the optional learned conflict/policy model. The
// model is suggestions-only: its verdicts are logged beside the
// deterministic path and never change engine behavior on their own.
package advisory

import (
	"fmt"
	"time"

	"github.com/mnemolabs/mnemo/internal/domain"
)

// Provider constants
const (
	ProviderHTTP = "http"
	ProviderNoop = "noop"
	ProviderMock = "mock"
)

// NewClient creates an advisory client based on the provider name.
// "noop" is the safe default: the model is simply absent and the engine
// runs its pure deterministic policy.
func NewClient(provider, url string, timeout time.Duration) (domain.AdvisoryClient, error) {
	switch provider {
	case ProviderHTTP:
		if url == "" {
			return nil, fmt.Errorf("ADVISORY_URL is required for http advisory provider")
		}
		return NewHTTPClient(url, timeout), nil

	case ProviderNoop:
		return NewNoopClient(), nil

	case ProviderMock:
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("unknown advisory provider: %s (valid options: http, noop, mock)", provider)
	}
}
