package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mnemolabs/mnemo/internal/domain"
)

type HTTPClient struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
}

func NewHTTPClient(url string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		url:        url,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type adviseResponse struct {
	Category    string  `json:"category"`
	Policy      string  `json:"policy"`
	Probability float64 `json:"probability"`
	Error       *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Advise posts the feature vector to the model endpoint with a bounded
// timeout. Any failure is surfaced to the caller, which discards the
// advisory tier and proceeds deterministically.
func (c *HTTPClient) Advise(ctx context.Context, f domain.AdvisoryFeatures) (*domain.AdvisoryVerdict, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal advise request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create advise request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("advise request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read advise response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("advisory API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result adviseResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal advise response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("advisory API error: %s", result.Error.Message)
	}
	if !domain.ValidConflictType(result.Category) {
		return nil, fmt.Errorf("advisory API returned unknown category %q", result.Category)
	}

	return &domain.AdvisoryVerdict{
		Category:    domain.ConflictType(result.Category),
		Policy:      domain.PolicyAction(result.Policy),
		Probability: result.Probability,
	}, nil
}
