package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
)

const probabilityTolerance = 1e-3

// FinBERTClient talks to the FinBERT scoring sidecar over HTTP. It
// implements both domain.Scorer and domain.Tokenizer. Construct it once at
// service start; the sidecar keeps the model loaded across calls.
type FinBERTClient struct {
	baseURL string
	client  *http.Client
}

func NewFinBERTClient(baseURL string) *FinBERTClient {
	return &FinBERTClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type scoreRequest struct {
	Text string `json:"text"`
}

type scoreResponse struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

type tokenizeResponse struct {
	TokenCount int `json:"token_count"`
}

// Score returns the sentiment probability triple for one chunk. Transport
// failures and 5xx responses map to ErrScorerUnavailable so callers can
// retry with backoff.
func (c *FinBERTClient) Score(ctx context.Context, text string) (domain.Probabilities, error) {
	var resp scoreResponse
	if err := c.post(ctx, "/score", scoreRequest{Text: text}, &resp); err != nil {
		return domain.Probabilities{}, err
	}

	probs := domain.Probabilities{Positive: resp.Positive, Neutral: resp.Neutral, Negative: resp.Negative}
	sum := probs.Positive + probs.Neutral + probs.Negative
	if probs.Positive < 0 || probs.Neutral < 0 || probs.Negative < 0 || math.Abs(sum-1) > probabilityTolerance {
		return domain.Probabilities{}, fmt.Errorf("scorer returned invalid probabilities (sum=%f)", sum)
	}
	return probs, nil
}

// CountTokens returns the scorer-defined token count for text.
func (c *FinBERTClient) CountTokens(ctx context.Context, text string) (int, error) {
	var resp tokenizeResponse
	if err := c.post(ctx, "/tokenize", scoreRequest{Text: text}, &resp); err != nil {
		return 0, err
	}
	if resp.TokenCount < 0 {
		return 0, fmt.Errorf("scorer returned negative token count %d", resp.TokenCount)
	}
	return resp.TokenCount, nil
}

func (c *FinBERTClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrScorerUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: scorer returned %d", domain.ErrScorerUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scorer returned %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
