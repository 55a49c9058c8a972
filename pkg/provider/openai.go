package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	openaiDim             = 1536
	defaultOpenAIEndpoint = "https://api.openai.com/v1/embeddings"
	defaultOpenAIModel    = "text-embedding-ada-002"
	defaultHTTPTimeout    = 30 * time.Second
	maxEmbedRetries       = 3
)

// OpenAIConfig configures the remote embedding backend.
type OpenAIConfig struct {
	APIKey   string
	Model    string        // defaults to text-embedding-ada-002
	Endpoint string        // defaults to the OpenAI embeddings endpoint
	Timeout  time.Duration // per-request timeout, defaults to 30s
	Dim      int           // defaults to 1536
}

// openaiProvider calls an OpenAI-compatible embeddings API. It carries no
// local model state; each Embed is one synchronous HTTP round trip, retried
// with capped exponential backoff on transient failures.
type openaiProvider struct {
	cfg         OpenAIConfig
	client      *http.Client
	initialized bool
}

// embeddingRequest is the request body for an OpenAI-compatible embedding API.
type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embeddingResponse is the response from an OpenAI-compatible embedding API.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewOpenAI creates the remote API backend. The credential is validated on
// Init, not here.
func NewOpenAI(cfg OpenAIConfig) Provider {
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultOpenAIEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.Dim <= 0 {
		cfg.Dim = openaiDim
	}
	return &openaiProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Init validates the credential. There is no remote handshake.
func (p *openaiProvider) Init(_ context.Context) error {
	if p.initialized {
		return nil
	}
	if p.cfg.APIKey == "" {
		return ErrMissingCredential
	}
	p.initialized = true
	return nil
}

// Embed performs one API call, retrying transient failures.
func (p *openaiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if !p.initialized {
		return nil, ErrNotInitialized
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	body, err := json.Marshal(embeddingRequest{Model: p.cfg.Model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("provider: marshal request: %w", err)
	}

	var vector []float32
	operation := func() error {
		vec, err := p.doRequest(ctx, body)
		if err != nil {
			return err
		}
		vector = vec
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxEmbedRetries),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return vector, nil
}

func (p *openaiProvider) doRequest(ctx context.Context, body []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("provider: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		// Network failures are retryable.
		return nil, fmt.Errorf("provider: embedding request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("provider: embedding API status %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("provider: read response: %w", err)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("provider: malformed response: %w", err))
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("provider: response contains no embedding"))
	}

	vec := parsed.Data[0].Embedding
	if len(vec) != p.cfg.Dim {
		return nil, backoff.Permanent(fmt.Errorf("provider: expected %d dimensions, got %d",
			p.cfg.Dim, len(vec)))
	}
	return vec, nil
}

// Dim returns the declared output dimension.
func (p *openaiProvider) Dim() int { return p.cfg.Dim }

// Variant returns the backend identifier.
func (p *openaiProvider) Variant() Variant { return VariantOpenAI }

// Close resets the initialized flag; the HTTP client owns no resources worth
// releasing beyond idle connections.
func (p *openaiProvider) Close() error {
	p.client.CloseIdleConnections()
	p.initialized = false
	return nil
}
