package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Dimension of text-embedding-004 vectors, fixed by the model.
const embeddingDimension = 768

// Client embeds text via the Gemini embedContent API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries int
}

// Config configures the Gemini embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

// NewClient creates an embeddings client from the environment-held API key.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GOOGLE_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		client:     &http.Client{Timeout: t},
		maxRetries: 3,
	}, nil
}

// Dimension returns the fixed dimensionality of produced vectors.
func (c *Client) Dimension() int { return embeddingDimension }

type requestContentPart struct {
	Text string `json:"text"`
}

type requestContent struct {
	Parts []requestContentPart `json:"parts"`
}

type embedRequest struct {
	Model   string         `json:"model"`
	Content requestContent `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the embedding vector for the given text, retrying
// rate-limit and server errors with linear backoff.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := embedRequest{
		Model:   "models/" + c.model,
		Content: requestContent{Parts: []requestContentPart{{Text: text}}},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:embedContent", c.baseURL, c.model)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-goog-api-key", c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		res, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
			lastErr = fmt.Errorf("gemini embed status %d: %s", res.StatusCode, string(body))
			continue
		}
		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("gemini embed status %d: %s", res.StatusCode, string(body))
		}
		var parsed embedResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("decode gemini embedding: %w", err)
		}
		if len(parsed.Embedding.Values) != embeddingDimension {
			return nil, fmt.Errorf("gemini embedding dimension %d, want %d",
				len(parsed.Embedding.Values), embeddingDimension)
		}
		return parsed.Embedding.Values, nil
	}
	return nil, fmt.Errorf("gemini embed failed after %d attempts: %w", c.maxRetries+1, lastErr)
}
