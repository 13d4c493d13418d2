package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client answers questions via the Gemini generateContent API.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// Config configures the Gemini generation client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

// NewClient creates a generation client from the environment-held API key.
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
		cfg.Model = "gemini-2.5-flash"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  key,
		model:   cfg.Model,
		client:  &http.Client{Timeout: t},
	}, nil
}

type chatPart struct {
	Text string `json:"text"`
}

type chatContent struct {
	Parts []chatPart `json:"parts"`
	Role  string     `json:"role,omitempty"`
}

type chatRequest struct {
	Contents []chatContent `json:"contents"`
}

type chatResponse struct {
	Candidates []struct {
		Content chatContent `json:"content"`
	} `json:"candidates"`
}

// Generate composes a retrieval prompt from the context chunks and the
// question and returns the model's answer verbatim.
func (c *Client) Generate(ctx context.Context, question string, contextChunks []string) (string, error) {
	payload := chatRequest{
		Contents: []chatContent{{
			Parts: []chatPart{{Text: buildPrompt(question, contextChunks)}},
			Role:  "user",
		}},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini generate status %d: %s", res.StatusCode, string(body))
	}
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode gemini answer: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func buildPrompt(question string, contextChunks []string) string {
	var b strings.Builder
	b.WriteString("Use the following pieces of context to answer the question at the end. ")
	b.WriteString("If you don't know the answer, just say that you don't know, don't try to make up an answer.\n\n")
	for _, chunk := range contextChunks {
		b.WriteString(chunk)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\nHelpful Answer:")
	return b.String()
}
