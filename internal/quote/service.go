package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wildplay/arcade/internal/errors"
)

const (
	defaultTimeout = 15 * time.Second
	maxTokens      = 80
	temperature    = 0.9

	systemPrompt = "You write short, uplifting one-sentence quotes spoken by wild animals. " +
		"Keep them under 25 words, no hashtags, no quotation marks."

	// fallbackQuote is returned when the upstream answers successfully but
	// with empty text.
	fallbackQuote = "Every wave is a chance to begin again."
)

type Config struct {
	// HTTPClient overrides the client used to reach the upstream,
	// mainly for tests.
	HTTPClient *http.Client
	// URL is the upstream chat-completions endpoint.
	URL    string
	APIKey string
	Model  string
	// Timeout bounds each upstream call; ignored when HTTPClient is set.
	Timeout time.Duration
}

// Service proxies quote generation to an upstream LLM provider.
type Service struct {
	client *http.Client
	url    string
	apiKey string
	model  string
}

func NewService(c Config) *Service {
	if c.HTTPClient == nil {
		if c.Timeout == 0 {
			c.Timeout = defaultTimeout
		}
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}

	return &Service{
		client: c.HTTPClient,
		url:    c.URL,
		apiKey: c.APIKey,
		model:  c.Model,
	}
}

type GenerateRequest struct {
	// Prompt is used verbatim when set; otherwise one is built from Animal
	// and Context.
	Prompt  string
	Animal  string
	Context string
}

type GenerateResponse struct {
	Quote string
}

type (
	chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	chatRequest struct {
		Model       string        `json:"model"`
		Messages    []chatMessage `json:"messages"`
		MaxTokens   int           `json:"max_tokens"`
		Temperature float64       `json:"temperature"`
	}

	chatResponse struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
)

// Generate asks the upstream for one quote. A request with neither a prompt
// nor an animal is rejected; upstream failures surface as internal errors.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		animal := strings.TrimSpace(req.Animal)
		if animal == "" {
			return nil, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("prompt or animal is required"))
		}
		prompt = buildPrompt(animal, strings.TrimSpace(req.Context))
	}

	text, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate quote: %w", err)
	}

	if text == "" {
		text = fallbackQuote
	}

	return &GenerateResponse{Quote: text}, nil
}

func buildPrompt(animal, context string) string {
	p := fmt.Sprintf("Write an inspirational quote from the perspective of a %s.", animal)
	if context != "" {
		p += fmt.Sprintf(" The player just %s.", context)
	}

	return p
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	hr.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		hr.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(hr)
	if err != nil {
		return "", fmt.Errorf("call upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("upstream status %d: %s", resp.StatusCode, b)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(cr.Choices) == 0 {
		return "", nil
	}

	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}
