package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const GeminiName = "gemini"

// GeminiConfig configures the Gemini-backed oracle client.
type GeminiConfig struct {
	APIKey          string
	Model           string        // default gemini-2.5-flash
	Timeout         time.Duration // per-call timeout, default 60s
	Temperature     float32       // default 0.1, low for consistent tagging
	MaxOutputTokens int32         // default 2048
}

// Gemini implements Client over the Gemini generateContent API.
type Gemini struct {
	client *genai.Client
	cfg    GeminiConfig
}

// NewGemini creates a Gemini oracle client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 2048
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Gemini{client: client, cfg: cfg}, nil
}

// Name returns the client identifier.
func (g *Gemini) Name() string { return GeminiName }

// Complete sends one prompt with the configured per-call timeout.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(callCtx, g.cfg.Model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(g.cfg.Temperature),
			MaxOutputTokens: g.cfg.MaxOutputTokens,
		},
	)
	if err != nil {
		return "", g.classify(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", NewError(KindEmpty, GeminiName, fmt.Errorf("no text in response"))
	}
	return text, nil
}

// classify maps provider errors onto the oracle error kinds.
func (g *Gemini) classify(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, GeminiName, err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return NewError(KindQuotaExceeded, GeminiName, err)
	}
	return NewError(KindTransport, GeminiName, err)
}

var _ Client = (*Gemini)(nil)
