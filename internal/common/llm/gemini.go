// Package llm talks to the Gemini generative language API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"funnel-coach/internal/common/config"
	commonhttp "funnel-coach/internal/common/http"
)

// ErrAuthentication marks a rejected API credential. It is never retried.
var ErrAuthentication = errors.New("gemini authentication failed")

// Generation is the text the model produced for one prompt.
type Generation struct {
	Text string
	// BlockReason is set when the API refused the prompt.
	BlockReason  string
	BlockMessage string
}

// Blocked reports whether the prompt was refused by a safety filter.
func (g *Generation) Blocked() bool {
	return g != nil && g.BlockReason != ""
}

// Generator produces one generation per prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Generation, error)
	Model() string
}

// GeminiClient is the genai backed Generator.
type GeminiClient struct {
	client *genai.Client
	model  string
	gen    *genai.GenerateContentConfig
}

// NewGeminiClient connects to the Gemini API. httpClient may be nil.
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig, httpClient *commonhttp.Client) (*GeminiClient, error) {
	if !cfg.Configured() {
		return nil, errors.New("gemini api key is not set")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if httpClient != nil {
		cc.HTTPClient = httpClient.Standard()
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  cfg.Model,
		gen: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(cfg.Temperature)),
			TopP:            genai.Ptr(float32(cfg.TopP)),
			MaxOutputTokens: int32(cfg.MaxOutputTokens), // #nosec G115 -- validated config value
		},
	}, nil
}

func (c *GeminiClient) Model() string {
	return c.model
}

// Generate sends prompt as a single user turn. Authentication failures wrap
// ErrAuthentication.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (*Generation, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, c.gen)
	if err != nil {
		if IsAuthError(err) {
			return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
		}
		return nil, fmt.Errorf("generate content: %w", err)
	}

	return toGeneration(resp), nil
}

func toGeneration(resp *genai.GenerateContentResponse) *Generation {
	out := &Generation{}
	if resp == nil {
		return out
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		out.BlockReason = string(fb.BlockReason)
		out.BlockMessage = fb.BlockReasonMessage
		if out.BlockMessage == "" {
			out.BlockMessage = out.BlockReason
		}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	out.Text = b.String()
	return out
}

// IsAuthError reports whether err came from a rejected API key.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthentication) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && isAuthStatus(apiErr) {
		return true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && isAuthStatus(*apiErrPtr) {
		return true
	}

	return strings.Contains(err.Error(), "API key not valid")
}

func isAuthStatus(e genai.APIError) bool {
	return e.Code == http.StatusUnauthorized ||
		e.Status == "UNAUTHENTICATED" ||
		strings.Contains(e.Message, "API key not valid")
}
