package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agripal/internal/types"
)

// DefaultGeminiBaseURL is the hosted generative-language endpoint.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiConfig holds the configuration for creating a GeminiClient.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string // override for testing; DefaultGeminiBaseURL if empty
	Timeout time.Duration

	Base *BaseClient // resilience wrapper; built from defaults if nil
}

// GeminiClient calls the generateContent endpoint of the hosted Gemini API.
// It implements types.TextGenerator and is safe for concurrent use.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	base    *BaseClient
}

// NewGeminiClient creates a GeminiClient.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	base := cfg.Base
	if base == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		base = NewBaseClient(
			&http.Client{Timeout: timeout},
			"gemini",
			DefaultRetryPolicy(),
			"agripal/1.0",
		)
	}
	return &GeminiClient{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(baseURL, "/"),
		base:    base,
	}
}

// Wire types for the generateContent request/response.
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends the prompt and returns the first candidate's text.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode generation request", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build generation request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.base.Do(req)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamGeneration, "text generation request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamGeneration, "failed to read generation response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", types.NewAppError(
			types.ErrCodeUpstreamGeneration,
			fmt.Sprintf("generation endpoint returned %d", resp.StatusCode),
			fmt.Errorf("%s", strings.TrimSpace(string(body))),
		)
	}

	var decoded geminiResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamGeneration, "failed to decode generation response", err)
	}
	if decoded.Error != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamGeneration,
			fmt.Sprintf("generation endpoint error: %s", decoded.Error.Message),
			nil,
		)
	}

	text := firstCandidateText(decoded)
	if text == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamGeneration, "generation response contained no text", nil)
	}
	return text, nil
}

// firstCandidateText concatenates the parts of the first candidate.
func firstCandidateText(r geminiResponse) string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String())
}

// Compile-time interface compliance check.
var _ types.TextGenerator = (*GeminiClient)(nil)
