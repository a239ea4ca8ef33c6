// Package enrich turns raw conversation transcripts into structured
// emergency analyses. The external inference call is wrapped behind an
// Analyzer; the Service guarantees callers always receive a usable
// analysis, falling back to local heuristics when inference fails.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/model"
)

// Analyzer extracts a structured analysis from a conversation transcript.
// Implementations may fail; totality is the Service's job, not theirs.
type Analyzer interface {
	Analyze(ctx context.Context, turns []model.Turn, hints model.EmergencyAnalysis) (model.EmergencyAnalysis, error)
}

const systemPrompt = `You are an emergency dispatch analyst for a large public gathering.
Given a conversation transcript, respond with ONLY a JSON object, no prose:
{"location": string, "emergency_type": one of [lost_child, lost_adult, medical, fire, crowd, security, water, general_emergency],
"priority": one of [critical, moderate, low], "summary": string, "title": string,
"landmarks": [string], "person_description": string}
Use "location_unclear" when the location cannot be determined.`

// GroqAnalyzer calls an OpenAI-compatible chat-completions endpoint.
type GroqAnalyzer struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewGroqAnalyzer creates an analyzer against the given chat-completions
// endpoint. The client timeout bounds every call.
func NewGroqAnalyzer(url, apiKey, chatModel string, timeout time.Duration) *GroqAnalyzer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &GroqAnalyzer{
		url:        url,
		apiKey:     apiKey,
		model:      chatModel,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze sends the transcript for inference and decodes the structured
// reply. Any transport, status, or decode failure is returned as an error;
// the Service above decides what to do with it.
func (g *GroqAnalyzer) Analyze(ctx context.Context, turns []model.Turn, hints model.EmergencyAnalysis) (model.EmergencyAnalysis, error) {
	msgs := make([]chatMessage, 0, len(turns)+2)
	msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	if hints.Location != "" || hints.EmergencyType != "" {
		hint, _ := json.Marshal(hints)
		msgs = append(msgs, chatMessage{Role: "system", Content: "Partial analysis from the producer: " + string(hint)})
	}
	for _, t := range turns {
		role := t.Role
		if role != "user" && role != "assistant" {
			role = "user"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: t.Content})
	}

	reqBody, err := json.Marshal(chatCompletionRequest{
		Model:       g.model,
		Messages:    msgs,
		Temperature: 0.1,
		MaxTokens:   512,
	})
	if err != nil {
		return model.EmergencyAnalysis{}, fmt.Errorf("groq: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(reqBody))
	if err != nil {
		return model.EmergencyAnalysis{}, fmt.Errorf("groq: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return model.EmergencyAnalysis{}, fmt.Errorf("groq: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return model.EmergencyAnalysis{}, fmt.Errorf("groq: status %d: %s", resp.StatusCode, string(body))
	}

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return model.EmergencyAnalysis{}, fmt.Errorf("groq: decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return model.EmergencyAnalysis{}, fmt.Errorf("groq: empty choices")
	}

	analysis, err := decodeAnalysis(result.Choices[0].Message.Content)
	if err != nil {
		return model.EmergencyAnalysis{}, err
	}
	return analysis, nil
}

// decodeAnalysis parses the model's reply into an analysis. Code-fence
// wrapping is stripped before decoding; anything that still fails to decode
// is an error, not a best-effort string repair.
func decodeAnalysis(content string) (model.EmergencyAnalysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var a model.EmergencyAnalysis
	if err := json.Unmarshal([]byte(content), &a); err != nil {
		return model.EmergencyAnalysis{}, fmt.Errorf("groq: decode analysis: %w", err)
	}
	a.Normalize()
	return a, nil
}
