package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/uirun/uirun/internal/domain"
)

const systemPrompt = `You convert one task into a UI automation plan.

Each step carries exactly one instruction:
  CLICK_TEXT: <visible text>
  CLICK_ID: <element id>
  CLICK_CSS: <css selector>
  TYPE_ID: <element id>=<text to type>
  WAIT_TEXT: <visible text>
  WAIT_URL_CONTAINS: <url fragment>
  WAIT_MS: <milliseconds>
  ASSERT_TEXT: <visible text>
  SCREENSHOT: <label>

Respond with JSON only, no prose:
{"starting_url": "https://...", "steps": [{"id": "S1", "type": "ui", "instruction": "CLICK_TEXT: Login", "requires_approval": false, "evidence": "short reason"}]}

Use type "write" for side-effecting work outside the browser, and set
requires_approval to true for sensitive actions.`

// HTTPPlanner asks an OpenAI-compatible chat endpoint for a plan.
type HTTPPlanner struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewHTTPPlanner creates a planner client for the given endpoint.
func NewHTTPPlanner(baseURL, apiKey, model string, timeout time.Duration) *HTTPPlanner {
	return &HTTPPlanner{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ChatRequest is the chat completion request wire format.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// ChatMessage is one chat turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the chat completion response wire format.
type ChatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
}

// ChatChoice is one completion choice.
type ChatChoice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

// ErrorResponse is the API error envelope.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// APIError carries the error details.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// PlanTask sends the task to the model and decodes the returned plan.
func (p *HTTPPlanner) PlanTask(ctx context.Context, task string, snippets []domain.Snippet) (*domain.PlanSpec, error) {
	temperature := 0.2
	req := &ChatRequest{
		Model:       p.model,
		Temperature: &temperature,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(task, snippets)},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
			return nil, fmt.Errorf("planner API error [%d]: %s (type: %s)", resp.StatusCode, errResp.Error.Message, errResp.Error.Type)
		}
		return nil, fmt.Errorf("planner API error [%d]: %s", resp.StatusCode, string(respBody))
	}

	var result ChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message == nil {
		return nil, fmt.Errorf("planner reply had no choices")
	}

	return ParsePlanJSON(result.Choices[0].Message.Content)
}

func userPrompt(task string, snippets []domain.Snippet) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(task)
	if len(snippets) > 0 {
		b.WriteString("\n\nBrand context:\n")
		for _, s := range snippets {
			fmt.Fprintf(&b, "- %s: %s\n", s.Title, s.Content)
		}
	}
	return b.String()
}

// ParsePlanJSON extracts the plan object from a model reply. Replies
// wrapped in code fences or surrounded by prose are tolerated.
func ParsePlanJSON(content string) (*domain.PlanSpec, error) {
	raw := strings.TrimSpace(content)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if i := strings.LastIndex(raw, "```"); i >= 0 {
			raw = raw[:i]
		}
		raw = strings.TrimSpace(raw)
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in planner reply")
	}

	var plan domain.PlanSpec
	if err := json.Unmarshal([]byte(raw[start:end+1]), &plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("planner reply contained no steps")
	}
	return &plan, nil
}
