package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pawpal/backend/internal/config"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionRequest struct {
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

type AIClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Returned when the provider answers successfully but with no content.
const completionFallback = "Sorry, I could not generate a response right now. Please try again."

type OpenAIChatClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOpenAIChatClient(cfg config.Config) *OpenAIChatClient {
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 60
	}
	return &OpenAIChatClient{
		apiKey:  strings.TrimSpace(cfg.OpenAIAPIKey),
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.OpenAIBaseURL), "/"),
		model:   strings.TrimSpace(cfg.OpenAIModel),
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

func (c *OpenAIChatClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("OPENAI_API_KEY is not configured")
	}
	if c.baseURL == "" {
		return "", errors.New("OPENAI_BASE_URL is not configured")
	}
	if c.model == "" {
		return "", errors.New("OPENAI_MODEL is not configured")
	}
	if len(req.Messages) == 0 {
		return "", errors.New("completion request has no messages")
	}

	payload := map[string]any{
		"model":       c.model,
		"messages":    req.Messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	bodyRaw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	request, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(bodyRaw),
	)
	if err != nil {
		return "", err
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return "", err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", fmt.Errorf("openai chat error (%d): %s", response.StatusCode, strings.TrimSpace(string(responseBody)))
	}

	answer := extractChoiceContent(parseJSONStringMap(responseBody))
	if strings.TrimSpace(answer) == "" {
		return completionFallback, nil
	}
	return strings.TrimSpace(answer), nil
}

func extractChoiceContent(data map[string]any) string {
	choices, ok := data["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return ""
	}
	message, ok := first["message"].(map[string]any)
	if !ok {
		return ""
	}
	return strings.TrimSpace(toString(message["content"]))
}

// MockAIClient is a deterministic stand-in used by tests and local runs
// without provider credentials.
type MockAIClient struct {
	Reply string
}

func (m MockAIClient) Complete(_ context.Context, req CompletionRequest) (string, error) {
	if strings.TrimSpace(m.Reply) != "" {
		return m.Reply, nil
	}
	question := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if strings.EqualFold(strings.TrimSpace(req.Messages[i].Role), "user") {
			question = strings.TrimSpace(req.Messages[i].Content)
			break
		}
	}
	if question == "" {
		return completionFallback, nil
	}
	return "Mock response: " + question, nil
}
