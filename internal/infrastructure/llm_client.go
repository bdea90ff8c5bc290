package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"intakehub/internal/entities"
	"intakehub/internal/interfaces"
)

// ChatClient calls an OpenAI-compatible chat-completion endpoint. The
// concrete provider only matters as a wire contract; base URL and key come
// from the environment, model and temperature from the org config.
type ChatClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewChatClient builds a client for one org configuration.
func NewChatClient(baseURL, apiKey string, cfg entities.OrgConfig) *ChatClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &ChatClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one system+user exchange and returns the assistant text.
// The caller controls the deadline through ctx.
func (c *ChatClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []chatMessage{}
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	payload := chatRequest{Model: c.model, Messages: messages, Temperature: c.temperature}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm request failed: status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("llm response unparsable: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llm error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm response empty")
	}
	return parsed.Choices[0].Message.Content, nil
}

// dryRunClient never leaves the process; it answers with a fixed low-risk
// decision so dry-run requests exercise the full pipeline.
type dryRunClient struct{}

func (dryRunClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return `{"intent":"INQUIRY","confidence":0.99,"reasoning":"dry run","requires_approval":false,"priority":3,"actions":[]}`, nil
}

// DefaultAIClientFactory builds real clients from the environment, or the
// dry-run stub when requested.
func DefaultAIClientFactory(cfg entities.OrgConfig, dryRun bool) interfaces.AIClient {
	if dryRun {
		return dryRunClient{}
	}
	return NewChatClient(os.Getenv("LLM_BASE_URL"), os.Getenv("LLM_API_KEY"), cfg)
}
