// Package llm provides the chat-completion adapter behind domain.ChatModel
// and the parsing of model outputs into validated payloads. Models are
// sloppy about field names and shapes, so every payload passes through an
// ordered list of structural adapters before strict validation.
package llm

import (
	"context"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"examcraft/internal/config"
	"examcraft/internal/domain"
)

// OpenAIChatModel implements domain.ChatModel with JSON-mode chat
// completions.
type OpenAIChatModel struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIChatModel(cfg config.LLMConfig) *OpenAIChatModel {
	m := &OpenAIChatModel{
		model:   cfg.ChatModel,
		timeout: cfg.Timeout,
	}
	if m.model == "" {
		m.model = "gpt-4o-mini"
	}
	if m.timeout <= 0 {
		m.timeout = 60 * time.Second
	}
	if cfg.OpenAIAPIKey != "" {
		m.client = openai.NewClient(cfg.OpenAIAPIKey)
	}
	return m
}

func (m *OpenAIChatModel) Available() bool {
	return m.client != nil
}

func (m *OpenAIChatModel) ChatJSON(ctx context.Context, system, user string, temperature float32) ([]byte, error) {
	if m.client == nil {
		return nil, domain.NewError(domain.CodeLLMServiceError, "OPENAI_API_KEY is not set", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.model,
		Temperature: temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, domain.NewLLMServiceError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewError(domain.CodeLLMServiceError, "model returned no choices", nil)
	}

	content, err := ExtractJSONObject(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

// ExtractJSONObject cuts the first top-level JSON object out of model
// output, tolerating prose or fencing around it.
func ExtractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return "", domain.NewError(domain.CodeLLMServiceError, "no JSON object found in model output", nil)
	}
	return s[start : end+1], nil
}
