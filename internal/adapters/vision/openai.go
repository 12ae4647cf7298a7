package vision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tg-wellness-bot/internal/domain"
	openai "tg-wellness-bot/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI реализует domain.VisionModel через мультимодальные Chat Completions.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
}

var _ domain.VisionModel = (*OpenAI)(nil)

// NewOpenAI создаёт провайдер оценки фото.
func NewOpenAI(client chatClient, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &OpenAI{client: client, model: model, timeout: timeout}
}

// Generate отправляет картинку с промптом и возвращает сырой текст модели.
func (o *OpenAI) Generate(ctx context.Context, image []byte, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.2,
		MaxTokens:   500,
		Messages: []openai.ChatMessage{
			{
				Role: openai.RoleUser,
				Content: []openai.ContentPart{
					openai.TextPart(prompt),
					// Telegram обычно отдаёт JPEG, mime фиксируем.
					openai.ImagePart(image, "image/jpeg"),
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: пустой ответ")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
