package reply

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"telegram-support-bot/internal/messages"
)

// OpenAIGenerator asks a chat completion model for the reply.
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature float64
}

type openAIConfig struct {
	model      string
	baseURL    string
	maxRetries int
	httpClient *http.Client
}

// OpenAIOption configures an OpenAIGenerator.
type OpenAIOption func(*openAIConfig)

// WithModel sets the chat model (default: gpt-4o-mini).
func WithModel(model string) OpenAIOption {
	return func(c *openAIConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at a proxy or compatible API.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) { c.baseURL = url }
}

// WithMaxRetries sets the client-side retry count (default: 1).
func WithMaxRetries(n int) OpenAIOption {
	return func(c *openAIConfig) { c.maxRetries = n }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *openAIConfig) { c.httpClient = hc }
}

func NewOpenAIGenerator(apiKey string, opts ...OpenAIOption) *OpenAIGenerator {
	cfg := openAIConfig{model: string(openai.ChatModelGPT4oMini), maxRetries: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	}

	return &OpenAIGenerator{
		client:      openai.NewClient(reqOpts...),
		model:       cfg.model,
		maxTokens:   200,
		temperature: 0.7,
	}
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	contextJSON, err := json.Marshal(req.Context)
	if err != nil {
		return "", fmt.Errorf("reply: marshal context: %w", err)
	}
	prompt := fmt.Sprintf("Контекст користувача: %s\nПоточний настрій (1-10): %d\nОстаннє повідомлення: \"%s\"",
		contextJSON, req.MoodScore, req.Message)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(messages.ReplyInstruction),
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(g.maxTokens),
		Temperature: openai.Float(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("reply: openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}
