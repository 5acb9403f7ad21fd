package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Schema constrains the completion to a JSON document.
type Schema struct {
	Name        string
	Description string
	Definition  json.RawMessage
}

type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// Schema is nil for free text.
	Schema *Schema
}

// Completion is the model's answer. Refusal is set instead of Content when the model declines a schema request.
type Completion struct {
	Content string
	Refusal string
}

// Completer is the external completion service.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	// Stream delivers the answer incrementally to onChunk and stops at the first error onChunk returns.
	Stream(ctx context.Context, req CompletionRequest, onChunk func(string) error) error
}

type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for a compatible proxy. Empty uses the default.
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAICompleter implements Completer with the OpenAI chat completions API.
type OpenAICompleter struct {
	client openai.Client
	model  string
}

// NewOpenAICompleter returns ErrConfiguration when the API key is missing.
func NewOpenAICompleter(cfg OpenAIConfig) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is missing", ErrConfiguration)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Gateway.complete owns retries so that backoff and classification live in one place.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4o
	}
	return &OpenAICompleter{client: openai.NewClient(opts...), model: model}, nil
}

func (c *OpenAICompleter) params(req CompletionRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	params := openai.ChatCompletionNewParams{ //nolint:exhaustruct // only need to set a few fields.
		Messages:            messages,
		Model:               c.model,
		Temperature:         openai.Float(req.Temperature),
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{ //nolint:exhaustruct // one variant.
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{ //nolint:exhaustruct // type is a constant.
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.Schema.Name,
					Description: openai.String(req.Schema.Description),
					Schema:      req.Schema.Definition,
					Strict:      openai.Bool(true),
				},
			},
		}
	}
	return params
}

func (c *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	chat, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return Completion{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(chat.Choices) == 0 {
		return Completion{}, errors.New("chat completion returned no choices")
	}
	msg := chat.Choices[0].Message
	return Completion{Content: msg.Content, Refusal: msg.Refusal}, nil
}

func (c *OpenAICompleter) Stream(ctx context.Context, req CompletionRequest, onChunk func(string) error) error {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if err := onChunk(chunk.Choices[0].Delta.Content); err != nil {
			return errors.Join(err, stream.Close())
		}
	}
	if err := stream.Err(); err != nil {
		return errors.Join(fmt.Errorf("stream chat completion: %w", err), stream.Close())
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("close stream: %w", err)
	}
	return nil
}
