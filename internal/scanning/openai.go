package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI implements the Backend interface using the OpenAI chat completions
// API. Any compatible server can be used by setting a base URL.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates a new OpenAI Backend instance
func NewOpenAI(apiKey, modelName, baseURL string, opts ...option.RequestOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key is required", ErrConfiguration)
	}
	if modelName == "" {
		modelName = "gpt-4o"
	}

	options := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	options = append(options, opts...)

	return &OpenAI{
		client: openai.NewClient(options...),
		model:  modelName,
	}, nil
}

// Generate sends the prompt, and the page image when present, as a single
// user message
func (o *OpenAI) Generate(ctx context.Context, prompt string, image *PageImage) (string, error) {
	var parts []openai.ChatCompletionContentPartUnionParam
	if image != nil {
		dataURL := "data:" + image.MediaType + ";base64," + base64.StdEncoding.EncodeToString(image.Data)
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL:    dataURL,
			Detail: "high",
		}))
	}
	parts = append(parts, openai.TextContentPart(prompt))

	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
	})
	if err != nil {
		return "", fmt.Errorf("%w: creating chat completion: %w", ErrUpstreamModel, err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in openai response", ErrUpstreamModel)
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// Provider returns "openai"
func (o *OpenAI) Provider() string { return BackendOpenAI }

// ModelName returns the configured OpenAI model
func (o *OpenAI) ModelName() string { return o.model }

// Close is a no-op; the SDK client holds no resources
func (o *OpenAI) Close() error {
	return nil
}
