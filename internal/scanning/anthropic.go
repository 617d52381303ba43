package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

// Anthropic implements the Backend interface using Anthropic Claude
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates a new Anthropic Backend instance
func NewAnthropic(apiKey string, modelName string, opts ...option.RequestOption) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: anthropic api key is required", ErrConfiguration)
	}
	if modelName == "" {
		modelName = "claude-sonnet-4-5"
	}

	options := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &Anthropic{
		client: anthropic.NewClient(options...),
		model:  modelName,
	}, nil
}

// Generate sends the prompt, and the page image when present, to Claude
func (a *Anthropic) Generate(ctx context.Context, prompt string, image *PageImage) (string, error) {
	var blocks []anthropic.ContentBlockParamUnion
	if image != nil {
		blocks = append(blocks, anthropic.NewImageBlockBase64(
			image.MediaType,
			base64.StdEncoding.EncodeToString(image.Data),
		))
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: anthropicMaxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	if err != nil {
		return "", fmt.Errorf("%w: creating message: %w", ErrUpstreamModel, err)
	}

	var responseText strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText.WriteString(block.Text)
		}
	}
	if responseText.Len() == 0 {
		return "", fmt.Errorf("%w: no text in anthropic response (stop reason %q)", ErrUpstreamModel, message.StopReason)
	}

	return strings.TrimSpace(responseText.String()), nil
}

// Provider returns "anthropic"
func (a *Anthropic) Provider() string { return BackendAnthropic }

// ModelName returns the configured Claude model
func (a *Anthropic) ModelName() string { return a.model }

// Close is a no-op; the SDK client holds no resources
func (a *Anthropic) Close() error {
	return nil
}
