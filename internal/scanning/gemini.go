package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Backend interface using Google Gemini
type Gemini struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// NewGemini creates a new Gemini Backend instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", ErrConfiguration)
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("%w: creating gemini client: %w", ErrConfiguration, err)
	}

	return &Gemini{
		client:    client,
		model:     client.GenerativeModel(modelName),
		modelName: modelName,
	}, nil
}

// Generate sends the prompt, and the page image when present, to Gemini
func (g *Gemini) Generate(ctx context.Context, prompt string, image *PageImage) (string, error) {
	var parts []genai.Part
	if image != nil {
		// genai.ImageData expects just the format suffix (e.g., "png"), not the full MIME type
		parts = append(parts, genai.ImageData(strings.TrimPrefix(image.MediaType, "image/"), image.Data))
	}
	parts = append(parts, genai.Text(prompt))

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("%w: generating content: %w", ErrUpstreamModel, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no response from gemini", ErrUpstreamModel)
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return strings.TrimSpace(responseText.String()), nil
}

// Provider returns "gemini"
func (g *Gemini) Provider() string { return BackendGemini }

// ModelName returns the configured Gemini model
func (g *Gemini) ModelName() string { return g.modelName }

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
