package core

import (
	"context"
	"fmt"
	"io"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const defaultChatModelName = "gemini-1.5-flash-latest"

// GeminiProvider streams completions from the Gemini API.
type GeminiProvider struct {
	client    *genai.Client
	modelName string
}

func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if modelName == "" {
		modelName = defaultChatModelName
	}
	return &GeminiProvider{
		client:    client,
		modelName: modelName,
	}, nil
}

func (p *GeminiProvider) Close() {
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing GenAI client")
		} else {
			log.Info().Msg("GenAI client closed.")
		}
	}
}

func (p *GeminiProvider) StreamCompletion(ctx context.Context, instruction string) (FragmentIterator, error) {
	model := p.client.GenerativeModel(p.modelName)
	return &geminiFragments{responses: model.GenerateContentStream(ctx, genai.Text(instruction))}, nil
}

// responseIterator is satisfied by *genai.GenerateContentResponseIterator.
type responseIterator interface {
	Next() (*genai.GenerateContentResponse, error)
}

// geminiFragments flattens streamed responses into their text parts, one part per fragment.
type geminiFragments struct {
	responses responseIterator
	pending   []string
}

func (g *geminiFragments) Next() (string, error) {
	for len(g.pending) == 0 {
		resp, err := g.responses.Next()
		if err == iterator.Done {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("gemini stream failed: %w", err)
		}
		g.pending = textParts(resp)
	}
	frag := g.pending[0]
	g.pending = g.pending[1:]
	return frag, nil
}

func textParts(resp *genai.GenerateContentResponse) []string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			if txt != "" {
				parts = append(parts, string(txt))
			}
		} else {
			log.Debug().Str("part_type", fmt.Sprintf("%T", part)).Msg("Skipping non-text Gemini part")
		}
	}
	return parts
}
