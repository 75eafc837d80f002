package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	config "github.com/xilidan/roboscribe/config/scribe"
)

const promptPrefix = "Summarize the following transcript with key points:\n\n"

var ErrNotConfigured = errors.New("gemini API key not configured")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, cfg config.GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Gemini{client: client, model: cfg.Model}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	return resp.Text(), nil
}

// Summarizer never fails: a generator error becomes the summary text.
type Summarizer struct {
	generator Generator
	log       *slog.Logger
}

// New accepts a nil generator, in which case every summary reports the key as missing.
func New(generator Generator, log *slog.Logger) *Summarizer {
	return &Summarizer{generator: generator, log: log}
}

func (s *Summarizer) Summarize(ctx context.Context, transcript string) string {
	if s.generator == nil {
		return fallback(ErrNotConfigured)
	}

	summary, err := s.generator.Generate(ctx, promptPrefix+transcript)
	if err != nil {
		s.log.Error("failed to generate summary", slog.String("error", err.Error()))
		return fallback(err)
	}
	return summary
}

func fallback(err error) string {
	return "Could not generate summary: " + err.Error()
}
