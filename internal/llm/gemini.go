// Package llm asks a language model to pick the reading start point of a
// book from its table of contents and per-file text statistics. The model
// only ever sees structural metadata, never decrypted content or keys.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	genai "google.golang.org/genai"
)

// ErrInvalidJSON indicates the model returned something that does not parse
// as the expected candidate shape.
var ErrInvalidJSON = errors.New("llm: invalid JSON from model")

// StartCandidate is the model's answer: the spine file (and optional anchor
// within it) where the main text begins.
type StartCandidate struct {
	File       string  `json:"file"`
	Anchor     string  `json:"anchor"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Suggester produces a start-point candidate from structural metadata.
type Suggester interface {
	Suggest(ctx context.Context, input Input) (StartCandidate, error)
}

// GeminiClient is a thin wrapper around the official genai client in JSON
// mode.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }

const startPointPrompt = `You are given the table of contents and per-file character
statistics of a book. Identify where the main body text begins, skipping
front matter such as covers, title pages, copyright notices, dedications,
prefaces and tables of contents.

Respond with a single JSON object:
{"file": "<spine-relative path>", "anchor": "<fragment id or empty>",
 "confidence": <0..1>, "rationale": "<one sentence>"}

The file must be one of the paths listed in the input. Use an empty anchor
when the start is the top of the file.`

// Suggest sends the metadata and parses the candidate. The call is retried
// up to 3 times with exponential sleep.
func (g *GeminiClient) Suggest(ctx context.Context, input Input) (StartCandidate, error) {
	in, _ := json.MarshalIndent(input, "", "  ")
	full := startPointPrompt + "\n\n[INPUT JSON]\n" + string(in)
	log.Printf("llm request: model=%s bytes=%d", g.model, len(full))

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := g.cli.Models.GenerateContent(ctx, g.model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
		)
		if err != nil {
			lastErr = err
		} else if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = ErrInvalidJSON
		} else {
			return parseCandidate(resp.Candidates[0].Content.Parts[0].Text)
		}
		if ctx.Err() != nil {
			return StartCandidate{}, ctx.Err()
		}
		time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
	}
	return StartCandidate{}, lastErr
}

func parseCandidate(text string) (StartCandidate, error) {
	var c StartCandidate
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return StartCandidate{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return c, nil
}
