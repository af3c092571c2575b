// Package suggest is the answer-suggestion collaborator boundary: one
// interviewer question in, a ranked list of candidate answers plus the
// model's reasoning out.
package suggest

import (
	"context"
	"fmt"
	"os"
)

// Suggestions is one generation result. Order is display priority.
type Suggestions struct {
	Suggestions []string `json:"suggestions"`
	Reasoning   string   `json:"reasoning"`
}

type Provider interface {
	Name() string
	Answers(ctx context.Context, question string) (Suggestions, error)
}

func New() (Provider, error) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return NewOpenAI(key), nil
	}
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		p := NewOpenAI(key)
		p.apiURL = "https://api.groq.com/openai/v1/chat/completions"
		p.model = "llama-3.3-70b-versatile"
		return p, nil
	}
	return nil, fmt.Errorf("set OPENAI_API_KEY or GROQ_API_KEY environment variable")
}
