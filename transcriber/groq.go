package transcriber

import (
	"context"
	"net/http"
	"time"
)

type Groq struct {
	baseTranscriber
	apiKey string
	model  string
	client *http.Client
}

func NewGroq(apiKey string) *Groq {
	return &Groq{
		baseTranscriber: baseTranscriber{
			apiURL: "https://api.groq.com/openai/v1/audio/transcriptions",
		},
		apiKey: apiKey,
		model:  "whisper-large-v3-turbo",
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *Groq) Name() string { return "groq" }

func (g *Groq) Transcribe(ctx context.Context, payload []byte, mimeType string) (Result, error) {
	return whisperTranscribe(ctx, g.client, g.apiURL, g.apiKey, g.model, g.lang, payload, mimeType)
}
