// Package transcriber is the speech-to-text collaborator boundary: one
// finalized audio payload in, one transcript out. Providers are selected
// from the environment.
package transcriber

import (
	"context"
	"fmt"
	"mime"
	"os"
	"strings"
)

type Result struct {
	Text     string
	NoSpeech bool // provider returned no usable text
}

type Transcriber interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	Transcribe(ctx context.Context, payload []byte, mimeType string) (Result, error)
}

type baseTranscriber struct {
	apiURL string
	lang   string
}

func (b *baseTranscriber) SetLanguage(lang string) { b.lang = lang }

func (b *baseTranscriber) GetLanguage() string { return b.lang }

func New() (Transcriber, error) {
	groqKey := os.Getenv("GROQ_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")

	if groqKey != "" {
		return NewGroq(groqKey), nil
	}
	if openaiKey != "" {
		return NewOpenAI(openaiKey), nil
	}

	return nil, fmt.Errorf("set GROQ_API_KEY or OPENAI_API_KEY environment variable")
}

// payloadFilename derives the upload filename the whisper-style APIs use
// to sniff the container format.
func payloadFilename(mimeType string) string {
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return "audio" + exts[0]
	}
	if i := strings.LastIndex(mimeType, "/"); i >= 0 && i+1 < len(mimeType) {
		return "audio." + mimeType[i+1:]
	}
	return "audio.bin"
}
