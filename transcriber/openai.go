package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

type OpenAI struct {
	baseTranscriber
	apiKey string
	model  string
	client *http.Client
}

func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{
		baseTranscriber: baseTranscriber{
			apiURL: "https://api.openai.com/v1/audio/transcriptions",
		},
		apiKey: apiKey,
		model:  "gpt-4o-transcribe",
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Transcribe(ctx context.Context, payload []byte, mimeType string) (Result, error) {
	return whisperTranscribe(ctx, o.client, o.apiURL, o.apiKey, o.model, o.lang, payload, mimeType)
}

// whisperTranscribe posts one multipart request to an OpenAI-compatible
// transcription endpoint and decodes the JSON text field.
func whisperTranscribe(ctx context.Context, client *http.Client, apiURL, apiKey, model, lang string, payload []byte, mimeType string) (Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", payloadFilename(mimeType))
	if err != nil {
		return Result{}, err
	}
	if _, err := part.Write(payload); err != nil {
		return Result{}, err
	}

	writer.WriteField("model", model)
	writer.WriteField("response_format", "json")
	if lang != "" {
		writer.WriteField("language", lang)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}
	if resp.StatusCode != 200 {
		return Result{}, fmt.Errorf("transcription API error %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return Result{}, fmt.Errorf("transcription response parse error: %w", err)
	}

	text := strings.TrimSpace(decoded.Text)
	return Result{Text: text, NoSpeech: text == ""}, nil
}
