package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const answerPrompt = `You are helping an interviewee in a live job interview.
Given the interviewer's question, propose up to three short, strong answers.
Respond with JSON only: {"suggestions": ["..."], "reasoning": "..."}.
Order suggestions from best to worst.`

type OpenAI struct {
	apiURL string
	apiKey string
	model  string
	client *http.Client
}

func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{
		apiURL: "https://api.openai.com/v1/chat/completions",
		apiKey: apiKey,
		model:  "gpt-4o-mini",
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Answers(ctx context.Context, question string) (Suggestions, error) {
	reqBody, err := json.Marshal(map[string]any{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "system", "content": answerPrompt},
			{"role": "user", "content": question},
		},
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return Suggestions{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return Suggestions{}, err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return Suggestions{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Suggestions{}, err
	}
	if resp.StatusCode != 200 {
		return Suggestions{}, fmt.Errorf("suggestion API error %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return Suggestions{}, fmt.Errorf("suggestion response parse error: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return Suggestions{}, fmt.Errorf("suggestion response has no choices")
	}

	var s Suggestions
	if err := json.Unmarshal([]byte(decoded.Choices[0].Message.Content), &s); err != nil {
		return Suggestions{}, fmt.Errorf("suggestion content parse error: %w", err)
	}
	return s, nil
}
