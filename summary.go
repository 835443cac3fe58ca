package gamerhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const summaryPrompt = `You are an AI assistant that summarizes match data for players.

Given the following match data, create a concise summary highlighting key moments, player performance, and important statistics.

Match Data:
`

// Summarizer produces natural-language match summaries via a hosted
// text-generation service.
type Summarizer struct {
	config     AIConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSummarizer creates a summarizer from the AI service configuration.
func NewSummarizer(cfg AIConfig, logger *slog.Logger) (*Summarizer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("ai endpoint is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

type completionRequest struct {
	Model    string              `json:"model"`
	Messages []completionMessage `json:"messages"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
	} `json:"choices"`
}

// SummarizeMatch sends the match data to the text-generation service and
// returns the generated summary. The input must be a JSON document; invalid
// input fails with ErrInvalidMatchData before any network call.
func (s *Summarizer) SummarizeMatch(ctx context.Context, matchData string) (string, error) {
	if !json.Valid([]byte(matchData)) {
		return "", ErrInvalidMatchData
	}

	reqBody := completionRequest{
		Model: s.config.Model,
		Messages: []completionMessage{
			{Role: "user", Content: summaryPrompt + matchData},
		},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encoding completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("building completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling text-generation service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("text-generation service returned status %d: %s", resp.StatusCode, body)
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("decoding completion response: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("text-generation service returned no content")
	}

	s.logger.Debug("generated match summary", "model", s.config.Model)
	return completion.Choices[0].Message.Content, nil
}
