package gamerhub_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	gamerhub "github.com/gamerhub/gamerhub-go"
)

func newFakeCompletionServer(t *testing.T, summary string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad completion request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": summary}},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestSummarizeMatch(t *testing.T) {
	server, calls := newFakeCompletionServer(t, "A dominant win carried by clutch rounds.")

	summarizer, err := gamerhub.NewSummarizer(gamerhub.AIConfig{
		Endpoint: server.URL,
		Model:    "test-model",
	}, testLogger())
	if err != nil {
		t.Fatalf("creating summarizer: %v", err)
	}

	matchData := `{"game":"CS:GO","result":"Win","kills":24,"deaths":9}`
	summary, err := summarizer.SummarizeMatch(context.Background(), matchData)
	if err != nil {
		t.Fatalf("summarizing: %v", err)
	}
	if summary != "A dominant win carried by clutch rounds." {
		t.Errorf("unexpected summary %q", summary)
	}
	if calls.Load() != 1 {
		t.Errorf("completion endpoint called %d times, want 1", calls.Load())
	}
}

func TestSummarizeMatchRejectsInvalidJSON(t *testing.T) {
	server, calls := newFakeCompletionServer(t, "never used")

	summarizer, err := gamerhub.NewSummarizer(gamerhub.AIConfig{Endpoint: server.URL}, testLogger())
	if err != nil {
		t.Fatalf("creating summarizer: %v", err)
	}

	_, err = summarizer.SummarizeMatch(context.Background(), "this is not json")
	if !errors.Is(err, gamerhub.ErrInvalidMatchData) {
		t.Fatalf("err = %v, want ErrInvalidMatchData", err)
	}
	if calls.Load() != 0 {
		t.Errorf("invalid input still reached the completion endpoint %d times", calls.Load())
	}
}

func TestSummarizeMatchEmptyCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	t.Cleanup(server.Close)

	summarizer, err := gamerhub.NewSummarizer(gamerhub.AIConfig{Endpoint: server.URL}, testLogger())
	if err != nil {
		t.Fatalf("creating summarizer: %v", err)
	}

	if _, err := summarizer.SummarizeMatch(context.Background(), `{}`); err == nil {
		t.Fatal("expected an error when the service returns no content")
	}
}
