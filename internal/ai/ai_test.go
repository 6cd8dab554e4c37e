package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "clean json",
			input:    `{"suggestions": []}`,
			expected: `{"suggestions": []}`,
		},
		{
			name:     "json with preamble",
			input:    "Here is my answer:\n{\"suggestions\": []}\nHope that helps!",
			expected: `{"suggestions": []}`,
		},
		{
			name:     "nested braces",
			input:    `text {"a": {"b": 1}} trailing`,
			expected: `{"a": {"b": 1}}`,
		},
		{
			name:     "no json",
			input:    "no braces here",
			expected: "no braces here",
		},
		{
			name:     "unclosed brace",
			input:    `prefix {"a": 1`,
			expected: `{"a": 1`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractJSON(tc.input); got != tc.expected {
				t.Errorf("extractJSON(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestBuildSuggestionContent(t *testing.T) {
	content := buildSuggestionContent("Hi all, welcome.", []ClusterContext{
		{
			SpeakerID:    "speaker_0",
			CurrentName:  "Speaker 1",
			SpeakingTime: 120,
			SampleLines:  []string{"let's get started"},
		},
	})

	for _, want := range []string{"speaker_0", "Speaker 1", "120s", "let's get started", "Hi all, welcome."} {
		if !strings.Contains(content, want) {
			t.Errorf("content missing %q:\n%s", want, content)
		}
	}
}

func TestOllamaSuggestNames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "test",
			"message": {"role": "assistant", "content": "{\"suggestions\": [{\"speaker_id\": \"speaker_0\", \"name\": \"Maria Lopez\", \"confidence\": 0.7}]}"},
			"done": true,
			"prompt_eval_count": 100,
			"eval_count": 30
		}`))
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "test")
	suggestions, err := provider.SuggestNames(context.Background(), "intro", []ClusterContext{
		{SpeakerID: "speaker_0", CurrentName: "Speaker 1"},
	})
	if err != nil {
		t.Fatalf("SuggestNames failed: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(suggestions))
	}
	if suggestions[0].Name != "Maria Lopez" || suggestions[0].SpeakerID != "speaker_0" {
		t.Errorf("suggestion = %+v", suggestions[0])
	}

	usage := provider.GetUsage()
	if usage.InputTokens != 100 || usage.OutputTokens != 30 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestOllamaRetriesOnBadJSON(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			_, _ = w.Write([]byte(`{"message": {"role": "assistant", "content": "not json at all"}, "done": true}`))
			return
		}
		_, _ = w.Write([]byte(`{"message": {"role": "assistant", "content": "{\"suggestions\": []}"}, "done": true}`))
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "test")
	suggestions, err := provider.SuggestNames(context.Background(), "intro", nil)
	if err != nil {
		t.Fatalf("SuggestNames failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("got %d calls, want a retry after bad JSON", calls)
	}
	if len(suggestions) != 0 {
		t.Errorf("suggestions = %+v, want empty", suggestions)
	}
}

func TestNewProviderUnknown(t *testing.T) {
	if _, err := NewProvider(context.Background(), "grok", nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), "", nil)
	if err != nil || p != nil {
		t.Fatalf("disabled provider = (%v, %v), want (nil, nil)", p, err)
	}
}
