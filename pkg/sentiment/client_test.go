package sentiment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"
)

func TestLabelForScore(t *testing.T) {
	cases := []struct {
		score float64
		want  Label
	}{
		{85, LabelVeryPositive},
		{70, LabelVeryPositive},
		{65, LabelPositive},
		{50, LabelSlightlyPositive},
		{42, LabelNeutral},
		{35, LabelSlightlyNegative},
		{25, LabelNegative},
		{5, LabelVeryNegative},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, labelForScore(tc.score), "score %.0f", tc.score)
	}
}

func TestLexiconScore(t *testing.T) {
	t.Run("positive text", func(t *testing.T) {
		got := lexiconScore("Shares surge after record profit beats estimates")
		require.Greater(t, got.Score, 50.0)
		require.Equal(t, "lexicon", got.Method)
	})
	t.Run("negative text", func(t *testing.T) {
		got := lexiconScore("Stock plunges on weak guidance and lawsuit fears")
		require.Less(t, got.Score, 50.0)
	})
	t.Run("mixed text balances", func(t *testing.T) {
		got := lexiconScore("gains offset by losses")
		require.InDelta(t, 50, got.Score, 0.01)
	})
	t.Run("no polar words is neutral", func(t *testing.T) {
		got := lexiconScore("The committee met on Tuesday")
		require.Equal(t, 50.0, got.Score)
		require.Equal(t, LabelNeutral, got.Sentiment)
		require.Equal(t, 0.3, got.Confidence)
	})
	t.Run("confidence grows with matches but is capped", func(t *testing.T) {
		few := lexiconScore("profit up")
		many := lexiconScore("surge rally record strong profit gains beats soar win boost jump up")
		require.Greater(t, many.Confidence, few.Confidence)
		require.LessOrEqual(t, many.Confidence, 0.9)
	})
}

func TestAnalyzeWithoutAPIKey(t *testing.T) {
	client := NewClient(&Config{BaseURL: defaultBaseURL, Model: defaultModel, Timeout: time.Second})

	got := client.Analyze(context.Background(), "Shares rally on strong results", "Earnings beat")
	require.Equal(t, "lexicon", got.Method)
	require.Greater(t, got.Score, 50.0)
}

func TestAnalyzeEmptyInput(t *testing.T) {
	client := NewClient(nil)
	got := client.Analyze(context.Background(), "", "")
	require.Equal(t, Neutral("no_text"), got)
}

func newModelServer(t *testing.T, reply string) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1756400000,
			"model":   "test-model",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": reply},
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	clientVal := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL))
	return &clientVal
}

func TestAnalyzeCombinesModelVerdict(t *testing.T) {
	oa := newModelServer(t, `{"score": 90, "confidence": 0.8}`)
	client := NewClient(
		&Config{BaseURL: defaultBaseURL, APIKey: "test", Model: defaultModel, Timeout: time.Second},
		WithOpenAIClient(oa),
	)

	got := client.Analyze(context.Background(), "Shares rally on strong results", "Earnings beat")
	require.Equal(t, "combined", got.Method)
	require.Greater(t, got.Score, 80.0)
	require.Equal(t, LabelVeryPositive, got.Sentiment)
}

func TestAnalyzeFallsBackOnModelFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	clientVal := openai.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)

	client := NewClient(
		&Config{BaseURL: defaultBaseURL, APIKey: "test", Model: defaultModel, Timeout: time.Second},
		WithOpenAIClient(&clientVal),
	)

	got := client.Analyze(context.Background(), "Stock plunges on weak guidance", "Profit warning")
	require.Equal(t, "lexicon", got.Method)
	require.Less(t, got.Score, 50.0)
}

func TestParseVerdict(t *testing.T) {
	t.Run("clean json", func(t *testing.T) {
		got, err := parseVerdict(`{"score": 72, "confidence": 0.9}`)
		require.NoError(t, err)
		require.Equal(t, 72.0, got.Score)
		require.Equal(t, 0.9, got.Confidence)
	})
	t.Run("json wrapped in prose", func(t *testing.T) {
		got, err := parseVerdict(`Here is my analysis: {"score": 31, "reasoning": "weak outlook"}`)
		require.NoError(t, err)
		require.Equal(t, 31.0, got.Score)
		require.Equal(t, 0.6, got.Confidence)
	})
	t.Run("clamps out of range values", func(t *testing.T) {
		got, err := parseVerdict(`{"score": 250, "confidence": 3}`)
		require.NoError(t, err)
		require.Equal(t, 100.0, got.Score)
		require.Equal(t, 1.0, got.Confidence)
	})
	t.Run("garbage", func(t *testing.T) {
		_, err := parseVerdict("no numbers here")
		require.Error(t, err)
	})
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	t.Run("ascii unchanged", func(t *testing.T) {
		require.Equal(t, "abcd", truncate("abcdef", 4))
	})
	t.Run("cut lands inside a rune", func(t *testing.T) {
		s := "ab€" // euro sign is 3 bytes starting at offset 2
		for max := 2; max <= 4; max++ {
			got := truncate(s, max)
			require.True(t, utf8.ValidString(got), "max=%d got %q", max, got)
			require.LessOrEqual(t, len(got), max)
		}
		require.Equal(t, "ab", truncate(s, 4))
	})
}

func TestLoadConfigFromReader(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SENTIMENT_BASE_URL", "")
	t.Setenv("SENTIMENT_MODEL", "")
	t.Setenv("SENTIMENT_TIMEOUT", "")
	t.Setenv("TEST_SENTIMENT_KEY", "sk-test")

	cfg, err := LoadConfigFromReader(strings.NewReader(`
base_url: https://llm.internal/v1
api_key: ${TEST_SENTIMENT_KEY}
model: scoring-small
timeout: 5s
`))
	require.NoError(t, err)
	require.Equal(t, "https://llm.internal/v1", cfg.BaseURL)
	require.Equal(t, "sk-test", cfg.APIKey)
	require.Equal(t, "scoring-small", cfg.Model)
	require.Equal(t, 5*time.Second, cfg.Timeout)

	t.Run("defaults when empty", func(t *testing.T) {
		cfg, err := LoadConfigFromReader(strings.NewReader(`{}`))
		require.NoError(t, err)
		require.Equal(t, defaultBaseURL, cfg.BaseURL)
		require.Equal(t, defaultModel, cfg.Model)
		require.Equal(t, defaultTimeout, cfg.Timeout)
		require.Empty(t, cfg.APIKey)
	})

	t.Run("numeric timeout means seconds", func(t *testing.T) {
		cfg, err := LoadConfigFromReader(strings.NewReader(`timeout: 15`))
		require.NoError(t, err)
		require.Equal(t, 15*time.Second, cfg.Timeout)
	})
}
