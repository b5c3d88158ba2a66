package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/zeromicro/go-zero/core/logx"
)

// Analyzer is the collaborator contract the ingestion pipeline depends on:
// a bounded synchronous call that always produces an annotation.
type Analyzer interface {
	Analyze(ctx context.Context, text, title string) Result
}

// Client scores articles via an OpenAI-compatible API with a lexicon
// fallback. A nil or key-less configuration yields a lexicon-only client.
type Client struct {
	cfg          *Config
	openaiClient *openai.Client
}

// ClientOption configures optional client behaviour.
type ClientOption func(*Client)

// WithOpenAIClient injects a pre-configured API client (primarily for tests).
func WithOpenAIClient(client *openai.Client) ClientOption {
	return func(c *Client) {
		c.openaiClient = client
	}
}

// NewClient constructs an analyzer from configuration.
func NewClient(cfg *Config, opts ...ClientOption) *Client {
	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.openaiClient == nil && cfg != nil && cfg.APIKey != "" {
		clientVal := openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
			option.WithRequestTimeout(cfg.Timeout),
		)
		c.openaiClient = &clientVal
	}
	return c
}

// Analyze scores the combined title and text. It never returns an error:
// model failures degrade to the lexicon result, and empty input yields the
// neutral default.
func (c *Client) Analyze(ctx context.Context, text, title string) Result {
	combined := strings.TrimSpace(title + " " + text)
	if combined == "" {
		return Neutral("no_text")
	}

	lexicon := lexiconScore(combined)
	if c.openaiClient == nil {
		return lexicon
	}

	model, err := c.analyzeWithModel(ctx, combined, title)
	if err != nil {
		logx.WithContext(ctx).Errorf("sentiment model analysis failed, using lexicon: %v", err)
		return lexicon
	}
	return combine(lexicon, model)
}

type modelVerdict struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

const analysisSystemPrompt = "You are a financial news sentiment analyst. " +
	"Score how positive the news is for the stock on a 0-100 scale and reply " +
	`with JSON only: {"score": <0-100>, "confidence": <0-1>}`

func (c *Client) analyzeWithModel(parentCtx context.Context, combined, title string) (modelVerdict, error) {
	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.Timeout)
	defer cancel()

	prompt := fmt.Sprintf("Title: %s\nContent: %s", title, truncate(combined, 500))
	completion, err := c.openaiClient.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(analysisSystemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature:         openai.Float(0.3),
		MaxCompletionTokens: openai.Int(200),
	})
	if err != nil {
		return modelVerdict{}, err
	}
	if len(completion.Choices) == 0 {
		return modelVerdict{}, fmt.Errorf("empty completion")
	}
	return parseVerdict(completion.Choices[0].Message.Content)
}

var scorePattern = regexp.MustCompile(`"score"\s*:\s*(\d+(?:\.\d+)?)`)

// parseVerdict decodes the model reply, tolerating prose around the JSON by
// falling back to a score regexp.
func parseVerdict(content string) (modelVerdict, error) {
	content = strings.TrimSpace(content)
	var verdict modelVerdict
	if err := json.Unmarshal([]byte(content), &verdict); err == nil {
		return clampVerdict(verdict), nil
	}
	match := scorePattern.FindStringSubmatch(content)
	if match == nil {
		return modelVerdict{}, fmt.Errorf("unparseable verdict %q", truncate(content, 120))
	}
	score, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return modelVerdict{}, fmt.Errorf("unparseable score %q", match[1])
	}
	return clampVerdict(modelVerdict{Score: score, Confidence: 0.6}), nil
}

func clampVerdict(v modelVerdict) modelVerdict {
	if v.Score < 0 {
		v.Score = 0
	}
	if v.Score > 100 {
		v.Score = 100
	}
	if v.Confidence <= 0 {
		v.Confidence = 0.6
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
	return v
}

// combine merges the lexicon and model scores, weighted by confidence.
func combine(lexicon Result, model modelVerdict) Result {
	total := lexicon.Confidence + model.Confidence
	if total <= 0 {
		return lexicon
	}
	score := (lexicon.Score*lexicon.Confidence + model.Score*model.Confidence) / total
	return Result{
		Score:      round2(score),
		Sentiment:  labelForScore(score),
		Confidence: round2((lexicon.Confidence + model.Confidence) / 2),
		Method:     "combined",
	}
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
