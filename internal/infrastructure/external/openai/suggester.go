package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/employee-portal/internal/application/port"
)

// Config holds the chat completion settings
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Suggester implements port.TextSuggester with chat completions
type Suggester struct {
	client  chatCompleter
	cfg     Config
	prompts *PromptConfig
	logger  *zap.Logger
}

// NewSuggester creates a new OpenAI suggester; nil prompts selects the defaults
func NewSuggester(cfg Config, prompts *PromptConfig, logger *zap.Logger) *Suggester {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newSuggester(openai.NewClientWithConfig(clientCfg), cfg, prompts, logger)
}

func newSuggester(client chatCompleter, cfg Config, prompts *PromptConfig, logger *zap.Logger) *Suggester {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	return &Suggester{
		client:  client,
		cfg:     cfg,
		prompts: prompts,
		logger:  logger,
	}
}

// Suggest drafts text of the given kind from the supplied context
func (s *Suggester) Suggest(ctx context.Context, kind port.SuggestionKind, values map[string]string) (string, error) {
	var prompt Prompt
	switch kind {
	case port.SuggestJustification:
		prompt = s.prompts.Justification
	case port.SuggestReviewNote:
		prompt = s.prompts.ReviewNote
	default:
		return "", fmt.Errorf("unsupported suggestion kind %q", kind)
	}

	user, err := renderTemplate(prompt.UserTemplate, values)
	if err != nil {
		return "", err
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		s.logger.Error("OpenAI API call failed", zap.String("kind", string(kind)), zap.Error(err))
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	s.logger.Debug("Suggestion generated",
		zap.String("kind", string(kind)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return resp.Choices[0].Message.Content, nil
}

var _ port.TextSuggester = (*Suggester)(nil)
