// Package translator implements the server side of POST /api/translate.
package translator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/babelchat/babelchat/internal/config"
)

// Translator turns text into a target language.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
	TranslateBatch(ctx context.Context, texts []string, targetLanguage string) ([]string, error)
}

const systemPrompt = "You are a translation engine. Translate the user's text into {target_language}. " +
	"Reply with the translation only: no quotes, no explanations."

// Service backs translation with an Ark chat model.
type Service struct {
	chain  compose.Runnable[map[string]any, *schema.Message]
	logger zerolog.Logger
}

// NewService compiles the translation chain against the configured model.
func NewService(ctx context.Context, cfg config.TranslatorConfig, logger zerolog.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{text}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile translation chain: %w", err)
	}

	return &Service{chain: runnable, logger: logger}, nil
}

// Translate runs one text through the model.
func (s *Service) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	response, err := s.chain.Invoke(ctx, map[string]any{
		"target_language": targetLanguage,
		"text":            text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run translation chain: %w", err)
	}
	s.logger.Debug().Str("module", "translator").Str("lang", targetLanguage).Int("length", len(response.Content)).Msg("translated")
	return strings.TrimSpace(response.Content), nil
}

// TranslateBatch translates each string in order. The response array always
// matches the input length; a per-item failure aborts the batch.
func (s *Service) TranslateBatch(ctx context.Context, texts []string, targetLanguage string) ([]string, error) {
	out := make([]string, 0, len(texts))
	for _, text := range texts {
		translated, err := s.Translate(ctx, text, targetLanguage)
		if err != nil {
			return nil, err
		}
		out = append(out, translated)
	}
	return out, nil
}

// Passthrough returns input unchanged; used when no model is configured so
// the room still functions, just untranslated.
type Passthrough struct{}

func (Passthrough) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}

func (Passthrough) TranslateBatch(_ context.Context, texts []string, _ string) ([]string, error) {
	out := make([]string, len(texts))
	copy(out, texts)
	return out, nil
}
