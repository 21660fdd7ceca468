package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/sagarjadhav/tablemate/internal/config"
	"github.com/zerodha/logf"
)

// maybeTranslate converts customer-facing text to the conversation's
// language. Translation is best effort, any failure returns the original.
func (a *App) maybeTranslate(ctx context.Context, text, targetLanguage string) string {
	if text == "" || targetLanguage == "" || strings.EqualFold(targetLanguage, "en") || a.Translator == nil {
		return text
	}

	translated, err := a.Translator.TranslateText(ctx, text, targetLanguage)
	if err != nil {
		a.Log.Warn("Translation failed, using original text", "error", err, "language", targetLanguage)
		return text
	}
	if translated == "" {
		return text
	}
	return translated
}

// aiTranslator translates through the configured AI provider
type aiTranslator struct {
	cfg config.AIConfig
	log logf.Logger
}

// NewAITranslator builds the production Translator
func NewAITranslator(cfg config.AIConfig, log logf.Logger) Translator {
	return &aiTranslator{cfg: cfg, log: log}
}

func (t *aiTranslator) TranslateText(ctx context.Context, text, targetLanguage string) (string, error) {
	messages := []chatMessage{
		{
			Role: "system",
			Content: fmt.Sprintf("You are a translator. Translate the user's message to %s. "+
				"Reply with the translation only, no explanations. Preserve formatting markers like * and _.", targetLanguage),
		},
		{Role: "user", Content: text},
	}

	reply, err := chatComplete(ctx, t.cfg, messages, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply.Content), nil
}
