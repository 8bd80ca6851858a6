package ai

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/tierdoc/internal/pkg/errors"
)

const summaryPrompt = `You are scientific service able to summarise large texts.
Context information is below.
<context>
%s
</context>
Summarise the context.
- Use the same language as the context.
- Keep factual accuracy and key points.
- Output ONLY the summary text.`

type Summarizer struct {
	gen           IGenerator
	maxInputChars int
}

func NewSummarizer(gen IGenerator, maxInputChars int) *Summarizer {
	return &Summarizer{gen: gen, maxInputChars: maxInputChars}
}

func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	if s.gen == nil {
		return "", ErrNotConfigured
	}
	logger := logutil.GetLogger(ctx)
	text = strings.TrimSpace(text)
	if s.maxInputChars > 0 && utf8.RuneCountInString(text) > s.maxInputChars {
		logger.Warn("summary input truncated",
			zap.Int("chars", utf8.RuneCountInString(text)),
			zap.Int("limit", s.maxInputChars),
		)
		text = string([]rune(text)[:s.maxInputChars])
	}
	prompt := fmt.Sprintf(summaryPrompt, text)
	resp, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(resp)
	if summary == "" {
		return "", fmt.Errorf("empty ai response: %w", appErr.ErrExternalServiceUnavailable)
	}
	logger.Debug("summary generated",
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("summary_chars", len(summary)),
	)
	return summary, nil
}
