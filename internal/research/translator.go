// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/evidence-engine/internal/llm"
	"github.com/pdiddy/evidence-engine/internal/metrics"
)

// polishLetters are the diacritics that mark a question as non-English.
// Ł and ł do not decompose under NFD, so they must be listed explicitly.
const polishLetters = "ąćęłńóśźżĄĆĘŁŃÓŚŹŻ"

// Translator renders non-English questions into English search queries.
type Translator struct {
	completer llm.Completer
	logger    *zap.Logger
}

// NewTranslator returns a Translator backed by completer.
func NewTranslator(completer llm.Completer, logger *zap.Logger) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{completer: completer, logger: logger}
}

// NeedsTranslation reports whether text contains a letter outside the
// plain ASCII alphabet the providers expect: a Polish letter, or any
// letter that decomposes into a base letter and a combining mark.
func NeedsTranslation(text string) bool {
	if strings.ContainsAny(text, polishLetters) {
		return true
	}
	for _, r := range text {
		if r < unicode.MaxASCII || !unicode.IsLetter(r) {
			continue
		}
		for _, d := range norm.NFD.String(string(r)) {
			if unicode.Is(unicode.Mn, d) {
				return true
			}
		}
	}
	return false
}

// Translate returns an English rendering of text. Text that needs no
// translation is returned unchanged without a completion call; any
// failure falls back to text verbatim.
func (t *Translator) Translate(ctx context.Context, text string) string {
	if !NeedsTranslation(text) || t.completer == nil {
		return text
	}

	out, err := t.completer.Complete(ctx, translatorSystemPrompt, text, 0, 200)
	if err != nil {
		t.logger.Warn("translation failed, using original query", zap.Error(err))
		metrics.CompletionFallbacks.WithLabelValues("translator").Inc()
		return text
	}

	line := firstLine(llm.StripCodeFence(out))
	line = strings.Trim(line, "\"'`“”„ ")
	if line == "" {
		t.logger.Warn("empty translation, using original query")
		metrics.CompletionFallbacks.WithLabelValues("translator").Inc()
		return text
	}
	t.logger.Debug("translated query", zap.String("from", text), zap.String("to", line))
	return line
}

func firstLine(s string) string {
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}
