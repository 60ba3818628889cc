// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/llm"
	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

const (
	// MaxRefinedQueryLen caps refined queries, in characters.
	MaxRefinedQueryLen = 200

	generalFocus = "general evidence"
)

// Refiner turns the top evidence gap into a follow-up query.
type Refiner struct {
	completer llm.Completer
	logger    *zap.Logger
}

// NewRefiner returns a Refiner backed by completer.
func NewRefiner(completer llm.Completer, logger *zap.Logger) *Refiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refiner{completer: completer, logger: logger}
}

type refinerResponse struct {
	RefinedQuery string `json:"refined_query"`
	FocusArea    string `json:"focus_area"`
	Reasoning    string `json:"reasoning"`
}

// Refine targets gaps[0]. With no gaps the original query is returned
// unchanged. A failed completion falls back to original + " " + gaps[0].
// round is used for logging only.
func (r *Refiner) Refine(ctx context.Context, original string, gaps []string, round int) types.RefinedQuery {
	if len(gaps) == 0 {
		return types.RefinedQuery{
			Original:  original,
			Refined:   original,
			FocusArea: generalFocus,
			Reasoning: "no gaps identified",
		}
	}
	gap := gaps[0]

	if q, ok := r.ask(ctx, original, gaps); ok {
		r.logger.Info("refined query",
			zap.Int("round", round),
			zap.String("gap", gap),
			zap.String("query", q.Refined))
		return q
	}

	metrics.CompletionFallbacks.WithLabelValues("refiner").Inc()
	return types.RefinedQuery{
		Original:  original,
		Refined:   truncateQuery(original + " " + gap),
		FocusArea: gap,
		Reasoning: "appended primary gap to the original query",
	}
}

func (r *Refiner) ask(ctx context.Context, original string, gaps []string) (types.RefinedQuery, bool) {
	if r.completer == nil {
		return types.RefinedQuery{}, false
	}
	prompt, err := render(refinerUserTmpl, struct {
		Original string
		Gap      string
		Others   string
	}{original, gaps[0], strings.Join(gaps[1:], "; ")})
	if err != nil {
		r.logger.Warn("rendering refiner prompt", zap.Error(err))
		return types.RefinedQuery{}, false
	}

	text, err := r.completer.Complete(ctx, refinerSystemPrompt, prompt, 0.3, 300)
	if err != nil {
		r.logger.Warn("query refinement failed, using fallback", zap.Error(err))
		return types.RefinedQuery{}, false
	}

	var resp refinerResponse
	if err := llm.DecodeJSON(text, &resp); err != nil {
		r.logger.Warn("could not parse refined query, using fallback", zap.Error(err))
		return types.RefinedQuery{}, false
	}
	refined := strings.Join(strings.Fields(resp.RefinedQuery), " ")
	if refined == "" {
		r.logger.Warn("empty refined query, using fallback")
		return types.RefinedQuery{}, false
	}
	focus := strings.TrimSpace(resp.FocusArea)
	if focus == "" {
		focus = gaps[0]
	}
	return types.RefinedQuery{
		Original:  original,
		Refined:   truncateQuery(refined),
		FocusArea: focus,
		Reasoning: resp.Reasoning,
	}, true
}

// truncateQuery caps q at MaxRefinedQueryLen characters, replacing the
// tail with "..." when it is cut.
func truncateQuery(q string) string {
	if utf8.RuneCountInString(q) <= MaxRefinedQueryLen {
		return q
	}
	runes := []rune(q)
	return string(runes[:MaxRefinedQueryLen-3]) + "..."
}
