// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/llm"
	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

const (
	// maxReflectionSamples caps the titles shown to the reviewer.
	maxReflectionSamples = 15

	// fallbackSourceTarget is the total below which the fallback
	// reflection asks for another round.
	fallbackSourceTarget = 15

	fallbackGap = "additional high-quality clinical evidence"
)

// ReflectInput is the evidence state handed to the Reflector.
type ReflectInput struct {
	Question  string
	Round     int
	MaxRounds int
	Current   types.RoundResult
	Previous  []types.RoundResult
}

// rounds returns the previous rounds followed by the current one.
func (in ReflectInput) rounds() []types.RoundResult {
	all := make([]types.RoundResult, 0, len(in.Previous)+1)
	all = append(all, in.Previous...)
	return append(all, in.Current)
}

// Reflector grades the evidence gathered so far and names the gaps.
type Reflector struct {
	completer llm.Completer
	logger    *zap.Logger
}

// NewReflector returns a Reflector backed by completer.
func NewReflector(completer llm.Completer, logger *zap.Logger) *Reflector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reflector{completer: completer, logger: logger}
}

type reflectionResponse struct {
	EvidenceQuality string   `json:"evidence_quality"`
	GapsIdentified  []string `json:"gaps_identified"`
	ShouldContinue  bool     `json:"should_continue"`
	Reasoning       string   `json:"reasoning"`
}

// Reflect evaluates the accumulated rounds. It never fails: completion or
// parse problems produce the fallback reflection. ShouldContinue is forced
// false on the last allowed round and after a round with no sources.
func (r *Reflector) Reflect(ctx context.Context, in ReflectInput) types.ResearchReflection {
	refl, ok := r.ask(ctx, in)
	if !ok {
		metrics.CompletionFallbacks.WithLabelValues("reflector").Inc()
		refl = fallbackReflection(in)
	}

	if in.Round >= in.MaxRounds && refl.ShouldContinue {
		refl.ShouldContinue = false
		r.logger.Debug("reflection continue overridden: round limit", zap.Int("round", in.Round))
	}
	if in.Current.SourceCount == 0 && refl.ShouldContinue {
		refl.ShouldContinue = false
		r.logger.Debug("reflection continue overridden: empty round", zap.Int("round", in.Round))
	}
	return refl
}

func (r *Reflector) ask(ctx context.Context, in ReflectInput) (types.ResearchReflection, bool) {
	if r.completer == nil {
		return types.ResearchReflection{}, false
	}
	prompt, err := render(reflectorUserTmpl, reflectionView(in))
	if err != nil {
		r.logger.Warn("rendering reflection prompt", zap.Error(err))
		return types.ResearchReflection{}, false
	}

	text, err := r.completer.Complete(ctx, reflectorSystemPrompt, prompt, 0.2, 600)
	if err != nil {
		r.logger.Warn("reflection failed, using fallback", zap.Error(err))
		return types.ResearchReflection{}, false
	}

	var resp reflectionResponse
	if err := llm.DecodeJSON(text, &resp); err != nil {
		r.logger.Warn("could not parse reflection, using fallback", zap.Error(err))
		return types.ResearchReflection{}, false
	}

	quality := types.EvidenceQuality(strings.ToLower(strings.TrimSpace(resp.EvidenceQuality)))
	switch quality {
	case types.QualityLow, types.QualityMedium, types.QualityHigh:
	default:
		r.logger.Debug("unknown evidence quality, using medium", zap.String("quality", resp.EvidenceQuality))
		quality = types.QualityMedium
	}

	gaps := make([]string, 0, len(resp.GapsIdentified))
	for _, g := range resp.GapsIdentified {
		if g = strings.TrimSpace(g); g != "" {
			gaps = append(gaps, g)
		}
	}

	return types.ResearchReflection{
		EvidenceQuality: quality,
		GapsIdentified:  gaps,
		ShouldContinue:  resp.ShouldContinue,
		Reasoning:       resp.Reasoning,
	}, true
}

func fallbackReflection(in ReflectInput) types.ResearchReflection {
	total := totalSources(in.rounds())
	return types.ResearchReflection{
		EvidenceQuality: types.QualityMedium,
		GapsIdentified:  []string{fallbackGap},
		ShouldContinue:  in.Round < in.MaxRounds && total < fallbackSourceTarget,
		Reasoning:       fmt.Sprintf("automatic assessment: %d sources after round %d", total, in.Round),
	}
}

type reflectionRound struct {
	Number    int
	Count     int
	Breakdown string
}

type reflectionSample struct {
	Provider string
	Title    string
	ID       string
}

func reflectionView(in ReflectInput) any {
	all := in.rounds()
	rounds := make([]reflectionRound, 0, len(all))
	var samples []reflectionSample

	for _, rr := range all {
		var parts []string
		for _, k := range types.AllProviders {
			recs := rr.SourcesByProvider[k]
			if len(recs) > 0 {
				parts = append(parts, fmt.Sprintf("%s %d", k.Label(), len(recs)))
			}
			for _, rec := range recs {
				if len(samples) >= maxReflectionSamples {
					break
				}
				samples = append(samples, reflectionSample{
					Provider: k.Label(),
					Title:    rec.Title,
					ID:       rec.IdentityKey(),
				})
			}
		}
		breakdown := strings.Join(parts, ", ")
		if breakdown == "" {
			breakdown = "none"
		}
		rounds = append(rounds, reflectionRound{Number: rr.RoundNumber, Count: rr.SourceCount, Breakdown: breakdown})
	}

	return struct {
		Question  string
		Round     int
		MaxRounds int
		Total     int
		Rounds    []reflectionRound
		Samples   []reflectionSample
	}{in.Question, in.Round, in.MaxRounds, totalSources(all), rounds, samples}
}

func totalSources(rounds []types.RoundResult) int {
	n := 0
	for _, rr := range rounds {
		n += rr.SourceCount
	}
	return n
}
