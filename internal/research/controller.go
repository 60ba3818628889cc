// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package research implements the multi-round evidence-retrieval loop:
// query analysis and source budgeting, translation, concurrent
// fault-tolerant fetching with cross-round deduplication, reflection,
// stopping evaluation, and gap-driven query refinement.
package research

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/llm"
	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/internal/provider"
	"github.com/pdiddy/evidence-engine/internal/selection"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// ErrEmptyQuestion is returned by Run for a blank question.
var ErrEmptyQuestion = errors.New("research question is empty")

// State is a step of the research loop.
type State string

const (
	StatePlanning   State = "planning"
	StateFetching   State = "fetching"
	StateReflecting State = "reflecting"
	StateDeciding   State = "deciding"
	StateRefining   State = "refining"
	StateStopped    State = "stopped"
)

// Completeness scores by final evidence quality.
var completenessByQuality = map[types.EvidenceQuality]float64{
	types.QualityHigh:   1.0,
	types.QualityMedium: 0.66,
	types.QualityLow:    0.33,
}

// completenessUnknown applies when no reflection ran.
const completenessUnknown = 0.5

// Controller runs research sessions. Each Run owns a fresh Deduplicator,
// so one Controller may serve sessions one after another or concurrently.
type Controller struct {
	clients    []provider.Client
	analyzer   *Analyzer
	translator *Translator
	reflector  *Reflector
	refiner    *Refiner
	cfg        types.ResearchConfig
	logger     *zap.Logger

	// Progress, when set, receives fetch progress events.
	Progress ProgressSink

	// Now returns the time used for the ranking recency boost.
	Now func() time.Time
}

// NewController returns a Controller over the given provider clients and
// completion service. cfg is validated and defaulted.
func NewController(clients []provider.Client, completer llm.Completer, cfg types.ResearchConfig, logger *zap.Logger) (*Controller, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := cfg.WithDefaults()
	if err != nil {
		return nil, fmt.Errorf("research config: %w", err)
	}
	return &Controller{
		clients:    clients,
		analyzer:   NewAnalyzer(completer, logger),
		translator: NewTranslator(completer, logger),
		reflector:  NewReflector(completer, logger),
		refiner:    NewRefiner(completer, logger),
		cfg:        cfg,
		logger:     logger,
		Now:        time.Now,
	}, nil
}

// Run executes one research session for question and returns the ranked,
// budgeted output. Provider and completion failures degrade the result
// but never fail the session; only a blank question or a cancelled
// context returns an error.
func (c *Controller) Run(ctx context.Context, question string) (*types.ResearchOutput, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("research session: %w", err)
	}

	out := &types.ResearchOutput{
		SessionID: uuid.NewString(),
		Question:  question,
		Tier:      c.cfg.Tier,
		StartedAt: c.Now(),
	}
	log := c.logger.With(zap.String("session", out.SessionID))
	enter := func(s State, round int) {
		out.States = append(out.States, string(s))
		log.Info("research state", zap.String("state", string(s)), zap.Int("round", round))
	}

	// Planning fixes the source budget for the whole session.
	enter(StatePlanning, 0)
	budget, err := c.cfg.Tier.Budget()
	if err != nil {
		return nil, fmt.Errorf("research session: %w", err)
	}
	out.Analysis = c.plan(ctx, question, log)
	out.Counts = CalculateSourceCounts(out.Analysis.Ratios, budget.NonWeb)
	out.Counts.Exa = budget.Web
	log.Info("source budget",
		zap.String("category", string(out.Analysis.Category)),
		zap.Bool("fallback", out.Analysis.Fallback),
		zap.Int("pubmed", out.Counts.PubMed),
		zap.Int("medrxiv", out.Counts.MedRxiv),
		zap.Int("clinicaltrials", out.Counts.ClinicalTrials),
		zap.Int("exa", out.Counts.Exa))

	translated := c.translator.Translate(ctx, question)
	query := translated
	fetcher := NewFetcher(c.clients, NewDeduplicator(), c.cfg.Timeouts, log)
	maxRounds := c.cfg.MaxRounds

	for round := 1; round <= maxRounds; round++ {
		enter(StateFetching, round)
		current := fetcher.Fetch(ctx, round, query, out.Counts, c.Progress)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("research session round %d: %w", round, err)
		}
		previous := out.Rounds
		out.Rounds = append(out.Rounds, current)

		// The last allowed round cannot continue, so it is not reflected on.
		var refl *types.ResearchReflection
		if round < maxRounds {
			enter(StateReflecting, round)
			r := c.reflector.Reflect(ctx, ReflectInput{
				Question:  question,
				Round:     round,
				MaxRounds: maxRounds,
				Current:   current,
				Previous:  previous,
			})
			refl = &r
			out.FinalReflection = refl
		}

		enter(StateDeciding, round)
		out.Decision = EvaluateStopping(StoppingInput{
			RoundNumber: round,
			MaxRounds:   maxRounds,
			Current:     current,
			Rounds:      out.Rounds,
			Reflection:  refl,
		})
		if out.Decision.ShouldStop {
			break
		}

		enter(StateRefining, round)
		refined := c.refiner.Refine(ctx, question, refl.GapsIdentified, round)
		out.Refinements = append(out.Refinements, refined)
		query = c.translator.Translate(ctx, refined.Refined)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("research session: %w", err)
	}

	enter(StateStopped, len(out.Rounds))
	log.Info("research stopped", zap.String("reason", out.Decision.Reason))

	var all []types.SourceRecord
	for _, rr := range out.Rounds {
		all = append(all, rr.Sources()...)
	}
	// Ranking stays anchored to the question; refined queries never feed it.
	ranked := selection.Rank(question, translated, all, c.Now())
	selCfg := types.DefaultSelectionConfig()
	selCfg.TokenBudget = c.cfg.TokenBudget
	selCfg.MinRelevanceScore = *c.cfg.MinRelevanceScore
	result := selection.Select(ranked, selCfg)

	out.Selected = result.Selected
	out.Summary = types.ResearchSummary{
		SelectedCount:      len(result.Selected),
		TotalTokens:        result.TotalTokens,
		QualityMetrics:     result.QualityMetrics,
		SelectionStrategy:  result.Strategy,
		TotalSourcesFound:  len(all),
		DuplicatesFiltered: fetcher.Dedup().Stats().DuplicatesFiltered,
		RoundsCompleted:    len(out.Rounds),
		Completeness:       Completeness(out.FinalReflection),
	}
	out.Duration = c.Now().Sub(out.StartedAt)

	metrics.RoundsPerSession.Observe(float64(len(out.Rounds)))
	metrics.SelectedTokens.Observe(float64(result.TotalTokens))
	for _, cond := range out.Decision.TriggeredConditions {
		metrics.StopConditions.WithLabelValues(ConditionLabel(cond)).Inc()
	}

	log.Info("research complete",
		zap.Int("rounds", out.Summary.RoundsCompleted),
		zap.Int("found", out.Summary.TotalSourcesFound),
		zap.Int("selected", out.Summary.SelectedCount),
		zap.Int("tokens", out.Summary.TotalTokens))
	return out, nil
}

// plan returns the session's query analysis: the configured fixed ratios
// when set, otherwise the Analyzer's classification.
func (c *Controller) plan(ctx context.Context, question string, log *zap.Logger) types.QueryAnalysis {
	fixed := c.cfg.FixedRatios
	if fixed == nil {
		return c.analyzer.Analyze(ctx, question)
	}
	ratios := *fixed
	if sum := ratios.Sum(); math.Abs(sum-1.0) > ratioTolerance {
		log.Error("configured provider ratios do not sum to 1, rescaling proportionally",
			zap.Float64("sum", sum),
			zap.Float64("pubmed", ratios.PubMed),
			zap.Float64("medrxiv", ratios.MedRxiv),
			zap.Float64("clinicaltrials", ratios.ClinicalTrials))
		ratios = normalizeRatios(ratios)
	}
	return types.QueryAnalysis{
		Category:   types.CategoryGeneral,
		Ratios:     ratios,
		Confidence: 1,
		Reasoning:  "fixed allocation from configuration",
	}
}

// Completeness maps the final reflection's evidence quality to a score in
// [0,1]. A session without reflection scores 0.5.
func Completeness(refl *types.ResearchReflection) float64 {
	if refl == nil {
		return completenessUnknown
	}
	if v, ok := completenessByQuality[refl.EvidenceQuality]; ok {
		return v
	}
	return completenessUnknown
}
