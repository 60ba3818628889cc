// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"fmt"
	"strings"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Stopping thresholds.
const (
	// SufficientSources is the cumulative total at which high-quality
	// evidence may end the session.
	SufficientSources = 15

	// CoverageCeiling is the cumulative total that always ends the session.
	CoverageCeiling = 40

	// DiminishingReturnsFloor is the two-round total below which another
	// round is not worth running.
	DiminishingReturnsFloor = 3
)

// StoppingInput is everything the stopping evaluation depends on.
// Rounds holds every round so far, the current one last. A nil
// Reflection disables the reflection-based conditions.
type StoppingInput struct {
	RoundNumber int
	MaxRounds   int
	Current     types.RoundResult
	Rounds      []types.RoundResult
	Reflection  *types.ResearchReflection
}

// EvaluateStopping decides whether the research loop stops. It is pure:
// the same input always yields the same decision. Every triggered
// condition is recorded in order; Reason joins them.
func EvaluateStopping(in StoppingInput) types.StoppingDecision {
	total := totalSources(in.Rounds)
	refl := in.Reflection
	var triggered []string

	if in.RoundNumber >= in.MaxRounds {
		triggered = append(triggered, fmt.Sprintf("max rounds reached (%d/%d)", in.RoundNumber, in.MaxRounds))
	}
	if refl != nil && refl.EvidenceQuality == types.QualityHigh && len(refl.GapsIdentified) == 0 && total >= SufficientSources {
		triggered = append(triggered, "high quality evidence with no gaps")
	}
	if in.Current.SourceCount == 0 {
		triggered = append(triggered, "no new sources found")
	}
	if refl != nil && !refl.ShouldContinue {
		triggered = append(triggered, "reflection recommends stopping")
	}
	if total >= CoverageCeiling {
		triggered = append(triggered, fmt.Sprintf("comprehensive coverage reached (%d sources)", total))
	}
	if refl != nil && refl.EvidenceQuality == types.QualityHigh && len(refl.GapsIdentified) <= 1 && total >= SufficientSources {
		triggered = append(triggered, "high quality evidence with minimal gaps")
	}
	if n := len(in.Rounds); n >= 2 {
		lastTwo := in.Rounds[n-1].SourceCount + in.Rounds[n-2].SourceCount
		if lastTwo < DiminishingReturnsFloor {
			triggered = append(triggered, fmt.Sprintf("diminishing returns (%d sources in last two rounds)", lastTwo))
		}
	}

	if len(triggered) == 0 {
		return types.StoppingDecision{Reason: "continuing: no stopping condition met"}
	}
	return types.StoppingDecision{
		ShouldStop:          true,
		Reason:              strings.Join(triggered, "; "),
		TriggeredConditions: triggered,
	}
}

// ConditionLabel strips the parenthesized detail from a triggered
// condition, for use as a low-cardinality metric label.
func ConditionLabel(condition string) string {
	if i := strings.Index(condition, " ("); i >= 0 {
		return condition[:i]
	}
	return condition
}
