// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

func reflection(q types.EvidenceQuality, cont bool, gaps ...string) *types.ResearchReflection {
	return &types.ResearchReflection{EvidenceQuality: q, ShouldContinue: cont, GapsIdentified: gaps}
}

func stoppingInput(round, maxRounds int, counts []int, refl *types.ResearchReflection) StoppingInput {
	rounds := make([]types.RoundResult, len(counts))
	for i, c := range counts {
		rounds[i] = roundWith(i+1, c)
	}
	return StoppingInput{
		RoundNumber: round,
		MaxRounds:   maxRounds,
		Current:     rounds[len(rounds)-1],
		Rounds:      rounds,
		Reflection:  refl,
	}
}

func TestEvaluateStopping_Conditions(t *testing.T) {
	tests := []struct {
		name string
		in   StoppingInput
		want []string
	}{
		{
			name: "continue",
			in:   stoppingInput(1, 3, []int{8}, reflection(types.QualityMedium, true, "a", "b")),
			want: nil,
		},
		{
			name: "max rounds",
			in:   stoppingInput(3, 3, []int{5, 5, 5}, nil),
			want: []string{"max rounds reached (3/3)"},
		},
		{
			name: "high quality no gaps",
			in:   stoppingInput(2, 3, []int{10, 6}, reflection(types.QualityHigh, true)),
			want: []string{"high quality evidence with no gaps", "high quality evidence with minimal gaps"},
		},
		{
			name: "high quality one gap",
			in:   stoppingInput(2, 3, []int{10, 6}, reflection(types.QualityHigh, true, "dosing")),
			want: []string{"high quality evidence with minimal gaps"},
		},
		{
			name: "high quality too few sources",
			in:   stoppingInput(1, 3, []int{10}, reflection(types.QualityHigh, true)),
			want: nil,
		},
		{
			name: "reflection says stop",
			in:   stoppingInput(1, 3, []int{4}, reflection(types.QualityLow, false, "a", "b")),
			want: []string{"reflection recommends stopping"},
		},
		{
			name: "coverage ceiling",
			in:   stoppingInput(2, 3, []int{25, 20}, reflection(types.QualityMedium, true, "a", "b")),
			want: []string{"comprehensive coverage reached (45 sources)"},
		},
		{
			name: "diminishing returns",
			in:   stoppingInput(3, 4, []int{10, 1, 1}, reflection(types.QualityMedium, true, "a", "b")),
			want: []string{"diminishing returns (2 sources in last two rounds)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateStopping(tt.in)
			assert.Equal(t, tt.want, got.TriggeredConditions)
			assert.Equal(t, len(tt.want) > 0, got.ShouldStop)
		})
	}
}

func TestEvaluateStopping_MaxRoundsBoundary(t *testing.T) {
	// Low quality, gaps empty, reflection wants to continue: still stops.
	in := stoppingInput(2, 2, []int{6, 7}, reflection(types.QualityLow, true))
	got := EvaluateStopping(in)
	assert.True(t, got.ShouldStop)
	assert.Contains(t, got.TriggeredConditions, "max rounds reached (2/2)")

	in = stoppingInput(1, 2, []int{6}, reflection(types.QualityLow, true, "x", "y"))
	assert.False(t, EvaluateStopping(in).ShouldStop)
}

func TestEvaluateStopping_NoNewSources(t *testing.T) {
	// Reflection content does not matter.
	for _, refl := range []*types.ResearchReflection{
		nil,
		reflection(types.QualityHigh, true, "a", "b", "c"),
		reflection(types.QualityLow, true),
	} {
		got := EvaluateStopping(stoppingInput(1, 3, []int{0}, refl))
		assert.True(t, got.ShouldStop)
		assert.Contains(t, got.TriggeredConditions, "no new sources found")
	}
}

func TestEvaluateStopping_CeilingWithMediumQuality(t *testing.T) {
	got := EvaluateStopping(stoppingInput(3, 5, []int{20, 15, 10}, reflection(types.QualityMedium, true, "a", "b")))
	assert.True(t, got.ShouldStop)
	assert.Equal(t, []string{"comprehensive coverage reached (45 sources)"}, got.TriggeredConditions)
}

func TestEvaluateStopping_NilReflectionDisablesReflectionConditions(t *testing.T) {
	got := EvaluateStopping(stoppingInput(2, 3, []int{10, 10}, nil))
	assert.False(t, got.ShouldStop)
	assert.Empty(t, got.TriggeredConditions)
}

func TestEvaluateStopping_DiminishingReturnsNeedsTwoRounds(t *testing.T) {
	got := EvaluateStopping(stoppingInput(1, 3, []int{2}, reflection(types.QualityMedium, true, "a", "b")))
	assert.False(t, got.ShouldStop)
}

func TestEvaluateStopping_RecordsAllConditions(t *testing.T) {
	got := EvaluateStopping(stoppingInput(2, 2, []int{1, 0}, reflection(types.QualityLow, false)))
	assert.Equal(t, []string{
		"max rounds reached (2/2)",
		"no new sources found",
		"reflection recommends stopping",
		"diminishing returns (1 sources in last two rounds)",
	}, got.TriggeredConditions)
	assert.Equal(t, "max rounds reached (2/2); no new sources found; reflection recommends stopping; diminishing returns (1 sources in last two rounds)", got.Reason)
}

func TestEvaluateStopping_Pure(t *testing.T) {
	in := stoppingInput(2, 3, []int{30, 12}, reflection(types.QualityHigh, false, "one"))
	first := EvaluateStopping(in)
	second := EvaluateStopping(in)
	assert.Equal(t, first, second)
	assert.Equal(t, 30, in.Rounds[0].SourceCount)
	assert.Equal(t, []string{"one"}, in.Reflection.GapsIdentified)
}

func TestConditionLabel(t *testing.T) {
	assert.Equal(t, "max rounds reached", ConditionLabel("max rounds reached (2/2)"))
	assert.Equal(t, "no new sources found", ConditionLabel("no new sources found"))
}
