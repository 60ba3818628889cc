// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validFormat(f string) bool {
	return f == formatTable || f == formatJSON || f == formatYAML
}

// writeStructured encodes v as indented JSON or YAML. It reports false
// for the table format so the caller prints its own layout.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func writeResult(w io.Writer, format string, out *types.ResearchOutput) error {
	if done, err := writeStructured(w, format, out); done {
		return err
	}
	formatSession(w, out)
	return nil
}

// formatSession prints the selected sources as a numbered table followed
// by the session summary. The numbers are the citation indices.
func formatSession(w io.Writer, out *types.ResearchOutput) {
	fmt.Fprintf(w, "Question: %s\n", out.Question)
	fmt.Fprintf(w, "Session:  %s (tier %s, category %s)\n\n", out.SessionID, out.Tier, out.Analysis.Category)

	if len(out.Selected) == 0 {
		fmt.Fprintln(w, "No sources selected.")
	} else {
		fmt.Fprintf(w, "%-4s  %-5s  %-18s  %-60s  %s\n", "#", "Score", "Source", "Title", "Badge")
		fmt.Fprintln(w, strings.Repeat("-", 120))
		for i, s := range out.Selected {
			fmt.Fprintf(w, "%-4d  %-5.0f  %-18s  %-60s  %s\n",
				i+1, s.RelevanceScore, clip(s.SourceType.Label(), 18), clip(s.Source.Title, 60), s.CredibilityBadge)
		}
	}

	sum := out.Summary
	fmt.Fprintf(w, "\n%d selected of %d found (%d duplicates filtered) in %d rounds\n",
		sum.SelectedCount, sum.TotalSourcesFound, sum.DuplicatesFiltered, sum.RoundsCompleted)
	fmt.Fprintf(w, "Tokens: %d  Relevance: avg %.1f, min %.1f, max %.1f  Completeness: %.0f%%\n",
		sum.TotalTokens, sum.QualityMetrics.AverageRelevance, sum.QualityMetrics.MinRelevance,
		sum.QualityMetrics.MaxRelevance, sum.Completeness*100)
	fmt.Fprintf(w, "Stopped: %s\n", out.Decision.Reason)

	for _, r := range out.Rounds {
		for _, k := range types.AllProviders {
			if msg, ok := r.Errors[k]; ok {
				fmt.Fprintf(w, "Warning: round %d %s: %s\n", r.RoundNumber, k.Label(), msg)
			}
		}
	}
}

// clip shortens s to n runes, marking the cut with "...".
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
