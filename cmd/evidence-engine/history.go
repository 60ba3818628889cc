// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/research"
	"github.com/pdiddy/evidence-engine/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse saved research sessions",
	Long: `Browse research sessions saved with "research --save".

Sessions are stored in a SQLite database (default data/evidence.db,
configurable as store.path).`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		sessions, err := st.ListSessions(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if done, err := writeStructured(cmd.OutOrStdout(), format, sessions); done {
			return err
		}
		formatSessionList(cmd.OutOrStdout(), sessions)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show a saved session by ID or unique ID prefix",
	Long: `Show a saved session by ID or unique ID prefix.

With --file, the session is read from a YAML file written by
"research --out" instead of the history database.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if path, _ := cmd.Flags().GetString("file"); path != "" {
			if len(args) > 0 {
				return fmt.Errorf("give either a session ID or --file, not both")
			}
			out, err := research.ReadOutputFile(path)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), format, out)
		}
		if len(args) == 0 {
			return fmt.Errorf("a session ID or --file is required")
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		out, err := st.GetSession(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrAmbiguousID) {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), format, out)
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search previously selected sources by title or citation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		hits, err := st.SearchSources(cmd.Context(), strings.Join(args, " "), limit)
		if err != nil {
			return err
		}
		if done, err := writeStructured(cmd.OutOrStdout(), format, hits); done {
			return err
		}
		formatSourceHits(cmd.OutOrStdout(), hits)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{historyListCmd, historyShowCmd, historySearchCmd} {
		c.Flags().String("format", formatTable, "output format: table, json, yaml")
		historyCmd.AddCommand(c)
	}
	historyListCmd.Flags().Int("limit", 20, "maximum sessions to list")
	historyShowCmd.Flags().String("file", "", "read the session from a YAML file written by research --out")
	historySearchCmd.Flags().Int("limit", 50, "maximum sources to return")

	rootCmd.AddCommand(historyCmd)
}

func openStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Store)
}

func formatSessionList(w io.Writer, sessions []store.SessionSummary) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No saved sessions.")
		return
	}

	fmt.Fprintf(w, "%-8s  %-16s  %-4s  %-50s  %-6s  %-8s  %s\n",
		"ID", "Started", "Tier", "Question", "Rounds", "Selected", "Tokens")
	fmt.Fprintln(w, strings.Repeat("-", 115))
	for _, s := range sessions {
		fmt.Fprintf(w, "%-8s  %-16s  %-4s  %-50s  %-6d  %-8d  %d\n",
			shortID(s.ID), s.StartedAt.Format("2006-01-02 15:04"), s.Tier,
			clip(s.Question, 50), s.Rounds, s.Selected, s.TotalTokens)
	}
	fmt.Fprintf(w, "\n%d sessions\n", len(sessions))
}

func formatSourceHits(w io.Writer, hits []store.SourceHit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No sources found.")
		return
	}

	fmt.Fprintf(w, "%-8s  %-4s  %-18s  %-60s  %s\n", "Session", "#", "Source", "Title", "Score")
	fmt.Fprintln(w, strings.Repeat("-", 105))
	for _, h := range hits {
		fmt.Fprintf(w, "%-8s  %-4d  %-18s  %-60s  %.0f\n",
			shortID(h.SessionID), h.Position, clip(h.Kind.Label(), 18), clip(h.Title, 60), h.Relevance)
	}
	fmt.Fprintf(w, "\n%d sources\n", len(hits))
}

// shortID returns the leading characters of a session ID, enough to pass
// to "history show" as a prefix.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
