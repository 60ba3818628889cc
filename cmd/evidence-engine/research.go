// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/llm"
	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/internal/provider"
	"github.com/pdiddy/evidence-engine/internal/research"
	"github.com/pdiddy/evidence-engine/internal/store"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var researchCmd = &cobra.Command{
	Use:   "research <question>",
	Short: "Run a multi-round evidence search for a question",
	Long: `Run a research session for a biomedical question.

The question is classified to split the source budget between PubMed,
medRxiv, and ClinicalTrials.gov; web results from Exa are added when an
Exa API key is configured. Non-English questions are translated for the
providers. Rounds continue until the evidence is sufficient, returns
diminish, or the round limit is reached.

The selected sources are printed as a numbered table. Use --format json
or --format yaml for the full session record.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	f := researchCmd.Flags()
	f.String("tier", "", "source budget tier: T2 or T3")
	f.Int("max-rounds", 0, "maximum fetch rounds (default from tier)")
	f.Int("token-budget", 0, "token budget for the selected sources")
	f.Float64("min-relevance", types.DefaultMinRelevanceScore, "minimum relevance score for selection; 0 keeps every source")
	f.String("redis-addr", "", "Redis host:port for caching provider responses")

	f.String("format", "table", "output format: table, json, yaml")
	f.Bool("save", false, "save the session to the history database")
	f.String("out", "", "write the session as YAML to this file")
	f.String("metrics-file", "", "write Prometheus metrics in text format to this file")
	f.Bool("quiet", false, "suppress fetch progress on stderr")

	viper.BindPFlag("research.tier", f.Lookup("tier"))
	viper.BindPFlag("research.max_rounds", f.Lookup("max-rounds"))
	viper.BindPFlag("research.token_budget", f.Lookup("token-budget"))
	viper.BindPFlag("research.min_relevance_score", f.Lookup("min-relevance"))
	viper.BindPFlag("cache.redis_addr", f.Lookup("redis-addr"))

	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	format, _ := cmd.Flags().GetString("format")
	if !validFormat(format) {
		return fmt.Errorf("unknown format %q (want table, json, or yaml)", format)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	clients := provider.NewClients(cfg.Providers)
	if cfg.Providers.ExaAPIKey == "" {
		logger.Info("no Exa API key configured; web search disabled")
	}
	if cfg.Cache.RedisAddr != "" {
		cache, err := provider.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL)
		if err != nil {
			logger.Warn("provider cache unavailable", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
		} else {
			defer cache.Close()
			clients = provider.WithCache(clients, cache, logger)
		}
	}

	ctrl, err := research.NewController(clients, newCompleter(cfg), cfg.Research, logger)
	if err != nil {
		return err
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		ctrl.Progress = progressPrinter(cmd.ErrOrStderr())
	}

	out, err := ctrl.Run(ctx, question)
	if err != nil {
		return err
	}

	if err := writeResult(cmd.OutOrStdout(), format, out); err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("out"); path != "" {
		if err := research.WriteOutputFile(path, out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Session written to %s\n", path)
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		if err := saveSession(ctx, cfg.Store, out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Session %s saved\n", out.SessionID)
	}

	if path, _ := cmd.Flags().GetString("metrics-file"); path != "" {
		if err := metrics.Write(path); err != nil {
			return err
		}
	}
	return nil
}

// newCompleter returns the Claude backend, or nil when no API key is
// configured so every component uses its heuristic fallback.
func newCompleter(cfg types.Config) llm.Completer {
	if cfg.AI.APIKey == "" {
		logger.Warn("no Anthropic API key configured; using heuristic analysis only")
		return nil
	}
	return &llm.ClaudeBackend{
		APIKey:     cfg.AI.APIKey,
		Model:      cfg.AI.Model,
		Client:     &http.Client{Timeout: cfg.Providers.Timeout},
		MaxRetries: cfg.AI.MaxRetries,
		Logger:     logger,
	}
}

func saveSession(ctx context.Context, cfg types.StoreConfig, out *types.ResearchOutput) error {
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.SaveSession(ctx, out)
}

// progressPrinter reports provider starts and completions on w. The
// running totals are left to the debug log.
func progressPrinter(w io.Writer) research.ProgressSink {
	return func(ev types.ProgressEvent) {
		switch ev.Type {
		case types.ProgressStarted:
			fmt.Fprintf(w, "[round %d] %-20s requesting %d\n", ev.Round, ev.Provider.Label(), ev.Count)
		case types.ProgressCompleted:
			status := "ok"
			if !ev.Success {
				status = "failed"
			}
			fmt.Fprintf(w, "[round %d] %-20s %3d sources %6dms  %s\n", ev.Round, ev.Provider.Label(), ev.Count, ev.DurationMS, status)
		case types.ProgressUpdate:
			logger.Debug("fetch progress",
				zap.Int("round", ev.Round),
				zap.Int("fetched", ev.Fetched),
				zap.Int("requested", ev.Total))
		}
	}
}
