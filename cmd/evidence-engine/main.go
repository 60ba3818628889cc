// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the evidence-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/evidence-engine/internal/provider"
	"github.com/pdiddy/evidence-engine/internal/secrets"
	"github.com/pdiddy/evidence-engine/internal/store"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

// logger is built from --log-level before any subcommand runs.
var logger = zap.NewNop()

// rootCmd is the base command for the evidence-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "evidence-engine",
	Short: "Multi-round biomedical evidence retrieval",
	Long: `evidence-engine turns a research question into a deduplicated,
relevance-ranked, token-budgeted set of citable sources drawn from PubMed,
medRxiv, ClinicalTrials.gov, and Exa web search.

Each session runs several search rounds: the question is classified to
split the source budget, providers are searched concurrently, the evidence
is reviewed for gaps, and a refined query targets the most important gap
until a stopping condition fires.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(viper.GetString("log.level"))
		if err != nil {
			return err
		}
		logger = l

		dir := viper.GetString("secrets_dir")
		s, err := secrets.Load(dir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			logger.Debug("loaded secrets", zap.Strings("keys", s.Keys()))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./evidence-engine.yaml or ~/.config/evidence-engine/evidence-engine.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of API key files")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("secrets_dir", rootCmd.PersistentFlags().Lookup("secrets-dir"))

	setDefaults()
}

// setDefaults registers every config key so environment variables are
// picked up by Unmarshal even without a config file.
func setDefaults() {
	viper.SetDefault("research.tier", string(types.TierT2))
	viper.SetDefault("research.max_rounds", 0)
	viper.SetDefault("research.token_budget", types.DefaultTokenBudget)
	viper.SetDefault("research.min_relevance_score", float64(types.DefaultMinRelevanceScore))
	viper.SetDefault("research.timeouts.pubmed", types.DefaultPubMedTimeout)
	viper.SetDefault("research.timeouts.medrxiv", types.DefaultMedRxivTimeout)
	viper.SetDefault("research.timeouts.clinicaltrials", types.DefaultClinicalTrialsTimeout)
	viper.SetDefault("research.timeouts.exa", types.DefaultExaTimeout)

	viper.SetDefault("providers.timeout", "30s")
	viper.SetDefault("providers.user_agent", "evidence-engine/"+version)
	viper.SetDefault("providers.ncbi_api_key", "")
	viper.SetDefault("providers.exa_api_key", "")
	viper.SetDefault("providers.europepmc_email", "")

	viper.SetDefault("ai.model", "claude-sonnet-4-5-20250929")
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.max_retries", 2)

	viper.SetDefault("cache.redis_addr", "")
	viper.SetDefault("cache.ttl", provider.DefaultCacheTTL)

	viper.SetDefault("store.path", store.DefaultPath)
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("evidence-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "evidence-engine"))
		}
	}

	viper.SetEnvPrefix("EVIDENCE_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig decodes the merged configuration and fills credentials from
// .secrets/ where config and environment leave them empty.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	cfg.AI.APIKey = loadedSecrets.Resolve(secrets.AnthropicAPIKey, cfg.AI.APIKey)
	cfg.Providers.ExaAPIKey = loadedSecrets.Resolve(secrets.ExaAPIKey, cfg.Providers.ExaAPIKey)
	cfg.Providers.NCBIAPIKey = loadedSecrets.Resolve(secrets.NCBIAPIKey, cfg.Providers.NCBIAPIKey)
	cfg.Providers.EuropePMCEmail = loadedSecrets.Resolve(secrets.EuropePMCEmail, cfg.Providers.EuropePMCEmail)
	return cfg, nil
}

// newLogger builds a console logger on stderr at the given level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
