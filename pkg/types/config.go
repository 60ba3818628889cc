package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by the provider and AI clients.
type HTTPConfig struct {
	// Timeout is the HTTP client timeout. Per-provider fetch deadlines are
	// applied separately by the fetcher.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "evidence-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// AIConfig holds settings for the text-completion service.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for failed API calls (default 2).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// Tier is a preset source budget.
type Tier string

const (
	TierT2 Tier = "T2"
	TierT3 Tier = "T3"
)

// TierBudget is the per-round source allocation implied by a tier.
type TierBudget struct {
	// NonWeb is split between PubMed, medRxiv, and ClinicalTrials by the
	// Query Analyzer.
	NonWeb int
	// Web is the fixed Exa allocation.
	Web int
	// DefaultMaxRounds applies when ResearchConfig.MaxRounds is zero.
	DefaultMaxRounds int
}

// Budget returns the allocation for the tier.
func (t Tier) Budget() (TierBudget, error) {
	switch t {
	case TierT2:
		return TierBudget{NonWeb: 5, Web: 5, DefaultMaxRounds: 2}, nil
	case TierT3:
		return TierBudget{NonWeb: 15, Web: 10, DefaultMaxRounds: 3}, nil
	default:
		return TierBudget{}, fmt.Errorf("unknown tier %q (want T2 or T3)", string(t))
	}
}

// Default timeouts for each provider's fetch task. Literature, preprint,
// and registry providers run on slower infrastructure than the commercial
// web-search provider.
const (
	DefaultPubMedTimeout         = 15 * time.Second
	DefaultMedRxivTimeout        = 10 * time.Second
	DefaultClinicalTrialsTimeout = 12 * time.Second
	DefaultExaTimeout            = 10 * time.Second
)

// ProviderTimeouts bounds each provider's fetch task.
type ProviderTimeouts struct {
	PubMed         time.Duration `json:"pubmed" yaml:"pubmed" mapstructure:"pubmed"`
	MedRxiv        time.Duration `json:"medrxiv" yaml:"medrxiv" mapstructure:"medrxiv"`
	ClinicalTrials time.Duration `json:"clinicaltrials" yaml:"clinicaltrials" mapstructure:"clinicaltrials"`
	Exa            time.Duration `json:"exa" yaml:"exa" mapstructure:"exa"`
}

// For returns the timeout for provider k, falling back to the default.
func (t ProviderTimeouts) For(k ProviderKind) time.Duration {
	var d, def time.Duration
	switch k {
	case ProviderPubMed:
		d, def = t.PubMed, DefaultPubMedTimeout
	case ProviderMedRxiv:
		d, def = t.MedRxiv, DefaultMedRxivTimeout
	case ProviderClinicalTrials:
		d, def = t.ClinicalTrials, DefaultClinicalTrialsTimeout
	case ProviderExa:
		d, def = t.Exa, DefaultExaTimeout
	default:
		def = DefaultExaTimeout
	}
	if d <= 0 {
		return def
	}
	return d
}

// ResearchConfig holds the session options of the research loop.
type ResearchConfig struct {
	// Tier selects the source budget: T2 or T3.
	Tier Tier `json:"tier" yaml:"tier" mapstructure:"tier"`

	// MaxRounds caps the number of fetch rounds (default from the tier).
	MaxRounds int `json:"max_rounds" yaml:"max_rounds" mapstructure:"max_rounds"`

	// TokenBudget caps the estimated tokens of the selected sources (default 16800).
	TokenBudget int `json:"token_budget" yaml:"token_budget" mapstructure:"token_budget"`

	// MinRelevanceScore drops ranked sources scoring below it. Nil means
	// the default of 40; 0 keeps every ranked source.
	MinRelevanceScore *float64 `json:"min_relevance_score,omitempty" yaml:"min_relevance_score,omitempty" mapstructure:"min_relevance_score"`

	// Timeouts bounds each provider's fetch task.
	Timeouts ProviderTimeouts `json:"timeouts" yaml:"timeouts" mapstructure:"timeouts"`

	// FixedRatios, when set, bypasses the Query Analyzer and splits the
	// non-web budget with these ratios.
	FixedRatios *ProviderRatios `json:"fixed_ratios,omitempty" yaml:"fixed_ratios,omitempty" mapstructure:"fixed_ratios"`
}

// Defaults for ResearchConfig and SelectionConfig.
const (
	DefaultTokenBudget         = 16800
	DefaultMinRelevanceScore   = 40
	DefaultBaseLimit           = 25
	DefaultExtendedLimit       = 30
	DefaultHighQualityScore    = 70
	DefaultSimilarityThreshold = 0.85
)

// WithDefaults returns a copy with zero fields replaced by defaults.
func (c ResearchConfig) WithDefaults() (ResearchConfig, error) {
	if c.Tier == "" {
		c.Tier = TierT2
	}
	budget, err := c.Tier.Budget()
	if err != nil {
		return c, err
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = budget.DefaultMaxRounds
	}
	if c.TokenBudget <= 0 {
		c.TokenBudget = DefaultTokenBudget
	}
	switch {
	case c.MinRelevanceScore == nil:
		v := float64(DefaultMinRelevanceScore)
		c.MinRelevanceScore = &v
	case *c.MinRelevanceScore < 0 || *c.MinRelevanceScore > 100:
		return c, fmt.Errorf("min_relevance_score %v out of range [0, 100]", *c.MinRelevanceScore)
	}
	return c, nil
}

// SelectionConfig controls the final budgeted source cut. A negative
// MinRelevanceScore selects the default; 0 disables the floor.
type SelectionConfig struct {
	BaseLimit           int     `json:"base_limit" yaml:"base_limit"`
	ExtendedLimit       int     `json:"extended_limit" yaml:"extended_limit"`
	HighQualityScore    float64 `json:"high_quality_score" yaml:"high_quality_score"`
	TokenBudget         int     `json:"token_budget" yaml:"token_budget"`
	MinRelevanceScore   float64 `json:"min_relevance_score" yaml:"min_relevance_score"`
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
}

// DefaultSelectionConfig returns the standard selection settings.
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{
		BaseLimit:           DefaultBaseLimit,
		ExtendedLimit:       DefaultExtendedLimit,
		HighQualityScore:    DefaultHighQualityScore,
		TokenBudget:         DefaultTokenBudget,
		MinRelevanceScore:   DefaultMinRelevanceScore,
		SimilarityThreshold: DefaultSimilarityThreshold,
	}
}

// ProviderConfig holds credentials and pacing for the provider clients.
type ProviderConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// NCBIAPIKey raises the PubMed E-utilities rate limit from 3 to 10 req/s.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty" mapstructure:"ncbi_api_key"`

	// ExaAPIKey authenticates the web-search provider.
	ExaAPIKey string `json:"exa_api_key,omitempty" yaml:"exa_api_key,omitempty" mapstructure:"exa_api_key"`

	// EuropePMCEmail is sent with preprint queries for polite access.
	EuropePMCEmail string `json:"europepmc_email,omitempty" yaml:"europepmc_email,omitempty" mapstructure:"europepmc_email"`
}

// CacheConfig enables the Redis provider-response cache.
type CacheConfig struct {
	// RedisAddr is host:port of the Redis server; empty disables caching.
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`

	// TTL is how long cached provider responses stay valid (default 6h).
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
}

// StoreConfig locates the SQLite session history.
type StoreConfig struct {
	// Path is the database file (default "data/evidence.db").
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// Config groups every configuration section of the CLI.
type Config struct {
	Research  ResearchConfig `json:"research" yaml:"research" mapstructure:"research"`
	Providers ProviderConfig `json:"providers" yaml:"providers" mapstructure:"providers"`
	AI        AIConfig       `json:"ai" yaml:"ai" mapstructure:"ai"`
	Cache     CacheConfig    `json:"cache" yaml:"cache" mapstructure:"cache"`
	Store     StoreConfig    `json:"store" yaml:"store" mapstructure:"store"`
}
