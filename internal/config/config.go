// Package config provides YAML-based configuration loading for Tradewind.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Tradewind configuration, loaded from config.yaml.
type Config struct {
	DB          DBConfig          `yaml:"db"`
	Supervisor  SupervisorConfig  `yaml:"supervisor"`
	Sourcing    SourcingConfig    `yaml:"sourcing"`
	Compliance  ComplianceConfig  `yaml:"compliance"`
	Negotiation NegotiationConfig `yaml:"negotiation"`
	Trace       TraceConfig       `yaml:"trace"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Notify      NotifyConfig      `yaml:"notify"`
	Seed        int64             `yaml:"seed"` // sampler seed; 0 means seed from the clock
	Suppliers   []SupplierConfig  `yaml:"suppliers"`
}

// DBConfig selects the persistence backend: a local sqlite file (default) or
// a shared MySQL-compatible server.
type DBConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "mysql"
	Path     string `yaml:"path"`   // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// SupervisorConfig bounds the escalation/recovery protocol.
type SupervisorConfig struct {
	RetryBudget          int `yaml:"retry_budget"`           // total re-issued searches per conversation
	ExpansionsPerTrigger int `yaml:"expansions_per_trigger"` // re-issues allowed per escalation type
}

// SourcingConfig tunes supplier discovery.
type SourcingConfig struct {
	QualityThreshold      float64 `yaml:"quality_threshold"`       // minimum supplier quality to be a candidate
	MaxCandidates         int     `yaml:"max_candidates"`          // cap on candidates forwarded to compliance
	MarketDropProbability float64 `yaml:"market_drop_probability"` // chance each candidate is unavailable this run
	ExpandedSearchSuccess float64 `yaml:"expanded_search_success"` // chance a relaxed search turns up alternatives
	BudgetTightPerUnit    float64 `yaml:"budget_tight_per_unit"`   // per-unit budget below this biases budget_optimized
}

// ComplianceConfig tunes the risk assessment decision policy.
type ComplianceConfig struct {
	AutoApproveConfidence float64 `yaml:"auto_approve_confidence"` // confidence above this allows auto_approve
	EscalateConfidence    float64 `yaml:"escalate_confidence"`     // high risk below this confidence escalates
	MinFinancialRating    string  `yaml:"min_financial_rating"`    // worst acceptable rating, e.g. "B-"
}

// NegotiationConfig holds the approach-dependent probability bands and
// savings targets. Bands are configuration, not hidden constants.
type NegotiationConfig struct {
	SuccessCollaborative     float64 `yaml:"success_collaborative"`
	SuccessCompetitive       float64 `yaml:"success_competitive"`
	SuccessBalanced          float64 `yaml:"success_balanced"`
	LeverageAdjustment       float64 `yaml:"leverage_adjustment"`        // added/subtracted for high/low leverage
	TargetSavingsCompetitive float64 `yaml:"target_savings_competitive"` // fraction, e.g. 0.15
	TargetSavingsDefault     float64 `yaml:"target_savings_default"`
	HighPerformanceThreshold float64 `yaml:"high_performance_threshold"` // avg learning score above this goes competitive
}

// TraceConfig controls the abandoned-conversation sweeper and activity digest.
type TraceConfig struct {
	AbandonAfterMin int    `yaml:"abandon_after_min"` // idle minutes before a conversation is marked abandoned
	SweepCron       string `yaml:"sweep_cron"`        // 5-field cron for the abandon sweep
	DigestCron      string `yaml:"digest_cron"`       // 5-field cron for the activity digest; empty disables
}

// DashboardConfig holds the HTTP API settings.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// NotifyConfig selects the escalation notifier platform.
type NotifyConfig struct {
	Platform string        `yaml:"platform"` // "", "slack", or "discord"
	Slack    SlackConfig   `yaml:"slack"`
	Discord  DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack Socket Mode credentials.
type SlackConfig struct {
	AppToken  string `yaml:"app_token"`
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord bot credentials.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// SupplierConfig describes one supplier in the market catalog.
type SupplierConfig struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Categories     []string `yaml:"categories"`
	BasePrice      float64  `yaml:"base_price"`
	LeadTimeDays   int      `yaml:"lead_time_days"`
	PricingTier    string   `yaml:"pricing_tier"` // budget, mid-range, premium
	QualityRating  float64  `yaml:"quality_rating"`
	FinancialGrade string   `yaml:"financial_grade"` // A+ .. D
	Certifications []string `yaml:"certifications"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied and the built-in
// supplier catalog, for use when no config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Path == "" {
		c.DB.Path = "tradewind.db"
	}
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.Database == "" {
		c.DB.Database = "tradewind"
	}
	if c.DB.User == "" {
		c.DB.User = "root"
	}
	if c.Supervisor.RetryBudget == 0 {
		c.Supervisor.RetryBudget = 2
	}
	if c.Supervisor.ExpansionsPerTrigger == 0 {
		c.Supervisor.ExpansionsPerTrigger = 1
	}
	if c.Sourcing.QualityThreshold == 0 {
		c.Sourcing.QualityThreshold = 75
	}
	if c.Sourcing.MaxCandidates == 0 {
		c.Sourcing.MaxCandidates = 5
	}
	if c.Sourcing.MarketDropProbability == 0 {
		c.Sourcing.MarketDropProbability = 0.25
	}
	if c.Sourcing.ExpandedSearchSuccess == 0 {
		c.Sourcing.ExpandedSearchSuccess = 0.30
	}
	if c.Sourcing.BudgetTightPerUnit == 0 {
		c.Sourcing.BudgetTightPerUnit = 50
	}
	if c.Compliance.AutoApproveConfidence == 0 {
		c.Compliance.AutoApproveConfidence = 0.8
	}
	if c.Compliance.EscalateConfidence == 0 {
		c.Compliance.EscalateConfidence = 0.7
	}
	if c.Compliance.MinFinancialRating == "" {
		c.Compliance.MinFinancialRating = "B-"
	}
	if c.Negotiation.SuccessCollaborative == 0 {
		c.Negotiation.SuccessCollaborative = 0.75
	}
	if c.Negotiation.SuccessCompetitive == 0 {
		c.Negotiation.SuccessCompetitive = 0.70
	}
	if c.Negotiation.SuccessBalanced == 0 {
		c.Negotiation.SuccessBalanced = 0.65
	}
	if c.Negotiation.LeverageAdjustment == 0 {
		c.Negotiation.LeverageAdjustment = 0.10
	}
	if c.Negotiation.TargetSavingsCompetitive == 0 {
		c.Negotiation.TargetSavingsCompetitive = 0.15
	}
	if c.Negotiation.TargetSavingsDefault == 0 {
		c.Negotiation.TargetSavingsDefault = 0.08
	}
	if c.Negotiation.HighPerformanceThreshold == 0 {
		c.Negotiation.HighPerformanceThreshold = 85
	}
	if c.Trace.AbandonAfterMin == 0 {
		c.Trace.AbandonAfterMin = 10
	}
	if c.Trace.SweepCron == "" {
		c.Trace.SweepCron = "* * * * *"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if len(c.Suppliers) == 0 {
		c.Suppliers = DefaultCatalog()
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("db.driver must be sqlite or mysql, got %q", c.DB.Driver))
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"sourcing.market_drop_probability", c.Sourcing.MarketDropProbability},
		{"sourcing.expanded_search_success", c.Sourcing.ExpandedSearchSuccess},
		{"compliance.auto_approve_confidence", c.Compliance.AutoApproveConfidence},
		{"compliance.escalate_confidence", c.Compliance.EscalateConfidence},
		{"negotiation.success_collaborative", c.Negotiation.SuccessCollaborative},
		{"negotiation.success_competitive", c.Negotiation.SuccessCompetitive},
		{"negotiation.success_balanced", c.Negotiation.SuccessBalanced},
	} {
		if p.v < 0 || p.v > 1 {
			errs = append(errs, fmt.Sprintf("%s must be in [0,1], got %v", p.name, p.v))
		}
	}
	switch c.Notify.Platform {
	case "", "slack", "discord":
	default:
		errs = append(errs, fmt.Sprintf("notify.platform must be slack or discord, got %q", c.Notify.Platform))
	}
	for i, s := range c.Suppliers {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("suppliers[%d].id is required", i))
		}
		if len(s.Categories) == 0 {
			errs = append(errs, fmt.Sprintf("suppliers[%d].categories is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
