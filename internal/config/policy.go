package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/kishorekota-dev/chatrouter/internal/types"
)

// SLAThresholds is the maximum tolerated wait per priority band before automatic escalation
type SLAThresholds struct {
	Urgent time.Duration `yaml:"urgent" env:"SLA_URGENT" env-default:"30s"`
	High   time.Duration `yaml:"high" env:"SLA_HIGH" env-default:"2m"`
	Medium time.Duration `yaml:"medium" env:"SLA_MEDIUM" env-default:"5m"`
	Low    time.Duration `yaml:"low" env:"SLA_LOW" env-default:"10m"`
}

// For returns the threshold of a band. Unknown bands get the low threshold.
func (s SLAThresholds) For(p types.Priority) time.Duration {
	switch p {
	case types.PriorityUrgent:
		return s.Urgent
	case types.PriorityHigh:
		return s.High
	case types.PriorityMedium:
		return s.Medium
	default:
		return s.Low
	}
}

// Policy holds the routing and escalation policy
type Policy struct {
	MatchInterval         time.Duration         `yaml:"match_interval" env:"MATCH_INTERVAL" env-default:"1s"`
	SLASweepInterval      time.Duration         `yaml:"sla_sweep_interval" env:"SLA_SWEEP_INTERVAL" env-default:"5s"`
	AgentSweepInterval    time.Duration         `yaml:"agent_sweep_interval" env:"AGENT_SWEEP_INTERVAL" env-default:"30s"`
	AgentIdleTimeout      time.Duration         `yaml:"agent_idle_timeout" env:"AGENT_IDLE_TIMEOUT" env-default:"10m"`
	MaxAttempts           int                   `yaml:"max_attempts" env:"MAX_ATTEMPTS" env-default:"3"`
	MaxEscalations        int                   `yaml:"max_escalations" env:"MAX_ESCALATIONS" env-default:"3"`
	ExhaustedPolicy       types.ExhaustedPolicy `yaml:"exhausted_policy" env:"EXHAUSTED_POLICY" env-default:"force_assign"`
	InvalidPriorityPolicy types.PriorityPolicy  `yaml:"invalid_priority_policy" env:"INVALID_PRIORITY_POLICY" env-default:"default"`
	DefaultMaxChats       int                   `yaml:"default_max_chats" env:"DEFAULT_MAX_CHATS" env-default:"3"`
	ChatHistoryLimit      int                   `yaml:"chat_history_limit" env:"CHAT_HISTORY_LIMIT" env-default:"50"`
	DefaultWaitEstimate   time.Duration         `yaml:"default_wait_estimate" env:"DEFAULT_WAIT_ESTIMATE" env-default:"1m"`
	RoutingStrategy       string                `yaml:"routing_strategy" env:"ROUTING_STRATEGY" env-default:"least_loaded"`
	SLA                   SLAThresholds         `yaml:"sla"`
}

// LoadPolicy reads the policy from a YAML file when path is set, otherwise from the environment
func LoadPolicy(path string) (*Policy, error) {
	var p Policy
	if path != "" {
		if err := cleanenv.ReadConfig(path, &p); err != nil {
			return nil, fmt.Errorf("invalid policy file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&p); err != nil {
		desc, _ := cleanenv.GetDescription(&p, nil)
		return nil, fmt.Errorf("invalid policy environment: %w; %s", err, desc)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DefaultPolicy returns the policy with all defaults applied, ignoring the environment
func DefaultPolicy() Policy {
	return Policy{
		MatchInterval:         time.Second,
		SLASweepInterval:      5 * time.Second,
		AgentSweepInterval:    30 * time.Second,
		AgentIdleTimeout:      10 * time.Minute,
		MaxAttempts:           3,
		MaxEscalations:        3,
		ExhaustedPolicy:       types.ExhaustedForceAssign,
		InvalidPriorityPolicy: types.PriorityPolicyDefault,
		DefaultMaxChats:       3,
		ChatHistoryLimit:      50,
		DefaultWaitEstimate:   time.Minute,
		RoutingStrategy:       "least_loaded",
		SLA: SLAThresholds{
			Urgent: 30 * time.Second,
			High:   2 * time.Minute,
			Medium: 5 * time.Minute,
			Low:    10 * time.Minute,
		},
	}
}

// Validate rejects values the routing core cannot work with
func (p *Policy) Validate() error {
	var errs []error

	positive := map[string]time.Duration{
		"MATCH_INTERVAL":        p.MatchInterval,
		"SLA_SWEEP_INTERVAL":    p.SLASweepInterval,
		"AGENT_SWEEP_INTERVAL":  p.AgentSweepInterval,
		"AGENT_IDLE_TIMEOUT":    p.AgentIdleTimeout,
		"DEFAULT_WAIT_ESTIMATE": p.DefaultWaitEstimate,
		"SLA_URGENT":            p.SLA.Urgent,
		"SLA_HIGH":              p.SLA.High,
		"SLA_MEDIUM":            p.SLA.Medium,
		"SLA_LOW":               p.SLA.Low,
	}
	for name, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, d))
		}
	}

	if p.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", p.MaxAttempts))
	}
	if p.MaxEscalations < 0 {
		errs = append(errs, fmt.Errorf("MAX_ESCALATIONS must not be negative, got %d", p.MaxEscalations))
	}
	if p.DefaultMaxChats < 1 {
		errs = append(errs, fmt.Errorf("DEFAULT_MAX_CHATS must be at least 1, got %d", p.DefaultMaxChats))
	}
	if p.ChatHistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("CHAT_HISTORY_LIMIT must be at least 1, got %d", p.ChatHistoryLimit))
	}

	switch p.ExhaustedPolicy {
	case types.ExhaustedAbandon, types.ExhaustedForceAssign:
	default:
		errs = append(errs, fmt.Errorf("EXHAUSTED_POLICY must be abandon or force_assign, got %q", p.ExhaustedPolicy))
	}

	switch p.InvalidPriorityPolicy {
	case types.PriorityPolicyDefault, types.PriorityPolicyReject:
	default:
		errs = append(errs, fmt.Errorf("INVALID_PRIORITY_POLICY must be default or reject, got %q", p.InvalidPriorityPolicy))
	}

	switch p.RoutingStrategy {
	case "least_loaded", "longest_idle":
	default:
		errs = append(errs, fmt.Errorf("ROUTING_STRATEGY must be least_loaded or longest_idle, got %q", p.RoutingStrategy))
	}

	if p.SLA.Urgent > p.SLA.High || p.SLA.High > p.SLA.Medium || p.SLA.Medium > p.SLA.Low {
		errs = append(errs, errors.New("SLA thresholds must not grow with priority (urgent <= high <= medium <= low)"))
	}

	return errors.Join(errs...)
}
