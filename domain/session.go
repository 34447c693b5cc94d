package domain

import (
	"time"
)

// GenerationConfig holds the per-session generation parameters.
type GenerationConfig struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Generation parameter bounds, matching the settings UI sliders.
const (
	MinTemperature = 0.0
	MaxTemperature = 1.0
	MinMaxTokens   = 256
	MaxMaxTokens   = 8192
)

// Valid reports whether the config is within the accepted parameter ranges.
func (c GenerationConfig) Valid() bool {
	if c.Model == "" {
		return false
	}
	if c.Temperature < MinTemperature || c.Temperature > MaxTemperature {
		return false
	}
	if c.MaxTokens < MinMaxTokens || c.MaxTokens > MaxMaxTokens {
		return false
	}
	return true
}

// ConfigPatch is a partial update to a GenerationConfig. Nil fields are
// left unchanged by the merge.
type ConfigPatch struct {
	Model       *string  `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Apply merges the patch into cfg and returns the result.
func (p ConfigPatch) Apply(cfg GenerationConfig) GenerationConfig {
	if p.Model != nil {
		cfg.Model = *p.Model
	}
	if p.Temperature != nil {
		cfg.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		cfg.MaxTokens = *p.MaxTokens
	}
	return cfg
}

// Session represents one conversation thread with its own transcript and
// generation parameters.
type Session struct {
	SessionID string           `json:"session_id"`
	Name      string           `json:"name"`
	Config    GenerationConfig `json:"config"`
	CreatedAt time.Time        `json:"created_at"`
}
