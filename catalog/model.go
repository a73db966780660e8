package catalog

import "maps"

const tokensPerMillion = 1_000_000

// Model represents an AI model with its capabilities and pricing.
type Model struct {
	// ID is the model identifier, unique within its provider (e.g. "claude-sonnet-4-5-20250929").
	ID string `json:"id" jsonschema:"required"`
	// Name is the human readable model name.
	Name string `json:"name" jsonschema:"required"`

	// CostPer1MIn is the USD price per 1M input tokens.
	CostPer1MIn float64 `json:"cost_per_1m_in" jsonschema:"required,minimum=0"`
	// CostPer1MOut is the USD price per 1M output tokens.
	CostPer1MOut float64 `json:"cost_per_1m_out" jsonschema:"required,minimum=0"`
	// CostPer1MInCached is the USD price per 1M cached input tokens, when prompt caching is offered.
	CostPer1MInCached *float64 `json:"cost_per_1m_in_cached,omitempty" jsonschema:"minimum=0"`
	// CostPer1MOutCached is the USD price per 1M cached output tokens.
	CostPer1MOutCached *float64 `json:"cost_per_1m_out_cached,omitempty" jsonschema:"minimum=0"`

	// ContextWindow is the maximum context size in tokens.
	ContextWindow uint64 `json:"context_window" jsonschema:"required"`
	// DefaultMaxTokens is the default maximum number of output tokens.
	DefaultMaxTokens uint64 `json:"default_max_tokens" jsonschema:"required"`

	CanReason              bool    `json:"can_reason"`
	HasReasoningEfforts    bool    `json:"has_reasoning_efforts"`
	DefaultReasoningEffort *string `json:"default_reasoning_effort,omitempty" jsonschema:"enum=minimal,enum=low,enum=medium,enum=high"`
	SupportsAttachments    bool    `json:"supports_attachments"`
}

// NewModel creates a model with the required pricing and limit fields set.
// Capability flags default to false and the optional fields are absent.
func NewModel(id, name string, costPer1MIn, costPer1MOut float64, contextWindow, defaultMaxTokens uint64) Model {
	return Model{
		ID:               id,
		Name:             name,
		CostPer1MIn:      costPer1MIn,
		CostPer1MOut:     costPer1MOut,
		ContextWindow:    contextWindow,
		DefaultMaxTokens: defaultMaxTokens,
	}
}

// CalculateCost returns the USD cost of a request with the given token counts.
//
// When useCache is true, each side uses its cached price if one is configured
// and falls back to the standard price otherwise. The result is not rounded.
func (m Model) CalculateCost(inputTokens, outputTokens uint64, useCache bool) float64 {
	inPrice := m.CostPer1MIn
	if useCache && m.CostPer1MInCached != nil {
		inPrice = *m.CostPer1MInCached
	}

	outPrice := m.CostPer1MOut
	if useCache && m.CostPer1MOutCached != nil {
		outPrice = *m.CostPer1MOutCached
	}

	// explicit conversions keep each product individually rounded (no FMA)
	inputCost := float64(float64(inputTokens) / tokensPerMillion * inPrice)
	outputCost := float64(float64(outputTokens) / tokensPerMillion * outPrice)

	return inputCost + outputCost
}

// FitsInContext reports whether tokens fits in the model's context window.
// The boundary is inclusive.
func (m Model) FitsInContext(tokens uint64) bool {
	return tokens <= m.ContextWindow
}

// HasCachedPricing reports whether any cached price is configured.
func (m Model) HasCachedPricing() bool {
	return m.CostPer1MInCached != nil || m.CostPer1MOutCached != nil
}

// Clone returns a deep copy of the model.
func (m Model) Clone() Model {
	m.CostPer1MInCached = clonePtr(m.CostPer1MInCached)
	m.CostPer1MOutCached = clonePtr(m.CostPer1MOutCached)
	m.DefaultReasoningEffort = clonePtr(m.DefaultReasoningEffort)
	return m
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	return maps.Clone(h)
}
