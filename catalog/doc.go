// Package catalog defines the provider and model value types served by aviary,
// together with the pricing and context-window calculations attached to them.
//
// A Provider is one inference vendor (Anthropic, OpenAI, ...) and owns an
// ordered list of Models. Models carry per-million-token prices, an optional
// set of cached prices used when prompt caching applies, context limits and
// capability flags.
//
// Optional fields are modelled as pointers (or nil maps) and are omitted from
// the JSON encoding when absent, so a consumer can always distinguish "not
// configured" from a zero value:
//
//	m := catalog.NewModel("claude-sonnet-4-5", "Claude Sonnet 4.5", 3, 15, 200_000, 64_000)
//	m.CostPer1MInCached = swag.Float64(0.3)
//
//	cost := m.CalculateCost(100_000, 50_000, true) // cached input, standard output
//
// The JSON field names follow the catwalk-compatible schema revision
// (cost_per_1m_in, cost_per_1m_out, supports_attachments, default_max_tokens).
//
// Values of these types are treated as immutable once they are handed to a
// registry. Use Clone to obtain a copy that is safe to modify.
package catalog
