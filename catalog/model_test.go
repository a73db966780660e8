package catalog

import (
	"testing"

	"github.com/go-openapi/swag"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func testModel() Model {
	return NewModel("test-model", "Test Model", 3.0, 15.0, 200_000, 5000)
}

func TestCalculateCost(t *testing.T) {
	t.Run("standard pricing", func(t *testing.T) {
		m := testModel()
		assert.Equal(t, 1.05, m.CalculateCost(100_000, 50_000, false))
	})

	t.Run("cached pricing", func(t *testing.T) {
		m := testModel()
		m.CostPer1MInCached = swag.Float64(0.3)
		m.CostPer1MOutCached = swag.Float64(0.3)
		assert.Equal(t, 0.045, m.CalculateCost(100_000, 50_000, true))
	})

	t.Run("cached prices ignored without cache", func(t *testing.T) {
		m := testModel()
		m.CostPer1MInCached = swag.Float64(0.3)
		m.CostPer1MOutCached = swag.Float64(0.3)
		assert.Equal(t, 1.05, m.CalculateCost(100_000, 50_000, false))
	})

	t.Run("cache requested without cached prices falls back", func(t *testing.T) {
		m := testModel()
		assert.Equal(t, m.CalculateCost(100_000, 50_000, false), m.CalculateCost(100_000, 50_000, true))
	})

	t.Run("only input cached", func(t *testing.T) {
		m := testModel()
		m.CostPer1MInCached = swag.Float64(0.3)
		// 0.1 * 0.3 + 0.05 * 15
		assert.InDelta(t, 0.78, m.CalculateCost(100_000, 50_000, true), 1e-12)
	})

	t.Run("zero tokens", func(t *testing.T) {
		m := testModel()
		assert.Zero(t, m.CalculateCost(0, 0, false))
	})

	t.Run("formula", func(t *testing.T) {
		tests := []struct {
			in, out   float64
			inTokens  uint64
			outTokens uint64
		}{
			{in: 0.15, out: 0.6, inTokens: 1_234_567, outTokens: 89},
			{in: 75, out: 150, inTokens: 1, outTokens: 1},
			{in: 0, out: 0, inTokens: 10_000_000, outTokens: 10_000_000},
		}
		for _, tt := range tests {
			m := NewModel("m", "M", tt.in, tt.out, 1, 1)
			want := float64(tt.inTokens)/1e6*tt.in + float64(tt.outTokens)/1e6*tt.out
			assert.InDelta(t, want, m.CalculateCost(tt.inTokens, tt.outTokens, false), 1e-12)
			assert.GreaterOrEqual(t, m.CalculateCost(tt.inTokens, tt.outTokens, false), 0.0)
		}
	})
}

func TestFitsInContext(t *testing.T) {
	m := testModel()

	assert.True(t, m.FitsInContext(0))
	assert.True(t, m.FitsInContext(100_000))
	assert.True(t, m.FitsInContext(m.ContextWindow))
	assert.False(t, m.FitsInContext(m.ContextWindow+1))
}

func TestModelClone(t *testing.T) {
	m := testModel()
	m.CostPer1MInCached = swag.Float64(0.3)
	m.DefaultReasoningEffort = swag.String("medium")

	c := m.Clone()
	*c.CostPer1MInCached = 99
	*c.DefaultReasoningEffort = "high"

	assert.Equal(t, 0.3, *m.CostPer1MInCached)
	assert.Equal(t, "medium", *m.DefaultReasoningEffort)
	assert.True(t, m.HasCachedPricing())
	assert.False(t, testModel().HasCachedPricing())
}

func TestModelJSON(t *testing.T) {
	t.Run("absent optional fields are omitted", func(t *testing.T) {
		b, err := json.Marshal(testModel())
		require.NoError(t, err)

		res := gjson.ParseBytes(b)
		assert.Equal(t, "test-model", res.Get("id").String())
		assert.Equal(t, 3.0, res.Get("cost_per_1m_in").Float())
		assert.Equal(t, 15.0, res.Get("cost_per_1m_out").Float())
		assert.Equal(t, uint64(200_000), res.Get("context_window").Uint())
		assert.Equal(t, uint64(5000), res.Get("default_max_tokens").Uint())
		assert.False(t, res.Get("cost_per_1m_in_cached").Exists())
		assert.False(t, res.Get("cost_per_1m_out_cached").Exists())
		assert.False(t, res.Get("default_reasoning_effort").Exists())
		assert.True(t, res.Get("supports_attachments").Exists())
	})

	t.Run("present optional fields are emitted", func(t *testing.T) {
		m := testModel()
		m.CostPer1MInCached = swag.Float64(0)
		m.DefaultReasoningEffort = swag.String("low")

		b, err := json.Marshal(m)
		require.NoError(t, err)

		res := gjson.ParseBytes(b)
		assert.True(t, res.Get("cost_per_1m_in_cached").Exists())
		assert.Equal(t, 0.0, res.Get("cost_per_1m_in_cached").Float())
		assert.Equal(t, "low", res.Get("default_reasoning_effort").String())
	})
}
