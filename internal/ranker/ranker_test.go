package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solarb/arbengine/internal/types"
)

func TestScoreAppliesVolatilityDampingAndBonus(t *testing.T) {
	low := Score(types.Opportunity{NetProfit: 20_000_000}, 0.0, 1.0)
	high := Score(types.Opportunity{NetProfit: 20_000_000}, 1.0, 1.0)
	assert.Greater(t, low, high)

	withBonus := Score(types.Opportunity{NetProfit: bonusThresholdLamports}, 0, 1.0)
	withoutBonus := Score(types.Opportunity{NetProfit: bonusThresholdLamports - 1}, 0, 1.0)
	assert.InDelta(t, float64(bonusThresholdLamports)*1.2, withBonus, 0.001)
	assert.InDelta(t, float64(bonusThresholdLamports-1), withoutBonus, 0.001)
}

func TestRankTruncatesToTopKBeforeScoring(t *testing.T) {
	opps := []types.Opportunity{
		{ID: "a", NetProfit: 500},
		{ID: "b", NetProfit: 400},
		{ID: "c", NetProfit: 300},
	}
	ranked := Rank(opps, 0, 1.0, 2)
	assert.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].Opportunity.ID)
	assert.Equal(t, "b", ranked[1].Opportunity.ID)
}

func TestSelectReturnsHighestScoring(t *testing.T) {
	opps := []types.Opportunity{
		{ID: "low", NetProfit: 100},
		{ID: "high", NetProfit: 900},
	}
	ranked := Rank(opps, 0, 1.0, 10)
	selected, ok := Select(ranked)
	assert.True(t, ok)
	assert.Equal(t, "high", selected.ID)
}

func TestSelectOnEmptyReturnsFalse(t *testing.T) {
	_, ok := Select(nil)
	assert.False(t, ok)
}
