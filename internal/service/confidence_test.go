package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfidenceScorer_Disabled(t *testing.T) {
	scorer := NewConfidenceScorer(false)

	score := scorer.Score(ConfidenceInput{
		ResponseText:        "A perfectly fine grounded answer about maize.",
		HasKnowledgeContext: true,
		KnowledgeChunksUsed: 3,
	})

	assert.Nil(t, score)
	assert.False(t, scorer.Enabled())
}

func TestConfidenceScorer_BaselineOnly(t *testing.T) {
	scorer := NewConfidenceScorer(true)

	// Short cold-start answer, no context, exactly one hedge: no adjustments.
	score := scorer.Score(ConfidenceInput{
		ResponseText:      "I'm not sure about that.",
		ConversationTurns: 0,
	})

	require.NotNil(t, score)
	assert.Equal(t, 0.5, *score)
}

func TestConfidenceScorer_AllBonuses(t *testing.T) {
	scorer := NewConfidenceScorer(true)

	response := strings.Repeat("Yellowing maize leaves usually indicate nitrogen deficiency. ", 5)
	require.GreaterOrEqual(t, len(response), 100)
	require.LessOrEqual(t, len(response), 3000)

	score := scorer.Score(ConfidenceInput{
		ResponseText:        response,
		HasKnowledgeContext: true,
		KnowledgeChunksUsed: 2,
		ConversationTurns:   5,
	})

	// 0.5 + 0.2 + 0.1 + 0.1 + 0.1, clamped to 1.0
	require.NotNil(t, score)
	assert.Equal(t, 1.0, *score)
}

func TestConfidenceScorer_ClampLow(t *testing.T) {
	scorer := NewConfidenceScorer(true)

	score := scorer.Score(ConfidenceInput{
		ResponseText: "I don't know. I cannot say. I'm unable to help. Consult a professional.",
	})

	// 0.5 − 0.15, no bonuses; well within [0,1]
	require.NotNil(t, score)
	assert.GreaterOrEqual(t, *score, 0.0)
	assert.LessOrEqual(t, *score, 1.0)
	assert.Equal(t, 0.35, *score)
}

func TestConfidenceScorer_SingleHedgeNeutral(t *testing.T) {
	scorer := NewConfidenceScorer(true)

	response := "Based on the guide, apply nitrogen fertilizer at the V6 stage. " +
		"I don't have enough information about your specific soil, so a soil test would help. " +
		"Split applications reduce leaching losses on sandy soils."
	require.GreaterOrEqual(t, len(response), 100)

	withOneHedge := scorer.Score(ConfidenceInput{
		ResponseText:        response,
		HasKnowledgeContext: true,
		KnowledgeChunksUsed: 1,
	})

	// 0.5 + 0.2 (grounded) + 0.1 (length), one hedge adds nothing
	require.NotNil(t, withOneHedge)
	assert.Equal(t, 0.8, *withOneHedge)
}

func TestConfidenceScorer_LengthCountsRunesNotBytes(t *testing.T) {
	scorer := NewConfidenceScorer(true)

	// 90 CJK runes span 270 bytes; the answer is still below the 100-rune
	// floor and must not earn the length bonus.
	response := strings.Repeat("稻", 90)
	require.Less(t, len([]rune(response)), minReasonableRespLen)
	require.Greater(t, len(response), minReasonableRespLen)

	score := scorer.Score(ConfidenceInput{
		ResponseText:        response,
		HasKnowledgeContext: true,
		KnowledgeChunksUsed: 1,
	})

	// 0.5 + 0.2 (grounded) + 0.1 (no hedges), no length bonus
	require.NotNil(t, score)
	assert.Equal(t, 0.8, *score)
}

func TestConfidenceScorer_HedgeCaseInsensitive(t *testing.T) {
	scorer := NewConfidenceScorer(true)

	score := scorer.Score(ConfidenceInput{
		ResponseText: "I DON'T KNOW. I CANNOT tell.",
	})

	require.NotNil(t, score)
	assert.Equal(t, 0.35, *score)
}

func TestConfidenceScorer_RoundsToTwoDecimals(t *testing.T) {
	scorer := NewConfidenceScorer(true)

	score := scorer.Score(ConfidenceInput{
		ResponseText:        "ok",
		HasKnowledgeContext: true,
		KnowledgeChunksUsed: 1,
	})

	// 0.5 + 0.2 + 0.1 (no hedges) = 0.8 exactly after rounding
	require.NotNil(t, score)
	assert.InDelta(t, 0.8, *score, 1e-9)
}

func TestShouldFlag_Threshold(t *testing.T) {
	score := 0.70
	assert.False(t, ShouldFlag(&score, 0.70), "score equal to threshold must not flag")

	low := 0.69
	assert.True(t, ShouldFlag(&low, 0.70))

	assert.False(t, ShouldFlag(nil, 0.70), "disabled sentinel must never flag")
}

func TestShouldFlag_Bounds(t *testing.T) {
	zero := 0.0
	one := 1.0
	assert.True(t, ShouldFlag(&zero, 0.01))
	assert.False(t, ShouldFlag(&zero, 0.0))
	assert.False(t, ShouldFlag(&one, 1.0))
}
