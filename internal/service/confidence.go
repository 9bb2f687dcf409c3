package service

import (
	"math"
	"strings"
	"unicode/utf8"
)

const (
	confidenceBaseline      = 0.5
	groundedContextBonus    = 0.20
	warmConversationBonus   = 0.10
	reasonableLengthBonus   = 0.10
	noHedgesBonus           = 0.10
	multipleHedgesPenalty   = 0.15
	minReasonableRespLen    = 100
	maxReasonableRespLen    = 3000
	warmConversationTurns   = 2
	multipleHedgesThreshold = 2
)

// hedgingPhrases are scanned case-insensitively in generated answers. One
// hedge is an honest admission; two or more suggest the model is lost.
var hedgingPhrases = []string{
	"i'm not sure",
	"i don't know",
	"i cannot",
	"i'm unable",
	"outside my expertise",
	"consult a professional",
	"i don't have enough information",
}

// ConfidenceInput carries the signals collected during retrieval and
// generation that the scorer evaluates.
type ConfidenceInput struct {
	ResponseText        string
	HasKnowledgeContext bool
	KnowledgeChunksUsed int
	ConversationTurns   int
}

// ConfidenceScorer rates an already-generated answer's trustworthiness with
// a cheap additive heuristic. It runs synchronously on every response, so it
// must stay free of model calls and I/O.
type ConfidenceScorer struct {
	enabled bool
}

// NewConfidenceScorer creates a scorer. The enabled flag comes from process
// configuration at startup; a disabled scorer returns nil, meaning "no
// opinion", which callers must treat as never-flag.
func NewConfidenceScorer(enabled bool) *ConfidenceScorer {
	return &ConfidenceScorer{enabled: enabled}
}

// Enabled reports whether scoring is active.
func (s *ConfidenceScorer) Enabled() bool {
	return s.enabled
}

// Score computes a confidence value in [0,1] rounded to 2 decimal places,
// or nil when scoring is disabled.
func (s *ConfidenceScorer) Score(input ConfidenceInput) *float64 {
	if !s.enabled {
		return nil
	}

	score := confidenceBaseline

	if input.HasKnowledgeContext && input.KnowledgeChunksUsed > 0 {
		score += groundedContextBonus
	}

	if input.ConversationTurns > warmConversationTurns {
		score += warmConversationBonus
	}

	// Length is measured in runes, matching how chunk sizes are counted.
	respLen := utf8.RuneCountInString(input.ResponseText)
	if respLen >= minReasonableRespLen && respLen <= maxReasonableRespLen {
		score += reasonableLengthBonus
	}

	hedges := countHedges(input.ResponseText)
	if hedges == 0 {
		score += noHedgesBonus
	} else if hedges >= multipleHedgesThreshold {
		score -= multipleHedgesPenalty
	}

	score = math.Max(0, math.Min(1, score))
	score = math.Round(score*100) / 100
	return &score
}

// countHedges returns how many of the listed hedging phrases appear in the
// response.
func countHedges(response string) int {
	lower := strings.ToLower(response)
	count := 0
	for _, phrase := range hedgingPhrases {
		if strings.Contains(lower, phrase) {
			count++
		}
	}
	return count
}

// ShouldFlag decides whether a scored answer must be escalated to a human
// reviewer. A nil score means scoring is disabled and nothing is flagged. A
// score exactly equal to the threshold does not flag. Pure and
// side-effect-free; the caller records the flagged interaction.
func ShouldFlag(score *float64, threshold float64) bool {
	if score == nil {
		return false
	}
	return *score < threshold
}
