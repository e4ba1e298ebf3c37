package core

import "strings"

// TokenEstimator approximates how many model tokens a piece of text costs.
type TokenEstimator interface {
	Estimate(text string) int
}

// EstimatorFunc adapts a function to the TokenEstimator interface.
type EstimatorFunc func(text string) int

func (f EstimatorFunc) Estimate(text string) int { return f(text) }

// HeuristicEstimator charges one token per four bytes, but never less than one
// token per word. Empty text costs nothing.
var HeuristicEstimator TokenEstimator = EstimatorFunc(estimateTokens)

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}

	charTokens := max(1, len(text)/4)
	wordTokens := max(1, len(strings.Fields(text)))

	return max(charTokens, wordTokens)
}
