// Package voice turns raw audio samples into voiceprints and resolves a
// voiceprint to the closest enrolled identity.
//
// # Descriptor
//
// A voiceprint is the triple (mean, population std, sample count) of the
// sampled amplitudes. Sample rate is not part of the descriptor.
//
// # Matching
//
// Candidates are compared by cosine similarity over the raw 3-vector with no
// per-dimension weighting, so the sample count usually dominates the score.
// The best candidate is accepted only when its score is strictly greater than
// [MatchThreshold]. Ties keep the earliest candidate in iteration order.
//
// This is a naive identification method. Both stages sit behind the
// [Extractor] and [Matcher] interfaces so a stronger strategy can be swapped
// in without touching callers.
package voice

import (
	"math"

	"github.com/noah-isme/voice-attendance-api/internal/models"
	appErrors "github.com/noah-isme/voice-attendance-api/pkg/errors"
)

// MatchThreshold is the exclusive lower bound a score must exceed to count as a match.
const MatchThreshold = 0.7

// Extractor derives a voiceprint from audio samples.
type Extractor interface {
	Extract(samples []float64) (models.VoicePrint, error)
}

// Matcher picks the best enrolled candidate for a query print.
type Matcher interface {
	Match(query models.VoicePrint, candidates []Candidate) MatchResult
}

// Candidate is an enrolled identity offered to a Matcher.
type Candidate struct {
	StudentID string
	Print     models.VoicePrint
}

// MatchResult reports the outcome of a search. StudentID is empty and Score is
// zero when Matched is false.
type MatchResult struct {
	StudentID string
	Score     float64
	Matched   bool
}

// StatsExtractor is the default Extractor.
type StatsExtractor struct{}

// Extract implements Extractor.
func (StatsExtractor) Extract(samples []float64) (models.VoicePrint, error) {
	return Extract(samples)
}

// CosineMatcher is the default Matcher.
type CosineMatcher struct{}

// Match implements Matcher.
func (CosineMatcher) Match(query models.VoicePrint, candidates []Candidate) MatchResult {
	return Match(query, candidates)
}

// Extract computes the mean, population standard deviation and length of samples.
func Extract(samples []float64) (models.VoicePrint, error) {
	n := len(samples)
	if n == 0 {
		return models.VoicePrint{}, appErrors.Clone(appErrors.ErrInvalidAudio, "audio sample is empty")
	}

	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(n)

	var sq float64
	for _, s := range samples {
		d := s - mean
		sq += d * d
	}

	return models.VoicePrint{
		Mean:   mean,
		Std:    math.Sqrt(sq / float64(n)),
		Length: uint(n),
	}, nil
}

// CosineSimilarity returns the cosine of the angle between the two prints'
// vectors. A zero-norm vector on either side yields 0.
func CosineSimilarity(a, b models.VoicePrint) float64 {
	va, vb := a.Vector(), b.Vector()

	var dot, normA, normB float64
	for i := range va {
		dot += va[i] * vb[i]
		normA += va[i] * va[i]
		normB += vb[i] * vb[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to absorb rounding.
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity
}

// Match scans candidates in order and returns the first maximal one when its
// score exceeds MatchThreshold.
func Match(query models.VoicePrint, candidates []Candidate) MatchResult {
	best := -1
	bestScore := math.Inf(-1)
	for i, c := range candidates {
		score := CosineSimilarity(query, c.Print)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}

	if best < 0 || !Accept(bestScore) {
		return MatchResult{}
	}
	return MatchResult{StudentID: candidates[best].StudentID, Score: bestScore, Matched: true}
}

// Accept reports whether a score clears the match threshold.
func Accept(score float64) bool {
	return !math.IsNaN(score) && score > MatchThreshold
}
