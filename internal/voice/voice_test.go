package voice

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/voice-attendance-api/internal/models"
	appErrors "github.com/noah-isme/voice-attendance-api/pkg/errors"
)

func TestExtractEmpty(t *testing.T) {
	_, err := Extract(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidAudio))

	_, err = StatsExtractor{}.Extract([]float64{})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidAudio))
}

func TestExtractStatistics(t *testing.T) {
	vp, err := Extract([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, vp.Mean, 1e-12)
	assert.InDelta(t, 2.0, vp.Std, 1e-12)
	assert.Equal(t, uint(8), vp.Length)
}

func TestExtractLengthMatchesInput(t *testing.T) {
	for _, n := range []int{1, 2, 17, 1600} {
		samples := make([]float64, n)
		for i := range samples {
			samples[i] = float64(i%7) / 10
		}
		vp, err := Extract(samples)
		require.NoError(t, err)
		assert.Equal(t, uint(n), vp.Length)
	}
}

func TestExtractSingleSample(t *testing.T) {
	vp, err := Extract([]float64{0.25})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, vp.Mean, 1e-12)
	assert.Equal(t, 0.0, vp.Std)
}

func TestCosineSimilaritySelfIsOne(t *testing.T) {
	prints := []models.VoicePrint{
		{Mean: 0.01, Std: 0.2, Length: 16000},
		{Mean: -3, Std: 0, Length: 1},
		{Mean: 1e-9, Std: 1e-9, Length: 48000},
	}
	for _, p := range prints {
		assert.InDelta(t, 1.0, CosineSimilarity(p, p), 1e-9)
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := models.VoicePrint{Mean: 0.3, Std: 0.1, Length: 4}
	b := models.VoicePrint{Mean: -0.2, Std: 0.5, Length: 9}
	assert.InDelta(t, CosineSimilarity(a, b), CosineSimilarity(b, a), 1e-12)
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	zero := models.VoicePrint{}
	other := models.VoicePrint{Mean: 1, Std: 1, Length: 10}
	assert.Equal(t, 0.0, CosineSimilarity(zero, other))
	assert.Equal(t, 0.0, CosineSimilarity(other, zero))
	assert.Equal(t, 0.0, CosineSimilarity(zero, zero))
}

func TestMatchEmptyCandidates(t *testing.T) {
	res := Match(models.VoicePrint{Mean: 0.1, Std: 0.2, Length: 10}, nil)
	assert.False(t, res.Matched)
	assert.Equal(t, "", res.StudentID)
	assert.Equal(t, 0.0, res.Score)
}

func TestMatchEnrolledPrintFindsItself(t *testing.T) {
	p, err := Extract([]float64{0.1, -0.2, 0.3, 0.05})
	require.NoError(t, err)

	res := CosineMatcher{}.Match(p, []Candidate{{StudentID: "S1", Print: p}})
	require.True(t, res.Matched)
	assert.Equal(t, "S1", res.StudentID)
	assert.InDelta(t, 1.0, res.Score, 1e-9)
}

func TestMatchTieKeepsFirstCandidate(t *testing.T) {
	p := models.VoicePrint{Mean: 0.1, Std: 0.2, Length: 100}
	candidates := []Candidate{
		{StudentID: "low", Print: models.VoicePrint{Mean: 5, Std: 5, Length: 1}},
		{StudentID: "first", Print: p},
		{StudentID: "second", Print: p},
	}
	res := Match(p, candidates)
	require.True(t, res.Matched)
	assert.Equal(t, "first", res.StudentID)
}

func TestMatchBelowThreshold(t *testing.T) {
	query := models.VoicePrint{Mean: 10, Std: 0, Length: 1}
	candidate := models.VoicePrint{Mean: 0, Std: 0, Length: 1000}
	score := CosineSimilarity(query, candidate)
	require.Less(t, score, MatchThreshold)

	res := Match(query, []Candidate{{StudentID: "S1", Print: candidate}})
	assert.False(t, res.Matched)
	assert.Equal(t, 0.0, res.Score)
}

func TestMatchThresholdIsExclusive(t *testing.T) {
	assert.False(t, Accept(MatchThreshold))
	assert.True(t, Accept(MatchThreshold+1e-9))
}

func TestMatchSkipsZeroVectorCandidates(t *testing.T) {
	query := models.VoicePrint{Mean: 0.1, Std: 0.1, Length: 10}
	res := Match(query, []Candidate{
		{StudentID: "zero", Print: models.VoicePrint{}},
		{StudentID: "S2", Print: query},
	})
	require.True(t, res.Matched)
	assert.Equal(t, "S2", res.StudentID)
}
