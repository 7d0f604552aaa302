package models

// VoicePrint is the statistical descriptor derived from one audio sample.
// It is compared as the 3-vector (mean, std, length) and is immutable once stored.
type VoicePrint struct {
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Length uint    `json:"length"`
}

// Vector returns the descriptor cast to a common float64 scale.
func (p VoicePrint) Vector() [3]float64 {
	return [3]float64{p.Mean, p.Std, float64(p.Length)}
}

// Valid reports whether the print was derived from a non-empty sample.
func (p VoicePrint) Valid() bool {
	return p.Length > 0
}
