package dto

// EnrollStudentRequest captures enrollment fields. Audio travels either as
// Samples in a JSON body or as a multipart WAV upload.
type EnrollStudentRequest struct {
	ID         string    `json:"id" form:"id" validate:"required,alphanum"`
	Name       string    `json:"name" form:"name" validate:"required"`
	ClassID    string    `json:"class_id" form:"class_id" validate:"required"`
	Section    string    `json:"section" form:"section" validate:"required"`
	Samples    []float64 `json:"samples" form:"-"`
	SampleRate int       `json:"sample_rate" form:"sample_rate" validate:"gte=0"`
}

// StudentListRequest filters the roster.
type StudentListRequest struct {
	ClassID string `form:"class_id" binding:"omitempty,max=64"`
	Section string `form:"section" binding:"omitempty,max=64"`
}

// RawSamples returns the inline samples and their rate.
func (r *EnrollStudentRequest) RawSamples() ([]float64, int) {
	return r.Samples, r.SampleRate
}
