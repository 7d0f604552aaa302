package dto

// CreateClassRequest captures the class creation payload.
type CreateClassRequest struct {
	Name     string   `json:"name" validate:"required"`
	Sections []string `json:"sections" validate:"required,min=1"`
}
