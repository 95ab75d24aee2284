package handlers

import (
	"mime/multipart"

	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the go-playground/validator library to implement Echo's Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new CustomValidator.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// LoginRequest is the DTO for the profile login endpoint.
type LoginRequest struct {
	Password string `json:"password" form:"password" validate:"required"`
}

// UpdateProfileRequest carries the editable appearance fields of a profile.
// Pointers distinguish "leave unchanged" from "set to empty".
type UpdateProfileRequest struct {
	Bio             *string `json:"bio" form:"bio" validate:"omitempty,max=500"`
	BackgroundColor *string `json:"background_color" form:"background_color" validate:"omitempty,hexcolor"`
	TextColor       *string `json:"text_color" form:"text_color" validate:"omitempty,hexcolor"`
	ButtonColor     *string `json:"button_color" form:"button_color" validate:"omitempty,hexcolor"`
	ButtonTextColor *string `json:"button_text_color" form:"button_text_color" validate:"omitempty,hexcolor"`
}

// Fields returns the non-nil fields as a merge payload for the store.
func (r *UpdateProfileRequest) Fields() map[string]any {
	fields := make(map[string]any)
	if r.Bio != nil {
		fields["bio"] = *r.Bio
	}
	if r.BackgroundColor != nil {
		fields["background_color"] = *r.BackgroundColor
	}
	if r.TextColor != nil {
		fields["text_color"] = *r.TextColor
	}
	if r.ButtonColor != nil {
		fields["button_color"] = *r.ButtonColor
	}
	if r.ButtonTextColor != nil {
		fields["button_text_color"] = *r.ButtonTextColor
	}
	return fields
}

// ChangePasswordRequest is the DTO for rotating a profile's admin password.
// The current password is re-checked even though the route sits behind the
// editor gate.
type ChangePasswordRequest struct {
	Current  string `json:"current" form:"current" validate:"required"`
	Password string `json:"password" form:"password" validate:"required,min=6"`
	Confirm  string `json:"confirm" form:"confirm" validate:"required,eqfield=Password"`
}

// CreateSectionRequest is the DTO for adding a section. New sections are
// appended after the existing ones.
type CreateSectionRequest struct {
	Title string `json:"title" form:"title" validate:"required,max=100"`
}

// UpdateSectionRequest is the DTO for renaming a section.
type UpdateSectionRequest struct {
	Title string `json:"title" form:"title" validate:"required,max=100"`
}

// CreateLinkRequest is the DTO for adding a link to a section.
type CreateLinkRequest struct {
	Title string `json:"title" form:"title" validate:"required,max=100"`
	URL   string `json:"url" form:"url" validate:"required,url"`
}

// UpdateLinkRequest carries the editable fields of a link.
type UpdateLinkRequest struct {
	Title   *string `json:"title" form:"title" validate:"omitempty,max=100"`
	URL     *string `json:"url" form:"url" validate:"omitempty,url"`
	IconURL *string `json:"icon_url" form:"icon_url" validate:"omitempty"`
}

// Fields returns the non-nil fields as a merge payload for the store.
func (r *UpdateLinkRequest) Fields() map[string]any {
	fields := make(map[string]any)
	if r.Title != nil {
		fields["title"] = *r.Title
	}
	if r.URL != nil {
		fields["url"] = *r.URL
	}
	if r.IconURL != nil {
		fields["icon_url"] = *r.IconURL
	}
	return fields
}

// ReorderRequest names the dragged record and the record whose slot it takes.
// IDs are full record identifiers, e.g. "sections:abc123".
type ReorderRequest struct {
	MovedID  string `json:"moved_id" form:"moved_id" validate:"required"`
	TargetID string `json:"target_id" form:"target_id" validate:"required"`
}

// UploadImageRequest defines the DTO for the image upload endpoint.
type UploadImageRequest struct {
	File *multipart.FileHeader `form:"file" validate:"required"`
}
