package handlers

import (
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/linkdeck/linkdeck/internal/live"
)

// ErrorResponse is the standard format for API error responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ProfileResponse is the public view of a profile. The password hash and
// other private columns never leave the server.
type ProfileResponse struct {
	Username        string `json:"username"`
	Bio             string `json:"bio,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`
	TextColor       string `json:"text_color,omitempty"`
	ButtonColor     string `json:"button_color,omitempty"`
	ButtonTextColor string `json:"button_text_color,omitempty"`
	ProfileImage    string `json:"profile_image,omitempty"`
}

// SectionResponse is a section with its links, both already position-sorted.
type SectionResponse struct {
	ID    string         `json:"id"`
	Title string         `json:"title"`
	Links []LinkResponse `json:"links"`
}

// LinkResponse is the DTO for a single link.
type LinkResponse struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	IconURL string `json:"icon_url,omitempty"`
}

// SnapshotResponse is the full page state sent to clients, both on the
// initial load and over the live update socket.
type SnapshotResponse struct {
	Profile  ProfileResponse   `json:"profile"`
	Sections []SectionResponse `json:"sections"`
}

// DashboardResponse is the snapshot plus any pending flash notices. Only the
// admin dashboard carries flashes; the public page and the socket do not.
type DashboardResponse struct {
	SnapshotResponse
	Flashes Flashes `json:"flashes"`
}

// NewSnapshotResponse maps an aggregate snapshot to the wire DTO.
func NewSnapshotResponse(snap live.Snapshot) *SnapshotResponse {
	out := &SnapshotResponse{
		Profile: ProfileResponse{
			Username:        snap.Profile.Username,
			Bio:             snap.Profile.Bio,
			BackgroundColor: snap.Profile.BackgroundColor,
			TextColor:       snap.Profile.TextColor,
			ButtonColor:     snap.Profile.ButtonColor,
			ButtonTextColor: snap.Profile.ButtonTextColor,
			ProfileImage:    snap.Profile.ProfileImage,
		},
		Sections: make([]SectionResponse, 0, len(snap.Sections)),
	}
	for _, section := range snap.Sections {
		sr := SectionResponse{
			ID:    recordIDString(section.ID),
			Title: section.Title,
			Links: make([]LinkResponse, 0, len(section.Links)),
		}
		for _, link := range section.Links {
			sr.Links = append(sr.Links, LinkResponse{
				ID:      recordIDString(link.ID),
				Title:   link.Title,
				URL:     link.URL,
				IconURL: link.IconURL,
			})
		}
		out.Sections = append(out.Sections, sr)
	}
	return out
}

func recordIDString(id *surrealmodels.RecordID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
