package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/linkdeck/linkdeck/internal/auth"
	"github.com/linkdeck/linkdeck/internal/domain"
	"github.com/linkdeck/linkdeck/internal/live"
	"github.com/linkdeck/linkdeck/internal/middleware"
	"github.com/linkdeck/linkdeck/internal/reorder"
	"github.com/linkdeck/linkdeck/internal/storage"
)

// AdminHandler handles the write side of a profile page. Every route it
// serves sits behind the editor gate, so the :username param is already
// authenticated when a handler runs.
type AdminHandler struct {
	store      domain.ProfileStore
	manager    *live.Manager
	reconciler *reorder.Reconciler
	images     *storage.ImageService
	verifier   auth.CredentialVerifier

	maxImageSize     int64
	allowedMimeTypes map[string]bool
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(store domain.ProfileStore, manager *live.Manager, reconciler *reorder.Reconciler, images *storage.ImageService, verifier auth.CredentialVerifier) *AdminHandler {
	return &AdminHandler{
		store:      store,
		manager:    manager,
		reconciler: reconciler,
		images:     images,
		verifier:   verifier,
		// 5 MiB is generous for avatars and icons.
		maxImageSize: 5 << 20,
		allowedMimeTypes: map[string]bool{
			"image/png":  true,
			"image/jpeg": true,
			"image/gif":  true,
			"image/webp": true,
		},
	}
}

// GetDashboard handles GET /:username/admin/dashboard. It returns the same
// snapshot the public page sees, plus any flash notices queued by earlier
// admin actions; the editor token is what distinguishes it.
func (h *AdminHandler) GetDashboard(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("username")

	agg, err := h.manager.Acquire(ctx, username)
	if err != nil {
		return h.mapAcquireError(c, username, err)
	}
	defer h.manager.Release(username)

	return c.JSON(http.StatusOK, DashboardResponse{
		SnapshotResponse: *NewSnapshotResponse(agg.Snapshot()),
		Flashes:          TakeFlashes(c),
	})
}

// UpdateProfile handles PATCH /:username/admin/profile.
func (h *AdminHandler) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("username")

	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format.")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	fields := req.Fields()
	if len(fields) == 0 {
		return c.NoContent(http.StatusNoContent)
	}

	if err := h.store.UpdateProfile(ctx, username, fields); err != nil {
		slog.Error("Failed to update profile", "username", username, "error", err)
		SetFlashError(c, "Could not update profile.")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not update profile."})
	}
	SetFlashSuccess(c, "Profile updated.")
	return c.NoContent(http.StatusNoContent)
}

// ChangePassword handles POST /:username/admin/password.
func (h *AdminHandler) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("username")

	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format.")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	profile, err := h.store.FetchProfile(ctx, username)
	if err != nil {
		slog.Error("Failed to fetch profile for password change", "username", username, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not change password."})
	}
	if err := h.verifier.Verify(profile.PasswordHash, req.Current); err != nil {
		SetFlashError(c, "Current password is incorrect.")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Code: "invalid_credentials", Message: "Current password is incorrect."})
	}

	hash, err := h.verifier.Hash(req.Password)
	if err != nil {
		slog.Error("Failed to hash new password", "username", username, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not change password."})
	}

	if err := h.store.UpdateProfile(ctx, username, map[string]any{"password_hash": hash}); err != nil {
		slog.Error("Failed to persist new password", "username", username, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not change password."})
	}
	SetFlashSuccess(c, "Password changed.")
	return c.NoContent(http.StatusNoContent)
}

// CreateSection handles POST /:username/admin/sections. The new section is
// appended after the existing ones.
func (h *AdminHandler) CreateSection(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("username")

	var req CreateSectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format.")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	agg, err := h.manager.Acquire(ctx, username)
	if err != nil {
		return h.mapAcquireError(c, username, err)
	}
	defer h.manager.Release(username)

	snap := agg.Snapshot()
	if err := h.store.InsertSection(ctx, snap.Profile.ID, req.Title, len(snap.Sections)); err != nil {
		slog.Error("Failed to insert section", "username", username, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not create section."})
	}
	return c.NoContent(http.StatusCreated)
}

// UpdateSection handles PATCH /:username/admin/sections/:id.
func (h *AdminHandler) UpdateSection(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseRecordID(domain.TableSections, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var req UpdateSectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format.")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.store.UpdateSection(ctx, id, map[string]any{"title": req.Title}); err != nil {
		slog.Error("Failed to update section", "section", id.String(), "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not update section."})
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteSection handles DELETE /:username/admin/sections/:id. The store
// cascades the delete to the section's links.
func (h *AdminHandler) DeleteSection(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseRecordID(domain.TableSections, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.store.DeleteSection(ctx, id); err != nil {
		slog.Error("Failed to delete section", "section", id.String(), "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not delete section."})
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateLink handles POST /:username/admin/sections/:id/links. The new link
// is appended after the section's existing links.
func (h *AdminHandler) CreateLink(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("username")

	sectionID, err := parseRecordID(domain.TableSections, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var req CreateLinkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format.")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	agg, err := h.manager.Acquire(ctx, username)
	if err != nil {
		return h.mapAcquireError(c, username, err)
	}
	defer h.manager.Release(username)

	position := len(agg.LinkOrder(sectionID))
	if err := h.store.InsertLink(ctx, sectionID, req.Title, req.URL, position); err != nil {
		slog.Error("Failed to insert link", "section", sectionID.String(), "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not create link."})
	}
	return c.NoContent(http.StatusCreated)
}

// UpdateLink handles PATCH /:username/admin/links/:id.
func (h *AdminHandler) UpdateLink(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseRecordID(domain.TableLinks, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var req UpdateLinkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format.")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	fields := req.Fields()
	if len(fields) == 0 {
		return c.NoContent(http.StatusNoContent)
	}

	if err := h.store.UpdateLink(ctx, id, fields); err != nil {
		slog.Error("Failed to update link", "link", id.String(), "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not update link."})
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteLink handles DELETE /:username/admin/links/:id.
func (h *AdminHandler) DeleteLink(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseRecordID(domain.TableLinks, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.store.DeleteLink(ctx, id); err != nil {
		slog.Error("Failed to delete link", "link", id.String(), "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not delete link."})
	}
	return c.NoContent(http.StatusNoContent)
}

// ReorderSections handles POST /:username/admin/sections/reorder. The moved
// section takes the target's slot; everything between shifts by one.
func (h *AdminHandler) ReorderSections(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("username")

	var req ReorderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format.")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	movedID, err := parseRecordID(domain.TableSections, req.MovedID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	targetID, err := parseRecordID(domain.TableSections, req.TargetID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	agg, err := h.manager.Acquire(ctx, username)
	if err != nil {
		return h.mapAcquireError(c, username, err)
	}
	defer h.manager.Release(username)

	moved := findSection(agg.SectionOrder(), movedID)
	target := findSection(agg.SectionOrder(), targetID)
	if moved == nil || target == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Message: "Section not found."})
	}

	return h.mapReorderError(c, h.reconciler.ReorderSections(ctx, agg, moved, target))
}

// ReorderLinks handles POST /:username/admin/links/reorder. Drags across
// sections persist nothing.
func (h *AdminHandler) ReorderLinks(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("username")

	var req ReorderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format.")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	movedID, err := parseRecordID(domain.TableLinks, req.MovedID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	targetID, err := parseRecordID(domain.TableLinks, req.TargetID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	agg, err := h.manager.Acquire(ctx, username)
	if err != nil {
		return h.mapAcquireError(c, username, err)
	}
	defer h.manager.Release(username)

	moved := findLink(agg.Snapshot(), movedID)
	target := findLink(agg.Snapshot(), targetID)
	if moved == nil || target == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Message: "Link not found."})
	}

	return h.mapReorderError(c, h.reconciler.ReorderLinks(ctx, agg, moved, target))
}

// UploadImage handles POST /:username/admin/images. The "kind" query selects
// the destination: "profile" replaces the profile image, "icon" with a
// "link_id" query sets a link's icon. The stored path embeds a random nonce
// so a re-upload never collides with a cached predecessor.
func (h *AdminHandler) UploadImage(c echo.Context) error {
	ctx := c.Request().Context()
	logger := middleware.FromContext(ctx)
	username := c.Param("username")

	var req UploadImageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format.")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	fileHeader := req.File
	if h.maxImageSize > 0 && fileHeader.Size > h.maxImageSize {
		return c.String(http.StatusRequestEntityTooLarge, fmt.Sprintf("Image size of %d bytes exceeds the limit of %d bytes", fileHeader.Size, h.maxImageSize))
	}
	mimeType := fileHeader.Header.Get("Content-Type")
	if !h.allowedMimeTypes[mimeType] {
		return c.String(http.StatusUnsupportedMediaType, fmt.Sprintf("File type '%s' is not allowed", mimeType))
	}

	kind := c.QueryParam("kind")
	var subject string
	var linkID *surrealmodels.RecordID
	switch kind {
	case "profile":
		subject = username
	case "icon":
		var err error
		linkID, err = parseRecordID(domain.TableLinks, c.QueryParam("link_id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		subject = linkID.ID.(string)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be 'profile' or 'icon'")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to open uploaded file")
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(filepath.Base(fileHeader.Filename)))
	nonce := uuid.NewString()
	relPath := filepath.Join(username, fmt.Sprintf("%s_%s_%s%s", kind, subject, nonce, ext))

	publicURL, err := h.images.Upload(ctx, relPath, src)
	if err != nil {
		logger.Error("Failed to store image", "path", relPath, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not store image."})
	}

	switch kind {
	case "profile":
		err = h.store.UpdateProfile(ctx, username, map[string]any{"profile_image": publicURL})
	case "icon":
		err = h.store.UpdateLink(ctx, linkID, map[string]any{"icon_url": publicURL})
	}
	if err != nil {
		logger.Error("Failed to record image URL", "path", relPath, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not store image."})
	}

	return c.JSON(http.StatusCreated, map[string]string{"url": publicURL})
}

// RemoveImage handles DELETE /:username/admin/images. It clears the recorded
// image URL; the blob itself is left for storage housekeeping.
func (h *AdminHandler) RemoveImage(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("username")

	kind := c.QueryParam("kind")
	switch kind {
	case "profile":
		if err := h.store.UpdateProfile(ctx, username, map[string]any{"profile_image": ""}); err != nil {
			slog.Error("Failed to clear profile image", "username", username, "error", err)
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not remove image."})
		}
	case "icon":
		linkID, err := parseRecordID(domain.TableLinks, c.QueryParam("link_id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if err := h.store.UpdateLink(ctx, linkID, map[string]any{"icon_url": ""}); err != nil {
			slog.Error("Failed to clear link icon", "link", linkID.String(), "error", err)
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not remove image."})
		}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be 'profile' or 'icon'")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) mapAcquireError(c echo.Context, username string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Message: "Profile not found."})
	}
	slog.Error("Failed to activate profile view", "username", username, "error", err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not load profile."})
}

func (h *AdminHandler) mapReorderError(c echo.Context, err error) error {
	if err == nil {
		return c.NoContent(http.StatusNoContent)
	}
	if errors.Is(err, domain.ErrScopeMismatch) {
		// A cross-section drag persisted nothing; the client's view simply
		// snaps back.
		return c.NoContent(http.StatusNoContent)
	}
	var partial *reorder.PartialReorderError
	if errors.As(err, &partial) {
		slog.Error("Reorder partially applied", "table", partial.Table, "applied", partial.Applied, "total", partial.Total, "error", partial.Err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "partial_reorder",
			Message: fmt.Sprintf("Reorder failed after %d of %d writes; positions remain consistent but not in the requested order.", partial.Applied, partial.Total),
		})
	}
	slog.Error("Reorder failed", "error", err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not reorder."})
}

// parseRecordID parses a "table:id" record identifier and checks it addresses
// the expected table.
func parseRecordID(table, raw string) (*surrealmodels.RecordID, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("malformed record id %q", raw)
	}
	if parts[0] != table {
		return nil, fmt.Errorf("record id %q does not address table %q", raw, table)
	}
	id := surrealmodels.NewRecordID(parts[0], parts[1])
	return &id, nil
}

func findSection(list []domain.Section, id *surrealmodels.RecordID) *domain.Section {
	for i := range list {
		if domain.SameRecord(list[i].ID, id) {
			return &list[i]
		}
	}
	return nil
}

func findLink(snap live.Snapshot, id *surrealmodels.RecordID) *domain.Link {
	for si := range snap.Sections {
		for li := range snap.Sections[si].Links {
			if domain.SameRecord(snap.Sections[si].Links[li].ID, id) {
				return &snap.Sections[si].Links[li]
			}
		}
	}
	return nil
}
