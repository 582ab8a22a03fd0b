// Package templates exposes the template persistence boundary over HTTP.
package templates

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"framebooth/compositor"
	"framebooth/core"
)

// SaveResponse echoes the slug the template was stored under.
type SaveResponse struct {
	Slug string `json:"slug"`
}

// ComposeRequest carries a capture session's arrangement for server-side
// composition.
type ComposeRequest struct {
	SlotAssignments map[string]int `json:"slotAssignments"`
	CapturedShots   []string       `json:"capturedShots"`
}

// ComposeResponse is the final artifact plus its suggested download name.
type ComposeResponse struct {
	Image    string `json:"image"`
	Filename string `json:"filename"`
}

func HandleGet(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		if slug == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Template slug is required"})
			return
		}

		tpl, err := store.Get(r.Context(), slug)
		if err != nil {
			if errors.Is(err, core.ErrTemplateNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Template not found"})
				return
			}
			logrus.WithFields(logrus.Fields{"error": err, "slug": slug}).Error("Failed to get template")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get template"})
			return
		}
		render.JSON(w, r, tpl)
	}
}

// HandleSave upserts a template by slug. The slug is caller-supplied; a save
// without one gets a generated slug, and saving the same slug again replaces
// the stored template. In-memory template state on the client is never lost
// to a failed save: the handler reports the failure and the caller retries.
func HandleSave(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			logrus.WithError(err).Error("Failed to read request body")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()

		var tpl core.FrameTemplate
		if err := json.Unmarshal(body, &tpl); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid template payload"})
			return
		}

		if slug := chi.URLParam(r, "slug"); slug != "" {
			tpl.Slug = slug
		}
		if tpl.Slug == "" {
			tpl.Slug = strings.ToLower(ulid.Make().String())
		}
		if tpl.Name == "" {
			tpl.Name = tpl.Slug
		}

		if err := store.Save(r.Context(), &tpl); err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "slug": tpl.Slug}).Error("Failed to save template")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save template"})
			return
		}
		render.JSON(w, r, SaveResponse{Slug: tpl.Slug})
	}
}

func HandleList(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := queryInt(r, "page", 1)
		pageSize := queryInt(r, "pageSize", 20)

		result, err := store.List(r.Context(), page, pageSize)
		if err != nil {
			logrus.WithError(err).Error("Failed to list templates")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list templates"})
			return
		}
		if result.Templates == nil {
			result.Templates = []*core.FrameTemplate{}
		}
		render.JSON(w, r, result)
	}
}

func HandleDelete(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		if err := store.Delete(r.Context(), slug); err != nil {
			if errors.Is(err, core.ErrTemplateNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Template not found"})
				return
			}
			logrus.WithFields(logrus.Fields{"error": err, "slug": slug}).Error("Failed to delete template")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete template"})
			return
		}
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "deleted"})
	}
}

// HandleOverlay regenerates the template's cached preview overlay and
// persists it. Called by the editor after any layout/sticker/text change;
// the overlay is derived data, never a source of truth.
func HandleOverlay(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		tpl, err := store.Get(r.Context(), slug)
		if err != nil {
			if errors.Is(err, core.ErrTemplateNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Template not found"})
				return
			}
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get template"})
			return
		}

		overlay, err := compositor.ComposeOverlay(r.Context(), tpl)
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "slug": slug}).Error("Failed to render overlay")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to render overlay"})
			return
		}

		tpl.OverlayDataURL = overlay
		if err := store.Save(r.Context(), tpl); err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "slug": slug}).Error("Failed to persist overlay")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to persist overlay"})
			return
		}
		render.JSON(w, r, map[string]string{"overlayDataUrl": overlay})
	}
}

// HandleCompose renders the final image for a finished arrangement. Kept
// separate from the booth socket so kiosks that batch their capture flow can
// still produce the artifact over plain HTTP.
func HandleCompose(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		tpl, err := store.Get(r.Context(), slug)
		if err != nil {
			if errors.Is(err, core.ErrTemplateNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Template not found"})
				return
			}
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get template"})
			return
		}

		var req ComposeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid compose payload"})
			return
		}

		image, err := compositor.Compose(r.Context(), tpl, req.SlotAssignments, req.CapturedShots)
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "slug": slug}).Error("Failed to compose final image")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to compose final image"})
			return
		}
		render.JSON(w, r, ComposeResponse{
			Image:    image,
			Filename: fmt.Sprintf("framebooth-%s.png", slug),
		})
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
