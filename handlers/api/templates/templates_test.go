package templates

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framebooth/compositor"
	"framebooth/core"
	"framebooth/stores/memory"
)

func newRouter(store core.TemplateStore) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/api/templates", HandleList(store))
	r.Post("/api/templates", HandleSave(store))
	r.Route("/api/templates/{slug}", func(r chi.Router) {
		r.Get("/", HandleGet(store))
		r.Put("/", HandleSave(store))
		r.Delete("/", HandleDelete(store))
		r.Post("/overlay", HandleOverlay(store))
		r.Post("/compose", HandleCompose(store))
	})
	return r
}

func validTemplate(slug string) *core.FrameTemplate {
	return &core.FrameTemplate{
		Slug: slug,
		Name: "Test Frame",
		Layout: core.FrameLayout{
			Canvas: core.CanvasSpec{Width: 120, Height: 180, Padding: 10},
			Frame: core.FrameStyle{
				Color:           "#111111",
				Thickness:       4,
				CornerRadius:    6,
				BackgroundColor: "#ffffff",
			},
			Slots: []core.FrameSlot{{ID: "slot-0", X: 10, Y: 10, Width: 40, Height: 40}},
		},
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSaveThenGet(t *testing.T) {
	router := newRouter(memory.NewStore())

	rec := doJSON(t, router, http.MethodPost, "/api/templates", validTemplate("party-frame"))
	require.Equal(t, http.StatusOK, rec.Code)

	var saved SaveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, "party-frame", saved.Slug)

	rec = doJSON(t, router, http.MethodGet, "/api/templates/party-frame", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got core.FrameTemplate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Test Frame", got.Name)
	assert.Len(t, got.Layout.Slots, 1)
}

func TestSaveGeneratesSlug(t *testing.T) {
	router := newRouter(memory.NewStore())

	rec := doJSON(t, router, http.MethodPost, "/api/templates", validTemplate(""))
	require.Equal(t, http.StatusOK, rec.Code)

	var saved SaveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.NotEmpty(t, saved.Slug)
	assert.Equal(t, strings.ToLower(saved.Slug), saved.Slug)
}

func TestSaveURLSlugWinsOverBody(t *testing.T) {
	router := newRouter(memory.NewStore())

	rec := doJSON(t, router, http.MethodPut, "/api/templates/url-slug", validTemplate("body-slug"))
	require.Equal(t, http.StatusOK, rec.Code)

	var saved SaveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, "url-slug", saved.Slug)

	rec = doJSON(t, router, http.MethodGet, "/api/templates/body-slug", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveRejectsInvalidJSON(t *testing.T) {
	router := newRouter(memory.NewStore())

	req := httptest.NewRequest(http.MethodPost, "/api/templates", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownTemplate(t *testing.T) {
	router := newRouter(memory.NewStore())

	rec := doJSON(t, router, http.MethodGet, "/api/templates/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDelete(t *testing.T) {
	router := newRouter(memory.NewStore())

	doJSON(t, router, http.MethodPost, "/api/templates", validTemplate("doomed"))
	rec := doJSON(t, router, http.MethodDelete, "/api/templates/doomed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/templates/doomed", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListReturnsEmptyArrayNotNull(t *testing.T) {
	router := newRouter(memory.NewStore())

	rec := doJSON(t, router, http.MethodGet, "/api/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"templates":[]`)
}

func TestListPagination(t *testing.T) {
	store := memory.NewStore()
	router := newRouter(store)
	for _, slug := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(context.Background(), validTemplate(slug)))
	}

	rec := doJSON(t, router, http.MethodGet, "/api/templates?page=2&pageSize=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page core.TemplatePage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Templates, 1)
}

func TestOverlayRenderedAndPersisted(t *testing.T) {
	store := memory.NewStore()
	router := newRouter(store)
	require.NoError(t, store.Save(context.Background(), validTemplate("boothy")))

	rec := doJSON(t, router, http.MethodPost, "/api/templates/boothy/overlay", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp["overlayDataUrl"], "data:image/png;base64,"))

	got, err := store.Get(context.Background(), "boothy")
	require.NoError(t, err)
	assert.Equal(t, resp["overlayDataUrl"], got.OverlayDataURL)
}

func TestComposeFinalImage(t *testing.T) {
	store := memory.NewStore()
	router := newRouter(store)
	require.NoError(t, store.Save(context.Background(), validTemplate("strip")))

	shot, err := compositor.EncodePNGDataURL(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/templates/strip/compose", ComposeRequest{
		SlotAssignments: map[string]int{"slot-0": 0},
		CapturedShots:   []string{shot},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ComposeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "framebooth-strip.png", resp.Filename)

	img, err := compositor.DecodeDataURL(resp.Image)
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 180, img.Bounds().Dy())
}

func TestComposeUnknownTemplate(t *testing.T) {
	router := newRouter(memory.NewStore())

	rec := doJSON(t, router, http.MethodPost, "/api/templates/nope/compose", ComposeRequest{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
