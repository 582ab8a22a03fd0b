package booth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"framebooth/capture"
	"framebooth/core"
)

type stubStore struct {
	tpl *core.FrameTemplate
	err error
}

func (s *stubStore) Get(ctx context.Context, slug string) (*core.FrameTemplate, error) {
	return s.tpl, s.err
}
func (s *stubStore) Save(ctx context.Context, template *core.FrameTemplate) error { return nil }
func (s *stubStore) List(ctx context.Context, page, pageSize int) (*core.TemplatePage, error) {
	return &core.TemplatePage{}, nil
}
func (s *stubStore) Delete(ctx context.Context, slug string) error { return nil }

func wsRouter(store core.TemplateStore) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/booth/{slug}/ws", NewManager(capture.DefaultConfig()).HandleWS(store))
	return r
}

func TestHandleWS_UnknownSlugIsNotFound(t *testing.T) {
	router := wsRouter(&stubStore{err: core.ErrTemplateNotFound})

	req := httptest.NewRequest(http.MethodGet, "/booth/missing/ws", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Template not found")
}

func TestHandleWS_StoreFailureIsServerError(t *testing.T) {
	router := wsRouter(&stubStore{err: errors.New("disk I/O error")})

	req := httptest.NewRequest(http.MethodGet, "/booth/broken/ws", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to get template")
}
