package removebg

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framebooth/removebg"
)

func TestHandleRemove_ProxiesService(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "image": "data:image/png;base64,BBBB"})
	}))
	defer backend.Close()

	handler := HandleRemove(removebg.NewClient(backend.URL))
	req := httptest.NewRequest(http.MethodPost, "/api/remove-background", strings.NewReader(`{"image":"data:image/png;base64,AAAA"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp removeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "data:image/png;base64,BBBB", resp.Image)
}

func TestHandleRemove_RequiresImage(t *testing.T) {
	handler := HandleRemove(removebg.NewClient("http://localhost:0"))
	req := httptest.NewRequest(http.MethodPost, "/api/remove-background", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRemove_ServiceFailureIsBadGateway(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "boom"})
	}))
	defer backend.Close()

	handler := HandleRemove(removebg.NewClient(backend.URL))
	req := httptest.NewRequest(http.MethodPost, "/api/remove-background", strings.NewReader(`{"image":"data:image/png;base64,AAAA"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
