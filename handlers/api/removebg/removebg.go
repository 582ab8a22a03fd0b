// Package removebg proxies editor requests to the background-removal
// service.
package removebg

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"framebooth/removebg"
)

type removeRequest struct {
	Image string `json:"image"`
}

type removeResponse struct {
	Image string `json:"image"`
}

// HandleRemove forwards an image data URL to the removal service. Failures
// are non-fatal for the editor: the client keeps the original image and shows
// the error message.
func HandleRemove(client *removebg.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req removeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Image == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "An image data URL is required"})
			return
		}

		result, err := client.Remove(r.Context(), req.Image)
		if err != nil {
			logrus.WithError(err).Warn("Background removal failed")
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": "Background removal failed, the original image was kept"})
			return
		}
		render.JSON(w, r, removeResponse{Image: result})
	}
}
