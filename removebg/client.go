// Package removebg calls the external background-removal service. The
// service is an opaque collaborator: a data URL goes in, a data URL with the
// background stripped comes out.
package removebg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// BackgroundRemovalError is surfaced to the user as non-fatal; the caller
// keeps the original image when removal fails.
type BackgroundRemovalError struct {
	Reason string
	Err    error
}

func (e *BackgroundRemovalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("background removal failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("background removal failed: %s", e.Reason)
}

func (e *BackgroundRemovalError) Unwrap() error { return e.Err }

// Client talks to the rembg HTTP service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the given service base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type removeRequest struct {
	ImageData string `json:"image_data"`
}

type removeResponse struct {
	Success bool   `json:"success"`
	Image   string `json:"image"`
	Error   string `json:"error"`
}

// Remove sends an image data URL to the service and returns the processed
// data URL.
func (c *Client) Remove(ctx context.Context, imageDataURL string) (string, error) {
	if c.baseURL == "" {
		return "", &BackgroundRemovalError{Reason: "service not configured"}
	}

	body, err := json.Marshal(removeRequest{ImageData: imageDataURL})
	if err != nil {
		return "", &BackgroundRemovalError{Reason: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/remove-background-url", bytes.NewReader(body))
	if err != nil {
		return "", &BackgroundRemovalError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &BackgroundRemovalError{Reason: "service unreachable", Err: err}
	}
	defer resp.Body.Close()

	var decoded removeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &BackgroundRemovalError{Reason: "decode response", Err: err}
	}
	if resp.StatusCode != http.StatusOK || !decoded.Success {
		reason := decoded.Error
		if reason == "" {
			reason = fmt.Sprintf("service returned status %d", resp.StatusCode)
		}
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"error":  decoded.Error,
		}).Warn("Background removal service rejected request")
		return "", &BackgroundRemovalError{Reason: reason}
	}
	if decoded.Image == "" {
		return "", &BackgroundRemovalError{Reason: "service returned no image"}
	}
	return decoded.Image, nil
}
