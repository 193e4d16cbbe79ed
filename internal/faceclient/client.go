package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoFace is returned when the service finds no face in the photo.
var ErrNoFace = errors.New("no face detected in image")

// Quality contains face quality metrics.
type Quality struct {
	Score     float64 `json:"score"`
	Blur      float64 `json:"blur"`
	IsFrontal bool    `json:"is_frontal"`
}

// Detection is the face service verdict for one attendance photo.
type Detection struct {
	Score         float64
	FacesDetected int
	Quality       *Quality
}

// Client calls the face recognition microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set every photo scores as a clean single
// face, for local runs without the service.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // Face processing can take time
		},
	}
}

// Detect scores the photo at imageURL.
func (c *Client) Detect(ctx context.Context, imageURL string) (*Detection, error) {
	if c.Skip {
		return &Detection{Score: 0.95, FacesDetected: 1, Quality: &Quality{Score: 0.85, Blur: 0.1, IsFrontal: true}}, nil
	}
	if imageURL == "" {
		return nil, fmt.Errorf("image url required")
	}

	body, _ := json.Marshal(map[string]string{"image_url": imageURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Score         float64  `json:"score"`
		FacesDetected int      `json:"faces_detected"`
		Quality       *Quality `json:"quality"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.FacesDetected == 0 {
		return nil, ErrNoFace
	}
	return &Detection{Score: out.Score, FacesDetected: out.FacesDetected, Quality: out.Quality}, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}
