package photo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// Mirror uploads to an HTTP endpoint that accepts a multipart "file" field
// and answers with {"url": "..."}.
type Mirror struct {
	Endpoint string
	HTTP     *http.Client
}

// NewMirror creates a mirror provider. Timeouts come from the pipeline.
func NewMirror(endpoint string) *Mirror {
	return &Mirror{Endpoint: endpoint, HTTP: &http.Client{}}
}

// Name is the mirror host, used as the metrics label.
func (m *Mirror) Name() string {
	if u, err := url.Parse(m.Endpoint); err == nil && u.Host != "" {
		return "mirror:" + u.Host
	}
	return "mirror"
}

func (m *Mirror) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("mirror: create form file failed: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("mirror: write file failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("mirror: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := m.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("mirror: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("mirror: upload failed (%d): %s", resp.StatusCode, string(body))
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("mirror: decode response failed: %w", err)
	}
	return out.URL, nil
}
