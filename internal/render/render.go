// Package render turns stored rs3 documents into PNG images by calling an
// external rendering service.
package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/arne-cl/rstWeb/internal/apperr"
	"github.com/arne-cl/rstWeb/internal/models"
)

// maxImageBytes bounds the size of a rendered image read from the service.
const maxImageBytes = 32 << 20

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// Renderer converts a persisted document into a raster image.
type Renderer interface {
	Render(ctx context.Context, doc *models.Document) ([]byte, error)
}

// HTTP is a Renderer backed by a rendering service that accepts a multipart
// upload (field "input_file") and answers with PNG bytes.
type HTTP struct {
	url    string
	client *http.Client
}

// NewHTTP creates an HTTP renderer posting to url with the given timeout.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	return &HTTP{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Verify *HTTP satisfies Renderer at compile time.
var _ Renderer = (*HTTP)(nil)

// Render uploads the document content and returns the PNG produced by the service.
func (h *HTTP) Render(ctx context.Context, doc *models.Document) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("input_file", doc.Name)
	if err != nil {
		return nil, fmt.Errorf("render: build request: %w", err)
	}
	if _, err := part.Write(doc.Content); err != nil {
		return nil, fmt.Errorf("render: build request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("render: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, &body)
	if err != nil {
		return nil, fmt.Errorf("render: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "image/png")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, upstream("%s/%s: %w", doc.Project, doc.Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, upstream("%s/%s: read response: %w", doc.Project, doc.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, upstream("%s/%s: service returned %s: %s",
			doc.Project, doc.Name, resp.Status, truncate(data, 200))
	}
	if len(data) > maxImageBytes {
		return nil, upstream("%s/%s: image exceeds %d bytes", doc.Project, doc.Name, maxImageBytes)
	}
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, upstream("%s/%s: response is not a PNG image", doc.Project, doc.Name)
	}
	return data, nil
}

func upstream(format string, args ...any) error {
	return fmt.Errorf("%w: render: "+format, append([]any{apperr.ErrUpstream}, args...)...)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
