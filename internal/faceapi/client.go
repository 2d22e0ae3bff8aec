// Package faceapi talks to the face analysis service that serves the
// detection and embedding models. The service loads its models on
// demand, so the first call after startup carries the warmup latency.
package faceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jsvoboda/classwatch/internal/config"
)

const (
	defaultServiceURL = "http://localhost:8000"

	// targetLabel is the only detection class the pipeline cares about.
	targetLabel = "person"
)

// Client computes face detections and embeddings using the face
// analysis service. Safe for concurrent use.
type Client struct {
	baseURL         string
	dim             int
	detectThreshold float64
	cropSize        int
	client          *http.Client

	mu     sync.Mutex
	warmed bool
}

// NewClient creates a client for the face analysis service.
func NewClient(cfg config.FaceServiceConfig) *Client {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = defaultServiceURL
	}
	return &Client{
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		dim:             cfg.Dim,
		detectThreshold: cfg.DetectThreshold,
		cropSize:        cfg.CropSize,
		client:          &http.Client{Timeout: 60 * time.Second},
	}
}

// Warmup asks the service to load its models. Succeeds at most once;
// after a success, further calls return immediately. A failure leaves
// the client cold so the next start attempt retries.
func (c *Client) Warmup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.warmed {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/warmup", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("warmup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("warmup failed (status %d): %s", resp.StatusCode, string(body))
	}

	c.warmed = true
	return nil
}

// Detect finds face regions in a frame. Regions below or at the
// detection threshold and regions of other classes are filtered out.
// An empty result is the normal outcome for a frame without faces,
// not an error. Triggers model warmup on first use.
func (c *Client) Detect(ctx context.Context, frame []byte) ([]Region, error) {
	if err := c.Warmup(ctx); err != nil {
		return nil, err
	}

	body, err := c.postMultipartImage(ctx, "/detect", frame)
	if err != nil {
		return nil, err
	}

	var detResp detectResponse
	if err := json.Unmarshal(body, &detResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	regions := make([]Region, 0, len(detResp.Faces))
	for _, r := range detResp.Faces {
		if r.Label != "" && r.Label != targetLabel {
			continue
		}
		if r.Score <= c.detectThreshold {
			continue
		}
		if len(r.BBox) != 4 {
			continue
		}
		regions = append(regions, r)
	}
	return regions, nil
}

// Embed computes the embedding for a face crop. The returned vector has
// the model's dimensionality; the caller validates it against the
// roster at comparison time.
func (c *Client) Embed(ctx context.Context, crop []byte) ([]float32, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", crop)
	if err != nil {
		return nil, err
	}

	var embResp embedResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(embResp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	return embResp.Embedding, nil
}

// EmbedRegion crops the region out of the frame, scales it to the
// model input size, and embeds it.
func (c *Client) EmbedRegion(ctx context.Context, frame []byte, region Region) ([]float32, error) {
	crop, err := CropRegion(frame, region.BBox, c.cropSize)
	if err != nil {
		return nil, fmt.Errorf("cropping region: %w", err)
	}
	return c.Embed(ctx, crop)
}

// Dim returns the configured embedding dimensionality.
func (c *Client) Dim() int {
	return c.dim
}

// postMultipartImage constructs a multipart form with the image data
// and posts it to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
