package monitor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SnapshotSource pulls still frames from an IP camera's snapshot
// endpoint. Most classroom cameras expose one as a plain JPEG URL.
type SnapshotSource struct {
	url    string
	client *http.Client
}

// NewSnapshotSource creates a frame source for the given snapshot URL.
func NewSnapshotSource(url string) *SnapshotSource {
	return &SnapshotSource{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Frame fetches one snapshot from the camera.
func (s *SnapshotSource) Frame(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	frame, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("camera returned an empty snapshot")
	}

	return frame, nil
}

// DirSource serves the newest image file from a directory. Useful for
// development and for cameras that write snapshots to a share.
type DirSource struct {
	dir string
}

// NewDirSource creates a frame source over a directory of image files.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Frame returns the contents of the most recently modified image file.
func (d *DirSource) Frame(ctx context.Context) ([]byte, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("reading frames directory: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() || !isImageFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(d.dir, e.Name()),
			modTime: info.ModTime(),
		})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no image files in %s", d.dir)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	frame, err := os.ReadFile(candidates[0].path)
	if err != nil {
		return nil, fmt.Errorf("reading frame %s: %w", candidates[0].path, err)
	}
	return frame, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp":
		return true
	}
	return false
}
