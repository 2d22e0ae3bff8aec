package faceapi

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// CropRegion cuts the bounding box out of the frame and scales the
// crop to size x size for the embedding model. The box is clamped to
// the frame bounds; boxes that collapse to nothing after clamping are
// an error, which the caller treats as a skipped region.
func CropRegion(frame []byte, bbox []float64, size int) ([]byte, error) {
	if len(bbox) != 4 {
		return nil, fmt.Errorf("bounding box must have 4 coordinates, got %d", len(bbox))
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	bounds := img.Bounds()
	rect := image.Rect(int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3])).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("bounding box %v outside frame %v", bbox, bounds)
	}

	crop := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(crop, crop.Bounds(), img, rect, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, crop, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}

	return buf.Bytes(), nil
}
