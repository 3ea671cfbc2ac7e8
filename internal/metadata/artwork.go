package metadata

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder registration
	"io"
	"net/http"
	"time"

	"golang.org/x/image/draw"
)

// maxArtworkBytes bounds cover downloads.
const maxArtworkBytes = 20 << 20

// ArtworkClient downloads cover art.
type ArtworkClient struct {
	httpClient *http.Client
}

// NewArtworkClient creates an ArtworkClient with a 15 second timeout.
func NewArtworkClient() *ArtworkClient {
	return &ArtworkClient{httpClient: &http.Client{Timeout: 15 * time.Second}}
}

// Fetch downloads the image at artworkURL.
func (c *ArtworkClient) Fetch(ctx context.Context, artworkURL string) ([]byte, error) {
	if artworkURL == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artworkURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create artwork request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download artwork: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artwork download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtworkBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read artwork data: %w", err)
	}
	return data, nil
}

// PrepareArtwork decodes an image, scales it down to fit maxSize x maxSize
// (aspect ratio kept, Catmull-Rom) and re-encodes it as JPEG. A maxSize of 0
// keeps the original dimensions.
func PrepareArtwork(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode artwork: %w", err)
	}

	bounds := img.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), maxSize)

	var out image.Image = img
	if width != bounds.Dx() || height != bounds.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode artwork: %w", err)
	}
	return buf.Bytes(), nil
}

func fitWithin(width, height, maxSize int) (int, int) {
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return width, height
	}
	if width >= height {
		h := height * maxSize / width
		if h < 1 {
			h = 1
		}
		return maxSize, h
	}
	w := width * maxSize / height
	if w < 1 {
		w = 1
	}
	return w, maxSize
}
