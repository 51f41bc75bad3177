// Package preview renders and serves book photo thumbnails.
package preview

import (
	"fmt"

	"github.com/h2non/bimg"
)

const (
	maxThumbnailSize = 320 // longest side of a thumbnail in pixels
	jpegQuality      = 85

	// ContentType is the media type of every generated thumbnail.
	ContentType = "image/jpeg"
)

// Generator turns uploaded photos into JPEG thumbnails with libvips.
type Generator struct {
	maxSize int
	quality int
}

func NewGenerator() *Generator {
	return &Generator{maxSize: maxThumbnailSize, quality: jpegQuality}
}

// Thumbnail scales the image so its longest side is at most the thumbnail
// size. Smaller images are only re-encoded.
func (g *Generator) Thumbnail(data []byte) ([]byte, error) {
	image := bimg.NewImage(data)

	size, err := image.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to get image size: %w", err)
	}

	width, height := calculateNewDimensions(size.Width, size.Height, g.maxSize)

	processed, err := image.Process(bimg.Options{
		Width:   width,
		Height:  height,
		Quality: g.quality,
		Type:    bimg.JPEG,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	return processed, nil
}

// calculateNewDimensions fits width x height into a maxSize square, keeping
// the aspect ratio. Images already inside the square keep their size.
func calculateNewDimensions(width, height, maxSize int) (newWidth, newHeight int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	if width <= maxSize && height <= maxSize {
		return width, height
	}
	if width > height {
		newWidth = maxSize
		newHeight = (height * maxSize) / width
	} else {
		newHeight = maxSize
		newWidth = (width * maxSize) / height
	}
	if newWidth == 0 {
		newWidth = 1
	}
	if newHeight == 0 {
		newHeight = 1
	}
	return
}
