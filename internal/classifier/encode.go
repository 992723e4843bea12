package classifier

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/nfnt/resize"
)

var ErrNilImage = errors.New("classifier: nil image")

// EncodeJPEG serializes img as a JPEG at the given quality. When
// maxDimension is non zero and either side of img is larger, the image is
// first scaled down to fit inside a maxDimension square keeping its aspect
// ratio.
func EncodeJPEG(img image.Image, quality int, maxDimension uint) ([]byte, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	if maxDimension > 0 {
		img = resize.Thumbnail(maxDimension, maxDimension, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Encode serializes img the way the client sends it.
func (c *Client) Encode(img image.Image) ([]byte, error) {
	return EncodeJPEG(img, c.cfg.JPEGQuality, c.cfg.MaxDimension)
}
