// Package acquire turns user supplied files into decoded images.
package acquire

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"roast-api/internal/shared"
)

type Source string

const (
	SourceUpload Source = "upload"
	SourceCamera Source = "camera"
	SourceBody   Source = "body"
)

// Form field names. "image" is accepted as an alias of "upload" for API
// clients used to a single file field.
const (
	UploadField = "upload"
	ImageField  = "image"
	CameraField = "camera"
)

// Image is a decoded user image and where it came from.
type Image struct {
	Image    image.Image
	Source   Source
	Format   string
	Filename string
}

// FromMultipart picks exactly one image out of a parsed multipart form. An
// upload always wins over a camera capture when both are present.
func FromMultipart(form *multipart.Form) (*Image, error) {
	if form == nil {
		return nil, shared.ErrNoImage
	}

	candidates := []struct {
		field  string
		source Source
	}{
		{UploadField, SourceUpload},
		{ImageField, SourceUpload},
		{CameraField, SourceCamera},
	}
	for _, cand := range candidates {
		files := form.File[cand.field]
		if len(files) == 0 || files[0].Size == 0 {
			continue
		}
		return fromFileHeader(files[0], cand.source)
	}
	return nil, shared.ErrNoImage
}

func fromFileHeader(fh *multipart.FileHeader, source Source) (*Image, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, errors.Join(shared.ErrInvalidForm, fmt.Errorf("open %s: %w", fh.Filename, err))
	}
	defer file.Close()

	img, err := decode(file)
	if err != nil {
		return nil, err
	}
	img.Source = source
	img.Filename = fh.Filename
	return img, nil
}

// FromBody decodes a raw image request body. An empty contentType is
// accepted; otherwise it must be an image type or application/octet-stream.
func FromBody(contentType string, r io.Reader) (*Image, error) {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || !acceptedBodyType(mediaType) {
			return nil, shared.ErrUnsupportedMediaType
		}
	}
	if r == nil {
		return nil, shared.ErrNoImage
	}
	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, shared.ErrNoImage
		}
		return nil, errors.Join(shared.ErrInvalidForm, err)
	}

	img, err := decode(br)
	if err != nil {
		return nil, err
	}
	img.Source = SourceBody
	return img, nil
}

func acceptedBodyType(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/") || mediaType == "application/octet-stream"
}

func decode(r io.Reader) (*Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Join(shared.ErrUnsupportedImage, err)
	}
	return &Image{Image: img, Format: format}, nil
}
