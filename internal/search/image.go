package search

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	_ "image/gif"  // register GIF for DecodeConfig
	_ "image/jpeg" // register JPEG for DecodeConfig
	_ "image/png"  // register PNG for DecodeConfig
	"net/http"
	"strings"

	searchsvc "github.com/janisto/profile-search/internal/service/search"
)

// PreviewMaxSize bounds the preview thumbnail in both dimensions.
const PreviewMaxSize = 200

// ErrEmptyImage is returned by NewImage when no bytes were uploaded.
var ErrEmptyImage = errors.New("image is empty")

// Image is the file picked in the image selector.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
	// Width and Height are zero when the bytes are not a decodable image.
	Width  int
	Height int
}

// NewImage wraps an uploaded file. The content type is sniffed when the browser did not
// send a specific one. Undecodable bytes are accepted; they just have no dimensions.
func NewImage(filename, contentType string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	img := &Image{
		Filename:    filename,
		ContentType: contentType,
		Data:        data,
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width = cfg.Width
		img.Height = cfg.Height
	}
	return img, nil
}

// PreviewURL returns a data: URL of the image for use as a local preview source.
func (img *Image) PreviewURL() string {
	if img == nil {
		return ""
	}
	return "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// ThumbnailSize scales the image to fit within bound x bound, keeping the aspect ratio.
// Images are never scaled up. Unknown dimensions yield bound x bound.
func (img *Image) ThumbnailSize(bound int) (width, height int) {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return bound, bound
	}
	if img.Width <= bound && img.Height <= bound {
		return img.Width, img.Height
	}
	if img.Width >= img.Height {
		return bound, max(1, img.Height*bound/img.Width)
	}
	return max(1, img.Width*bound/img.Height), bound
}

func (img *Image) file() *searchsvc.File {
	if img == nil {
		return nil
	}
	return &searchsvc.File{
		Filename:    img.Filename,
		ContentType: img.ContentType,
		Data:        img.Data,
	}
}
