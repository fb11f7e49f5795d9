// Package photo loads post cover images: re-fetching stored ones and validating new uploads.
package photo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/postdesk/internal/blogapi"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrNotFound  = errors.New("photo not found")
	ErrNotImage  = errors.New("file is not a supported image")
	ErrTooLarge  = errors.New("photo exceeds the size limit")
	ErrEmptyName = errors.New("photo name is empty")
)

// Fetcher retrieves an existing photo by its stored name.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (*blogapi.Picture, error)
}

// Info describes a decoded image header.
type Info struct {
	Format string
	Width  int
	Height int
}

// Inspect decodes only the image header and reports its format and size.
func Inspect(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, ErrNotImage
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// FromUpload reads a selected file and validates that it is an image within maxBytes.
func FromUpload(fh *multipart.FileHeader, maxBytes int64) (*blogapi.Picture, Info, error) {
	if fh == nil {
		return nil, Info{}, ErrNotImage
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, Info{}, ErrTooLarge
	}

	file, err := fh.Open()
	if err != nil {
		return nil, Info{}, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	return FromReader(file, fh.Filename, fh.Header.Get("Content-Type"), maxBytes)
}

// FromReader is FromUpload for an already opened stream.
func FromReader(r io.Reader, filename, contentType string, maxBytes int64) (*blogapi.Picture, Info, error) {
	reader := r
	if maxBytes > 0 {
		reader = io.LimitReader(r, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, Info{}, fmt.Errorf("read upload: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, Info{}, ErrTooLarge
	}

	info, err := Inspect(data)
	if err != nil {
		return nil, Info{}, err
	}

	return &blogapi.Picture{
		Filename:    cleanFilename(filename, info.Format),
		ContentType: resolveContentType(contentType, data),
		Data:        data,
	}, info, nil
}

// PreviewURL joins the upload folder base URL and a stored photo name.
func PreviewURL(base, name string) string {
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if name == "" {
		return ""
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + name
}

func cleanFilename(name, format string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "photo"
		if format != "" {
			name += "." + format
		}
	}
	return name
}

func resolveContentType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	return http.DetectContentType(data)
}
