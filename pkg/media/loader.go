package media

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
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/croppy/internal/logging"
)

// ErrDecode marks unsupported or corrupt input. The input is discarded.
var ErrDecode = errors.New("media decode failed")

// Loader decodes still images from files, memory and URLs
type Loader struct {
	config Config
}

// Config holds configuration for media loading
type Config struct {
	SupportedFormats []string
	// MinImageSize rejects images with a side below it. Zero disables the check.
	MinImageSize int
	// MaxBytes caps URL downloads.
	MaxBytes    int64
	HTTPTimeout time.Duration
	UserAgent   string
}

// DefaultConfig returns the stock loader configuration.
func DefaultConfig() Config {
	return Config{
		SupportedFormats: []string{"jpeg", "png", "gif", "webp", "tiff", "bmp"},
		MinImageSize:     1,
		MaxBytes:         64 << 20,
		HTTPTimeout:      30 * time.Second,
		UserAgent:        "croppy/1.0",
	}
}

// New creates a new Loader with default configuration
func New() *Loader {
	return &Loader{config: DefaultConfig()}
}

// NewWithConfig creates a new Loader with custom configuration
func NewWithConfig(config Config) *Loader {
	return &Loader{config: config}
}

var defaultLoader = New()

// LoadFile decodes an image file with the default loader.
func LoadFile(path string) (*Media, error) { return defaultLoader.LoadFile(path) }

// LoadBytes decodes pasted image data with the default loader.
func LoadBytes(data []byte) (*Media, error) { return defaultLoader.LoadBytes(data) }

// LoadURL downloads and decodes an image with the default loader.
func LoadURL(ctx context.Context, rawURL string) (*Media, error) {
	return defaultLoader.LoadURL(ctx, rawURL)
}

// LoadFile loads an image from file
func (l *Loader) LoadFile(path string) (*Media, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	img, err := l.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	logging.Logger().Info("image loaded", "path", path, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return NewImage(img, filepath.Base(path)), nil
}

// LoadBytes loads an image from memory, e.g. a clipboard paste
func (l *Loader) LoadBytes(data []byte) (*Media, error) {
	img, err := l.Decode(data)
	if err != nil {
		return nil, err
	}
	return NewImage(img, "pasted"), nil
}

// LoadReader loads an image from an io.Reader
func (l *Loader) LoadReader(r io.Reader) (*Media, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return l.LoadBytes(data)
}

// LoadURL downloads and loads an image from a URL
func (l *Loader) LoadURL(ctx context.Context, rawURL string) (*Media, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsed.Scheme)
	}

	client := &http.Client{Timeout: l.config.HTTPTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", l.config.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: URL does not point to an image (Content-Type: %s)", ErrDecode, ct)
	}

	body := io.Reader(resp.Body)
	if l.config.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, l.config.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if l.config.MaxBytes > 0 && int64(len(data)) > l.config.MaxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", l.config.MaxBytes)
	}

	img, err := l.Decode(data)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(parsed.Path)
	if name == "." || name == "/" {
		name = parsed.Host
	}
	return NewImage(img, name), nil
}

// Decode decodes image bytes, applying EXIF orientation. WebP files the
// registered decoder rejects are retried with libwebp.
func (l *Loader) Decode(data []byte) (image.Image, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		img, werr := webp.Decode(bytes.NewReader(data))
		if werr != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return l.checked(img)
	}
	if !l.isFormatSupported(format) {
		return nil, fmt.Errorf("%w: unsupported image format: %s", ErrDecode, format)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		if format == "webp" {
			if wimg, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
				return l.checked(wimg)
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return l.checked(img)
}

func (l *Loader) checked(img image.Image) (image.Image, error) {
	if err := l.Validate(img); err != nil {
		return nil, err
	}
	return img, nil
}

func (l *Loader) isFormatSupported(format string) bool {
	if len(l.config.SupportedFormats) == 0 {
		return true
	}
	for _, supported := range l.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// Validate checks if an image meets minimum requirements
func (l *Loader) Validate(img image.Image) error {
	b := img.Bounds()
	if b.Dx() < l.config.MinImageSize || b.Dy() < l.config.MinImageSize {
		return fmt.Errorf("%w: image too small: %dx%d (minimum: %d)",
			ErrDecode, b.Dx(), b.Dy(), l.config.MinImageSize)
	}
	return nil
}
