package cropper

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Format is an output image format
type Format string

// Supported output formats
const (
	PNG  Format = "png"
	WebP Format = "webp"
	JPEG Format = "jpg"
)

// DefaultQuality is used for lossy output when none is given.
const DefaultQuality = 95

// ParseFormat parses a format name. The empty string selects PNG.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "", "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	case "jpg", "jpeg":
		return JPEG, nil
	}
	return "", fmt.Errorf("unsupported output format: %s", name)
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string {
	return string(f)
}

// MIME returns the format's media type.
func (f Format) MIME() string {
	switch f {
	case WebP:
		return "image/webp"
	case JPEG:
		return "image/jpeg"
	default:
		return "image/png"
	}
}

// Encode writes img in the given format. PNG and WebP are lossless; quality
// applies to JPEG only.
func Encode(w io.Writer, img image.Image, f Format, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	switch f {
	case WebP:
		return webp.Encode(w, img, &webp.Options{Lossless: true, Quality: float32(quality)})
	case JPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case PNG, "":
		return imaging.Encode(w, img, imaging.PNG)
	default:
		return fmt.Errorf("unsupported output format: %s", f)
	}
}

// EncodeBytes encodes img into memory.
func EncodeBytes(img image.Image, f Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, f, quality); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", f, err)
	}
	return buf.Bytes(), nil
}
