// Package pdf loads single PDF pages as still media.
package pdf

import (
	"fmt"
	"path/filepath"

	"github.com/gen2brain/go-fitz"

	"github.com/menta2k/croppy/internal/logging"
	"github.com/menta2k/croppy/pkg/media"
)

// DefaultDPI renders pages at roughly screen resolution.
const DefaultDPI = 150

// PageCount returns the number of pages in the document at path.
func PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", media.ErrDecode, err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// LoadPage renders page (zero-based) at dpi and wraps it as media. A
// non-positive dpi selects DefaultDPI.
func LoadPage(path string, page int, dpi float64) (*media.Media, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", media.ErrDecode, err)
	}
	defer doc.Close()

	if n := doc.NumPage(); page < 0 || page >= n {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", page+1, n)
	}

	img, err := doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, fmt.Errorf("%w: render page %d: %w", media.ErrDecode, page+1, err)
	}
	logging.Logger().Info("pdf page loaded", "path", path, "page", page+1, "dpi", dpi,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return media.NewImage(img, fmt.Sprintf("%s#%d", filepath.Base(path), page+1)), nil
}
