package cropper

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/menta2k/croppy/pkg/compositor"
	"github.com/menta2k/croppy/pkg/transform"
	"github.com/menta2k/croppy/pkg/types"
)

// createTestImage creates an opaque image where every pixel's colour encodes
// its coordinates
func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, pattern(x, y))
		}
	}
	return img
}

func pattern(x, y int) color.RGBA {
	return color.RGBA{uint8(x * 7), uint8(y * 13), uint8(x + 3*y), 255}
}

func TestNew(t *testing.T) {
	c := New()
	if c == nil {
		t.Fatal("New() returned nil")
	}
	if c.config.Sampling != "nearest" {
		t.Errorf("Expected nearest sampling by default, got %q", c.config.Sampling)
	}
}

func TestCropNoMedia(t *testing.T) {
	_, err := New().Crop(CropRequest{
		Frame:   types.NewSize(100, 100),
		Surface: types.NewSize(400, 400),
	})
	if !errors.Is(err, types.ErrNoMedia) {
		t.Errorf("Expected ErrNoMedia, got %v", err)
	}
}

func TestCropScenario(t *testing.T) {
	res, err := New().Crop(CropRequest{
		Media:   createTestImage(1000, 1000),
		Model:   transform.New(types.NewSize(1000, 1000)),
		Frame:   types.NewSize(832, 1216),
		Surface: types.NewSize(1200, 1200),
	})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	if res.Box.X != 184 || res.Box.Y != -8 {
		t.Errorf("Expected crop box at (184,-8), got (%v,%v)", res.Box.X, res.Box.Y)
	}
	b := res.Image.Bounds()
	if b.Dx() != 832 || b.Dy() != 1216 {
		t.Errorf("Expected 832x1216 output, got %dx%d", b.Dx(), b.Dy())
	}

	// Output (0,8) is canvas (184,0), i.e. source (184,0).
	if got := res.Image.RGBAAt(0, 8); got != pattern(184, 0) {
		t.Errorf("Expected source pixel (184,0), got %v", got)
	}
	// Rows above the media stay transparent.
	if got := res.Image.RGBAAt(0, 0); got.A != 0 {
		t.Errorf("Expected transparent pixel above the media, got %v", got)
	}
}

func TestCropPixelFormula(t *testing.T) {
	const size = 200
	media := createTestImage(size, size)
	frame := types.NewSize(120, 90)
	surface := types.NewSize(300, 250)
	box := transform.CropBox(surface, frame)

	for _, tt := range []struct {
		scale float64
		pos   r2.Vec
	}{
		{1, r2.Vec{X: 40, Y: 60}},
		{2, r2.Vec{X: -37, Y: 11}},
		{0.8, r2.Vec{X: 70, Y: 30}},
		{4, r2.Vec{X: -500, Y: -400}},
	} {
		m := transform.New(types.NewSize(size, size))
		m.Scale = tt.scale
		m.Position = tt.pos

		res, err := New().Crop(CropRequest{Media: media, Model: m, Frame: frame, Surface: surface})
		if err != nil {
			t.Fatalf("scale %v: Crop failed: %v", tt.scale, err)
		}

		for j := 0; j < int(frame.Height); j++ {
			for i := 0; i < int(frame.Width); i++ {
				// Sample at the output pixel centre.
				sx := math.Floor((box.X-tt.pos.X)/tt.scale + (float64(i)+0.5)/tt.scale)
				sy := math.Floor((box.Y-tt.pos.Y)/tt.scale + (float64(j)+0.5)/tt.scale)
				got := res.Image.RGBAAt(i, j)

				if sx < 0 || sy < 0 || sx >= size || sy >= size {
					if got.A != 0 {
						t.Fatalf("scale %v: (%d,%d) should be empty, got %v", tt.scale, i, j, got)
					}
					continue
				}
				if want := pattern(int(sx), int(sy)); got != want {
					t.Fatalf("scale %v: (%d,%d) = %v, want source (%v,%v) %v", tt.scale, i, j, got, sx, sy, want)
				}
			}
		}
	}
}

func TestCropWholeTurnMatchesUnrotated(t *testing.T) {
	media := createTestImage(300, 200)
	base := transform.New(types.NewSize(300, 200))
	base.Scale = 1.25
	base.Position = r2.Vec{X: 20, Y: 35}

	req := CropRequest{Media: media, Model: base, Frame: types.NewSize(150, 120), Surface: types.NewSize(400, 300)}
	want, err := New().Crop(req)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	for _, deg := range []float64{360, -720} {
		req.Model.Rotation = deg
		got, err := New().Crop(req)
		if err != nil {
			t.Fatalf("Crop failed: %v", err)
		}
		if !bytes.Equal(got.Image.Pix, want.Image.Pix) {
			t.Errorf("rotation %v: export differs from rotation 0", deg)
		}
	}
}

func TestRotatedExportMatchesPreview(t *testing.T) {
	surface := types.NewSize(400, 300)
	frame := types.NewSize(200, 100)
	media := createTestImage(600, 600)

	m := transform.New(types.NewSize(600, 600)).Centered(surface)
	m.Rotation = 30

	res, err := New().Crop(CropRequest{Media: media, Model: m, Frame: frame, Surface: surface})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if !res.Rotated {
		t.Fatal("Expected the rotated export path")
	}

	preview := image.NewRGBA(image.Rect(0, 0, 400, 300))
	if err := compositor.New().Render(preview, compositor.Scene{Media: media, Model: m, Crop: frame}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	// Box is (100,100)-(300,200); stay clear of the border and handle.
	for j := 10; j < 90; j++ {
		for i := 10; i < 190; i++ {
			got := res.Image.RGBAAt(i, j)
			want := preview.RGBAAt(100+i, 100+j)
			if got != want {
				t.Fatalf("(%d,%d): export %v, preview %v", i, j, got, want)
			}
		}
	}
}

func TestExportMatchesPreviewOnHalfPixelBoxes(t *testing.T) {
	media := createTestImage(800, 800)
	tests := []struct {
		name    string
		surface types.Size
		frame   types.Size
		scale   float64
		rot     float64
	}{
		{"rotated, odd surface", types.NewSize(401, 301), types.NewSize(160, 100), 0.7, 30},
		{"scaled, odd surface", types.NewSize(401, 301), types.NewSize(160, 100), 0.7, 0},
		{"odd frame", types.NewSize(400, 300), types.NewSize(151, 101), 1.3, 0},
		{"rotated, odd frame", types.NewSize(400, 300), types.NewSize(151, 101), 1, -45},
		{"negative origin", types.NewSize(401, 301), types.NewSize(200, 402), 1, 0},
		{"rotated, negative origin", types.NewSize(401, 301), types.NewSize(200, 402), 1, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := transform.New(types.NewSize(800, 800))
			m.Scale = tt.scale
			m = m.Centered(tt.surface)
			m.Rotation = tt.rot

			res, err := New().Crop(CropRequest{Media: media, Model: m, Frame: tt.frame, Surface: tt.surface})
			if err != nil {
				t.Fatalf("Crop failed: %v", err)
			}
			fw, fh := tt.frame.Round()
			if b := res.Image.Bounds(); b != image.Rect(0, 0, fw, fh) {
				t.Fatalf("Expected bounds %dx%d at the origin, got %v", fw, fh, b)
			}

			sw, sh := tt.surface.Round()
			preview := image.NewRGBA(image.Rect(0, 0, sw, sh))
			if err := compositor.New().Render(preview, compositor.Scene{Media: media, Model: m, Crop: tt.frame}); err != nil {
				t.Fatalf("Render failed: %v", err)
			}

			// Compare the box interior that lies on the surface, clear of the
			// border and handle.
			box := transform.CropPixels(tt.surface, tt.frame)
			const margin = 10
			compared, diff := 0, 0
			for j := margin; j < fh-margin; j++ {
				for i := margin; i < fw-margin; i++ {
					p := box.Min.Add(image.Pt(i, j))
					if !p.In(preview.Bounds()) {
						continue
					}
					got := res.Image.RGBAAt(i, j)
					if got.A != 255 {
						continue
					}
					compared++
					if got != preview.RGBAAt(p.X, p.Y) {
						diff++
					}
				}
			}
			if compared < (fw-2*margin)*(fh-2*margin)/2 {
				t.Fatalf("Only %d pixels compared", compared)
			}
			if diff != 0 {
				t.Errorf("%d of %d pixels differ between export and preview", diff, compared)
			}
		})
	}
}

func TestCropInvalidFrame(t *testing.T) {
	_, err := New().Crop(CropRequest{
		Media:   createTestImage(10, 10),
		Model:   transform.New(types.NewSize(10, 10)),
		Surface: types.NewSize(100, 100),
	})
	if err == nil {
		t.Error("Expected error for empty frame")
	}
}

func TestFileName(t *testing.T) {
	ts := time.Date(2026, 10, 17, 12, 34, 56, 789_000_000, time.UTC)
	if got := FileName(ts, PNG); got != "croppy-2026-10-17T12-34-56-.png" {
		t.Errorf("Unexpected file name %q", got)
	}

	east := time.FixedZone("UTC+3", 3*60*60)
	if got := FileName(ts.In(east), ""); got != "croppy-2026-10-17T12-34-56-.png" {
		t.Errorf("Expected UTC stamp regardless of zone, got %q", got)
	}

	if got := FileName(ts, WebP); got != "croppy-2026-10-17T12-34-56-.webp" {
		t.Errorf("Unexpected webp file name %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", PNG},
		{"PNG", PNG},
		{".webp", WebP},
		{"jpeg", JPEG},
		{"jpg", JPEG},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseFormat("gif"); err == nil {
		t.Error("Expected error for gif")
	}
}

func TestEncodePNGIsLossless(t *testing.T) {
	img := createTestImage(32, 24)
	data, err := EncodeBytes(img, PNG, 0)
	if err != nil {
		t.Fatalf("EncodeBytes failed: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode failed: %v", err)
	}
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			r, g, b, a := decoded.At(x, y).RGBA()
			want := pattern(x, y)
			if uint8(r>>8) != want.R || uint8(g>>8) != want.G || uint8(b>>8) != want.B || uint8(a>>8) != 255 {
				t.Fatalf("pixel (%d,%d) changed after encoding", x, y)
			}
		}
	}
}

func TestEncodeWebPAndJPEG(t *testing.T) {
	img := createTestImage(16, 16)

	data, err := EncodeBytes(img, WebP, 0)
	if err != nil {
		t.Fatalf("webp encode failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Error("Expected a RIFF container for webp")
	}

	data, err = EncodeBytes(img, JPEG, 80)
	if err != nil {
		t.Fatalf("jpeg encode failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0xff, 0xd8}) {
		t.Error("Expected a JPEG SOI marker")
	}
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	e := Export{Data: []byte("png-bytes"), Format: PNG, Name: "croppy-test.png"}

	if err := (FileSink{Dir: dir}).Deliver(context.Background(), e); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "croppy-test.png"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "png-bytes" {
		t.Errorf("Unexpected file contents %q", got)
	}
}

func TestFileSinkSanitizesName(t *testing.T) {
	dir := t.TempDir()
	e := Export{Data: []byte("x"), Format: PNG, Name: "../up.png"}
	if err := (FileSink{Dir: dir}).Deliver(context.Background(), e); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "_up.png")); err != nil {
		t.Errorf("Expected the file to stay inside the directory: %v", err)
	}
}

func TestFileSinkFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}

	err := (FileSink{Dir: blocker}).Deliver(context.Background(), Export{Name: "x.png"})
	if !errors.Is(err, ErrDownload) {
		t.Errorf("Expected ErrDownload, got %v", err)
	}
}

func TestClipboardSink(t *testing.T) {
	out := filepath.Join(t.TempDir(), "clip")
	sink := ClipboardSink{Command: "sh", Args: []string{"-c", "cat > " + out}}

	if err := sink.Deliver(context.Background(), Export{Data: []byte("clip-data"), Format: PNG}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "clip-data" {
		t.Errorf("Unexpected clipboard contents %q", got)
	}
}

func TestClipboardSinkFailure(t *testing.T) {
	sink := ClipboardSink{Command: "sh", Args: []string{"-c", "exit 3"}}
	err := sink.Deliver(context.Background(), Export{Data: []byte("x")})
	if !errors.Is(err, ErrClipboardWrite) {
		t.Errorf("Expected ErrClipboardWrite, got %v", err)
	}
}

func TestDeliverToSeveralSinks(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	res, err := New().Crop(CropRequest{
		Media:   createTestImage(50, 50),
		Model:   transform.New(types.NewSize(50, 50)),
		Frame:   types.NewSize(100, 100),
		Surface: types.NewSize(100, 100),
	})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	e, err := NewExport(res, PNG, 0, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewExport failed: %v", err)
	}

	if err := Deliver(context.Background(), e, FileSink{Dir: a}, FileSink{Dir: b}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	for _, dir := range []string{a, b} {
		if _, err := os.Stat(filepath.Join(dir, "croppy-2026-01-02T03-04-05-.png")); err != nil {
			t.Errorf("Expected export in %s: %v", dir, err)
		}
	}
}

func BenchmarkCropRotated(b *testing.B) {
	media := createTestImage(1000, 1000)
	m := transform.New(types.NewSize(1000, 1000))
	m.Rotation = 12
	req := CropRequest{Media: media, Model: m, Frame: types.NewSize(832, 1216), Surface: types.NewSize(1200, 1200)}
	c := New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Crop(req)
	}
}
