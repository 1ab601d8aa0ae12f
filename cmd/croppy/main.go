package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/menta2k/croppy"
	"github.com/menta2k/croppy/internal/config"
	"github.com/menta2k/croppy/internal/utils"
	"github.com/menta2k/croppy/pkg/cropper"
	"github.com/menta2k/croppy/pkg/detection"
	"github.com/menta2k/croppy/pkg/framing"
	"github.com/menta2k/croppy/pkg/media"
	"github.com/menta2k/croppy/pkg/media/pdf"
	"github.com/menta2k/croppy/pkg/media/video"
	"github.com/menta2k/croppy/pkg/prefs"
	"github.com/menta2k/croppy/pkg/types"
)

func main() {
	var in, outDir, configPath, saveConfig, format, cropFlag, surfaceFlag, preset string
	var auto, model, url, preview, overlay, sampling string
	var quality, page, frame int
	var scale, x, y, rotate, dpi float64
	var clipboard, info, listPresets, describe, verbose bool

	flag.StringVar(&in, "in", "", "input image, video or PDF path, image URL, or - for an image on stdin")
	flag.StringVar(&outDir, "out", "", "output directory (default from config)")
	flag.StringVar(&configPath, "config", "", "config file (default ~/.config/croppy/config.json if present)")
	flag.StringVar(&saveConfig, "save-config", "", "write the effective config to this file")
	flag.StringVar(&format, "format", "", "export format: png|webp|jpg")
	flag.IntVar(&quality, "quality", 0, "JPEG export quality (1-100)")
	flag.StringVar(&cropFlag, "crop", "", "crop frame WxH (default from preferences)")
	flag.StringVar(&preset, "preset", "", "crop frame from a preset id")
	flag.StringVar(&surfaceFlag, "surface", "", "surface size WxH")
	flag.StringVar(&sampling, "sampling", "", "sampling: nearest|bilinear|approxbilinear|catmullrom")

	flag.Float64Var(&scale, "scale", 1, "media scale (0.1-5.0)")
	flag.Float64Var(&x, "x", 0, "media left edge on the surface (default centred)")
	flag.Float64Var(&y, "y", 0, "media top edge on the surface (default centred)")
	flag.Float64Var(&rotate, "rotate", 0, "rotation in degrees")
	flag.StringVar(&auto, "auto", "", "auto-frame the subject: saliency|ollama|llamacpp")
	flag.StringVar(&model, "model", "", "vision model for -auto ollama|llamacpp")
	flag.StringVar(&url, "url", "", "vision server URL")
	flag.BoolVar(&describe, "describe", false, "print what the -auto model sees in the media and exit")

	flag.IntVar(&page, "page", 0, "PDF page (0-based)")
	flag.Float64Var(&dpi, "dpi", 0, "PDF render DPI")
	flag.IntVar(&frame, "frame", 0, "video frame to export")

	flag.StringVar(&preview, "preview", "", "also write the rendered surface to this PNG")
	flag.StringVar(&overlay, "overlay", "", "with -auto, write the media with the subject and frame drawn on it to this PNG")
	flag.BoolVar(&clipboard, "clipboard", false, "copy the export to the clipboard")
	flag.BoolVar(&info, "info", false, "print media and editor state as JSON")
	flag.BoolVar(&listPresets, "presets", false, "list crop presets and exit")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	croppy.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	prefsPath := cfg.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	store, err := prefs.Open(prefsPath)
	if err != nil {
		log.Fatalf("Failed to open preferences: %v", err)
	}
	if listPresets {
		for _, p := range store.Presets() {
			fmt.Printf("%-24s %-16s %dx%d\n", p.ID, p.Name, p.Width, p.Height)
		}
		return
	}

	// Flags override config, config overrides preferences.
	cropW, cropH := store.CropSize()
	cfg.ApplyPrefs(cropW, cropH, store.Sensitivity())
	if preset != "" {
		p, ok := store.Preset(preset)
		if !ok {
			log.Fatalf("Unknown preset %q (see -presets)", preset)
		}
		cfg.Crop.Width, cfg.Crop.Height = p.Width, p.Height
	}
	if cropFlag != "" {
		w, h, err := parseSize(cropFlag)
		if err != nil {
			log.Fatalf("Invalid -crop: %v", err)
		}
		// Explicit sizes are raised to the 100px minimum, as in the editor.
		cfg.Crop.Width, cfg.Crop.Height = max(w, 100), max(h, 100)
	}
	if surfaceFlag != "" {
		if cfg.Canvas.Width, cfg.Canvas.Height, err = parseSize(surfaceFlag); err != nil {
			log.Fatalf("Invalid -surface: %v", err)
		}
	}
	if outDir != "" {
		cfg.Output.Dir = outDir
	}
	if format != "" {
		cfg.Output.Format = format
	}
	if quality != 0 {
		cfg.Output.Quality = quality
	}
	if sampling != "" {
		cfg.Sampling = sampling
	}
	if dpi != 0 {
		cfg.Media.PDFDPI = dpi
	}
	if auto != "" {
		cfg.Vision.Backend = auto
	}
	if model != "" {
		cfg.Vision.Model = model
	}
	if url != "" {
		cfg.Vision.URL = url
	}

	if saveConfig != "" {
		if err := cfg.SaveToFile(saveConfig); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", saveConfig)
		if in == "" {
			return
		}
	}
	if in == "" {
		log.Fatalf("usage: %s -in photo.jpg|clip.mp4|doc.pdf|URL|- [-crop 832x1216] [-scale 1.2] [-rotate 15] [-auto saliency] [-out dir] [-format png|webp|jpg]", filepath.Base(os.Args[0]))
	}

	edCfg, err := croppy.ConfigFromApp(cfg)
	if err != nil {
		log.Fatal(err)
	}
	ed := croppy.NewWithConfig(edCfg)
	defer ed.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m, err := loadMedia(ctx, cfg, in, page, frame)
	if err != nil {
		ed.OnMediaError(err)
		log.Fatalf("Failed to load %s: %v", in, err)
	}
	ed.LoadMedia(m)

	if describe {
		finder, err := newFinder(cfg)
		if err != nil {
			log.Fatal(err)
		}
		mf, ok := finder.(framing.ModelFinder)
		if !ok {
			log.Fatal("-describe needs -auto ollama or -auto llamacpp")
		}
		text, err := mf.Detector.TestVision(ctx, m.Frame())
		if err != nil {
			log.Fatalf("Model query failed: %v", err)
		}
		fmt.Println(strings.TrimSpace(text))
		return
	}

	if auto != "" {
		finder, err := newFinder(cfg)
		if err != nil {
			log.Fatal(err)
		}
		rec := &recordingFinder{Finder: finder}
		if err := ed.AutoFrame(ctx, rec); err != nil {
			if !errors.Is(err, detection.ErrNoSubject) {
				log.Fatal(err)
			}
			log.Printf("no subject found, keeping centred placement")
		} else if overlay != "" {
			s := ed.State()
			img := framing.Overlay(m.Frame(), rec.box, s.Model, s.Crop, s.Surface)
			if err := writePNG(overlay, img); err != nil {
				log.Fatal(err)
			}
			log.Printf("wrote %s", overlay)
		}
	}
	if set["scale"] {
		ed.SetScale(scale)
		ed.Reset()
	}
	if set["x"] || set["y"] {
		pos := ed.State().Model.Position
		if set["x"] {
			pos.X = x
		}
		if set["y"] {
			pos.Y = y
		}
		ed.SetPosition(pos.X, pos.Y)
	}
	if set["rotate"] {
		ed.SetRotation(rotate)
	}

	if info {
		printInfo(ed.State())
	}

	if preview != "" {
		if err := writePreview(ed, preview); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", preview)
	}

	f, err := cropper.ParseFormat(cfg.Output.Format)
	if err != nil {
		log.Fatal(err)
	}
	sinks := []cropper.Sink{cropper.FileSink{Dir: cfg.Output.Dir}}
	if clipboard {
		sinks = append(sinks, cropper.ClipboardSink{Command: cfg.Output.Clipboard})
	}
	exp, err := ed.Export(ctx, f, sinks...)
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	log.Printf("wrote %s (%s)", filepath.Join(cfg.Output.Dir, exp.Name), utils.FormatFileSize(int64(len(exp.Data))))
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.GetConfigPath()
		if !utils.FileExists(path) {
			return config.Default(), nil
		}
	}
	return config.LoadFromFile(path)
}

func newFinder(cfg *config.Config) (framing.Finder, error) {
	return framing.NewFinder(framing.Backend{
		Name:   cfg.Vision.Backend,
		URL:    cfg.Vision.URL,
		Model:  cfg.Vision.Model,
		MaxDim: cfg.Vision.MaxDim,
	})
}

func loadMedia(ctx context.Context, cfg *config.Config, in string, page, frame int) (*media.Media, error) {
	loader := media.NewWithConfig(media.Config{
		SupportedFormats: cfg.Media.SupportedFormats,
		MinImageSize:     cfg.Media.MinImageSize,
		MaxBytes:         int64(cfg.Media.MaxDownloadMB) << 20,
		HTTPTimeout:      30 * time.Second,
		UserAgent:        "croppy/" + croppy.Version,
	})

	if in == "-" {
		return loader.LoadReader(os.Stdin)
	}
	if strings.HasPrefix(in, "http://") || strings.HasPrefix(in, "https://") {
		return loader.LoadURL(ctx, in)
	}

	switch utils.KindOf(in) {
	case utils.KindVideo:
		m, err := video.Open(in)
		if err != nil {
			return nil, err
		}
		for i := 0; i < frame; i++ {
			if err := m.Advance(); err != nil {
				m.Release()
				return nil, err
			}
		}
		return m, nil
	case utils.KindPDF:
		n, err := pdf.PageCount(in)
		if err != nil {
			return nil, err
		}
		log.Printf("%s: page %d of %d", filepath.Base(in), page+1, n)
		return pdf.LoadPage(in, page, cfg.Media.PDFDPI)
	default:
		return loader.LoadFile(in)
	}
}

func writePreview(ed *croppy.Editor, path string) error {
	img := ed.RenderImage()
	if img == nil {
		return errors.New("preview render failed")
	}
	return writePNG(path, img)
}

func writePNG(path string, img image.Image) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := cropper.Encode(f, img, cropper.PNG, 0); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// recordingFinder keeps the last subject box for the overlay.
type recordingFinder struct {
	framing.Finder
	box types.Box
}

func (r *recordingFinder) FindSubject(ctx context.Context, img image.Image) (types.Box, error) {
	box, err := r.Finder.FindSubject(ctx, img)
	r.box = box
	return box, err
}

func printInfo(s croppy.State) {
	out := map[string]any{
		"media": map[string]any{
			"kind":     s.Media.Kind.String(),
			"width":    s.Media.Width,
			"height":   s.Media.Height,
			"aspect":   s.Media.AspectRatio,
			"duration": s.Media.Duration.String(),
		},
		"position": map[string]float64{"x": s.Model.Position.X, "y": s.Model.Position.Y},
		"zoom":     s.ZoomPercent(),
		"rotation": s.Model.Rotation,
		"crop":     s.Crop,
		"surface":  s.Surface,
	}
	js, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(js))
}

// parseSize parses "WxH".
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("expected WxH, got %q", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil {
		return 0, 0, fmt.Errorf("bad width in %q", s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil {
		return 0, 0, fmt.Errorf("bad height in %q", s)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("size must be positive, got %q", s)
	}
	return w, h, nil
}
