package config

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Config holds the application configuration
type Config struct {
	Canvas   CanvasConfig   `json:"canvas"`
	Crop     CropConfig     `json:"crop"`
	Zoom     ZoomConfig     `json:"zoom"`
	Style    StyleConfig    `json:"style"`
	Sampling string         `json:"sampling"`
	Media    MediaConfig    `json:"media"`
	Output   OutputConfig   `json:"output"`
	Vision   VisionConfig   `json:"vision"`
	Playback PlaybackConfig `json:"playback"`
	// PrefsPath overrides the preferences file location.
	PrefsPath string `json:"prefs_path,omitempty"`
}

// CanvasConfig is the initial surface size.
type CanvasConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CropConfig is the crop frame used when no preferences exist.
type CropConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ZoomConfig holds wheel zoom settings
type ZoomConfig struct {
	Sensitivity int     `json:"sensitivity"`
	MinScale    float64 `json:"min_scale"`
	MaxScale    float64 `json:"max_scale"`
}

// StyleConfig holds the surface look and handle geometry
type StyleConfig struct {
	Background   string  `json:"background"`
	MaskAlpha    float64 `json:"mask_alpha"`
	BorderWidth  int     `json:"border_width"`
	HandleRadius float64 `json:"handle_radius"`
	HitSlop      float64 `json:"hit_slop"`
}

// MediaConfig holds configuration for media ingestion
type MediaConfig struct {
	SupportedFormats []string `json:"supported_formats"`
	MinImageSize     int      `json:"min_image_size"`
	MaxDownloadMB    int      `json:"max_download_mb"`
	PDFDPI           float64  `json:"pdf_dpi"`
}

// OutputConfig holds configuration for export
type OutputConfig struct {
	Format  string `json:"format"`
	Dir     string `json:"dir"`
	Quality int    `json:"quality"`
	// Clipboard overrides the clipboard command, e.g. "xclip".
	Clipboard string `json:"clipboard,omitempty"`
}

// VisionConfig selects the subject detector used for auto-framing
type VisionConfig struct {
	// Backend is one of "saliency", "ollama" or "llamacpp".
	Backend string  `json:"backend"`
	URL     string  `json:"url,omitempty"`
	Model   string  `json:"model,omitempty"`
	Padding float64 `json:"padding"`
	MaxDim  int     `json:"max_dim"`
}

// PlaybackConfig holds video redraw settings
type PlaybackConfig struct {
	FPS int `json:"fps"`
}

var (
	samplings = []string{"nearest", "bilinear", "approxbilinear", "catmullrom"}
	formats   = []string{"png", "webp", "jpg", "jpeg"}
	backends  = []string{"saliency", "ollama", "llamacpp"}
)

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Canvas: CanvasConfig{Width: 1200, Height: 1200},
		Crop:   CropConfig{Width: 832, Height: 1216},
		Zoom:   ZoomConfig{Sensitivity: 10, MinScale: 0.1, MaxScale: 5.0},
		Style: StyleConfig{
			Background:   "#1a1a1a",
			MaskAlpha:    0.4,
			BorderWidth:  3,
			HandleRadius: 8,
			HitSlop:      10,
		},
		Sampling: "nearest",
		Media: MediaConfig{
			SupportedFormats: []string{"jpeg", "png", "gif", "webp", "tiff", "bmp"},
			MinImageSize:     1,
			MaxDownloadMB:    64,
			PDFDPI:           150,
		},
		Output: OutputConfig{
			Format:  "png",
			Dir:     ".",
			Quality: 95,
		},
		Vision: VisionConfig{
			Backend: "saliency",
			Model:   "llava",
			Padding: 0.1,
			MaxDim:  768,
		},
		Playback: PlaybackConfig{FPS: 60},
	}
}

// ApplyPrefs fills the crop size and zoom sensitivity from stored
// preferences where c still holds the defaults. A value set in the config
// file wins over the stored one.
func (c *Config) ApplyPrefs(cropW, cropH, sensitivity int) {
	def := Default()
	if c.Crop == def.Crop {
		c.Crop.Width, c.Crop.Height = cropW, cropH
	}
	if c.Zoom.Sensitivity == def.Zoom.Sensitivity {
		c.Zoom.Sensitivity = sensitivity
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from the
// file keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Canvas.Width < 1 || c.Canvas.Height < 1 {
		return fmt.Errorf("canvas size must be positive")
	}

	if c.Crop.Width < 100 || c.Crop.Height < 100 {
		return fmt.Errorf("crop size must be at least 100x100")
	}

	if c.Zoom.Sensitivity < 1 || c.Zoom.Sensitivity > 20 {
		return fmt.Errorf("zoom.sensitivity must be between 1 and 20")
	}

	if c.Zoom.MinScale <= 0 || c.Zoom.MaxScale < c.Zoom.MinScale {
		return fmt.Errorf("zoom scale bounds must satisfy 0 < min_scale <= max_scale")
	}

	if _, err := ParseHexColor(c.Style.Background); err != nil {
		return fmt.Errorf("style.background: %w", err)
	}

	if c.Style.MaskAlpha < 0 || c.Style.MaskAlpha > 1 {
		return fmt.Errorf("style.mask_alpha must be between 0 and 1")
	}

	if c.Style.BorderWidth < 0 || c.Style.HandleRadius <= 0 || c.Style.HitSlop < 0 {
		return fmt.Errorf("style border, handle radius and hit slop must not be negative")
	}

	if !slices.Contains(samplings, strings.ToLower(c.Sampling)) {
		return fmt.Errorf("sampling must be one of %v", samplings)
	}

	if len(c.Media.SupportedFormats) == 0 {
		return fmt.Errorf("media.supported_formats cannot be empty")
	}

	if !slices.Contains(formats, strings.ToLower(c.Output.Format)) {
		return fmt.Errorf("output.format must be one of %v", formats)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Vision.Backend != "" && !slices.Contains(backends, c.Vision.Backend) {
		return fmt.Errorf("vision.backend must be one of %v", backends)
	}

	if c.Vision.Padding < 0 || c.Vision.Padding >= 0.5 {
		return fmt.Errorf("vision.padding must be in [0, 0.5)")
	}

	if c.Playback.FPS < 1 {
		return fmt.Errorf("playback.fps must be positive")
	}

	return nil
}

// ParseHexColor parses "#rgb" or "#rrggbb".
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "croppy", "config.json")
}
