// Package prefs persists crop size, zoom sensitivity and custom presets
// between sessions.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/croppy/internal/logging"
	"github.com/menta2k/croppy/pkg/transform"
	"github.com/menta2k/croppy/pkg/zoom"
)

// Defaults for a fresh profile.
const (
	DefaultCropWidth  = 832
	DefaultCropHeight = 1216

	builtinPrefix = "preset-"
	customPrefix  = "custom-"
)

// Preset is a named crop size.
type Preset struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Builtin reports whether p ships with the application.
func (p Preset) Builtin() bool {
	return strings.HasPrefix(p.ID, builtinPrefix)
}

// DefaultPresets returns the built-in presets in display order.
func DefaultPresets() []Preset {
	return []Preset{
		{ID: "preset-portrait", Name: "Portrait", Width: 832, Height: 1216},
		{ID: "preset-grok-portrait", Name: "Grok Portrait", Width: 832, Height: 1248},
		{ID: "preset-grok-square", Name: "Grok Square", Width: 960, Height: 960},
		{ID: "preset-grok-landscape", Name: "Grok Landscape", Width: 640, Height: 480},
	}
}

// file is the on-disk layout.
type file struct {
	CropWidth       int      `yaml:"crop_width"`
	CropHeight      int      `yaml:"crop_height"`
	ZoomSensitivity int      `yaml:"zoom_sensitivity"`
	CustomPresets   []Preset `yaml:"custom_presets,omitempty"`
}

// Store is a YAML-backed preferences file. Every mutation is written through.
type Store struct {
	path string

	mu          sync.Mutex
	cropW       int
	cropH       int
	sensitivity int
	presets     []Preset
	now         func() time.Time
}

// DefaultPath returns ~/.config/croppy/prefs.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./prefs.yaml"
	}
	return filepath.Join(home, ".config", "croppy", "prefs.yaml")
}

// Open loads the store at path. A missing file yields defaults.
func Open(path string) (*Store, error) {
	s := &Store{
		path:        path,
		cropW:       DefaultCropWidth,
		cropH:       DefaultCropHeight,
		sensitivity: zoom.DefaultSensitivity,
		presets:     DefaultPresets(),
		now:         time.Now,
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse preferences: %w", err)
	}
	if f.CropWidth > 0 && f.CropHeight > 0 {
		s.cropW, s.cropH = clampSide(f.CropWidth), clampSide(f.CropHeight)
	}
	if f.ZoomSensitivity != 0 {
		s.sensitivity = int(zoom.ClampSensitivity(float64(f.ZoomSensitivity)))
	}
	for _, p := range f.CustomPresets {
		if p.Builtin() || p.Width <= 0 || p.Height <= 0 {
			continue
		}
		s.presets = append(s.presets, p)
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// CropSize returns the last used crop frame.
func (s *Store) CropSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cropW, s.cropH
}

// SetCropSize stores the crop frame, each side raised to the 100px minimum.
func (s *Store) SetCropSize(w, h int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cropW, s.cropH = clampSide(w), clampSide(h)
	return s.saveLocked()
}

// Sensitivity returns the zoom step in percent.
func (s *Store) Sensitivity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sensitivity
}

// SetSensitivity stores the zoom step, clamped to [1, 20].
func (s *Store) SetSensitivity(pct int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensitivity = int(zoom.ClampSensitivity(float64(pct)))
	return s.saveLocked()
}

// Presets returns all presets in display order.
func (s *Store) Presets() []Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.presets)
}

// Preset looks a preset up by id.
func (s *Store) Preset(id string) (Preset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return Preset{}, false
	}
	return s.presets[i], true
}

// AddPreset appends a custom preset.
func (s *Store) AddPreset(name string, w, h int) (Preset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Preset{}, errors.New("preset name cannot be empty")
	}
	if w <= 0 || h <= 0 {
		return Preset{}, fmt.Errorf("invalid preset size %dx%d", w, h)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := s.now().UnixMilli()
	id := customPrefix + strconv.FormatInt(stamp, 10)
	for s.indexLocked(id) >= 0 {
		stamp++
		id = customPrefix + strconv.FormatInt(stamp, 10)
	}

	p := Preset{ID: id, Name: name, Width: w, Height: h}
	s.presets = append(s.presets, p)
	return p, s.saveLocked()
}

// DeletePreset removes a preset. Built-in presets come back on the next Open.
func (s *Store) DeletePreset(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false, nil
	}
	s.presets = slices.Delete(s.presets, i, i+1)
	return true, s.saveLocked()
}

// MovePreset moves draggedID to targetID's position.
func (s *Store) MovePreset(draggedID, targetID string) (bool, error) {
	if draggedID == "" || draggedID == targetID {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	from, to := s.indexLocked(draggedID), s.indexLocked(targetID)
	if from < 0 || to < 0 {
		return false, nil
	}
	p := s.presets[from]
	s.presets = slices.Delete(s.presets, from, from+1)
	s.presets = slices.Insert(s.presets, to, p)
	return true, s.saveLocked()
}

// Save writes the store to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	f := file{
		CropWidth:       s.cropW,
		CropHeight:      s.cropH,
		ZoomSensitivity: s.sensitivity,
	}
	for _, p := range s.presets {
		if !p.Builtin() {
			f.CustomPresets = append(f.CustomPresets, p)
		}
	}

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	logging.Logger().Debug("preferences saved", "path", s.path)
	return nil
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.presets, func(p Preset) bool { return p.ID == id })
}

func clampSide(v int) int {
	return int(transform.ClampCropSide(float64(v)))
}
