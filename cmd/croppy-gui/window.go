package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"github.com/menta2k/croppy"
	"github.com/menta2k/croppy/internal/config"
	"github.com/menta2k/croppy/internal/logging"
	"github.com/menta2k/croppy/internal/utils"
	"github.com/menta2k/croppy/pkg/cropper"
	"github.com/menta2k/croppy/pkg/detection"
	"github.com/menta2k/croppy/pkg/framing"
	"github.com/menta2k/croppy/pkg/media"
	"github.com/menta2k/croppy/pkg/media/pdf"
	"github.com/menta2k/croppy/pkg/media/video"
	"github.com/menta2k/croppy/pkg/prefs"
	"github.com/menta2k/croppy/pkg/types"
	"github.com/menta2k/croppy/ui/surface"
)

const helpText = `Drag the image to move it. Drag the round handle to resize the frame.
Scroll to zoom around the pointer.

H        this help
R        re-centre the image
Space    play / pause video
Home     back to the first video frame
Ctrl+O   open a file
Ctrl+S   save the crop
Ctrl+C   copy the crop to the clipboard`

const exportTimeout = 30 * time.Second

// mainWindow is the editor window.
type mainWindow struct {
	fyne.Window
	editor *croppy.Editor
	cfg    *config.Config
	store  *prefs.Store

	surface     *surface.Surface
	status      *widget.Label
	rotation    *widget.Slider
	sensitivity *widget.Slider
	presets     *widget.Select
	cropW       *widget.Entry
	cropH       *widget.Entry
	play        *widget.Button

	loads loadSeq
}

func newMainWindow(a fyne.App, ed *croppy.Editor, cfg *config.Config, store *prefs.Store) *mainWindow {
	mw := &mainWindow{
		Window: a.NewWindow("Croppy"),
		editor: ed,
		cfg:    cfg,
		store:  store,
	}
	mw.setupUI()
	mw.setupShortcuts()
	mw.editor.SetCallbacks(mw.callbacks())
	mw.SetOnDropped(mw.onDropped)
	mw.Resize(fyne.NewSize(1100, 820))
	return mw
}

func (mw *mainWindow) setupUI() {
	mw.surface = surface.New(mw.editor)
	mw.status = widget.NewLabel("Drop an image, video or PDF, or press Ctrl+O")

	mw.rotation = widget.NewSlider(-180, 180)
	mw.rotation.Step = 1
	mw.rotation.OnChanged = func(v float64) { mw.editor.SetRotation(v) }

	mw.sensitivity = widget.NewSlider(1, 20)
	mw.sensitivity.Step = 1
	mw.sensitivity.SetValue(float64(mw.store.Sensitivity()))
	mw.sensitivity.OnChanged = func(v float64) {
		pct := int(v)
		mw.editor.SetSensitivity(pct)
		if err := mw.store.SetSensitivity(pct); err != nil {
			logging.Logger().Warn("failed to save sensitivity", "error", err)
		}
	}

	w, h := mw.editor.CropSize()
	mw.cropW = widget.NewEntry()
	mw.cropH = widget.NewEntry()
	mw.cropW.SetText(strconv.Itoa(w))
	mw.cropH.SetText(strconv.Itoa(h))
	apply := widget.NewButton("Apply", mw.onApplyCrop)

	mw.presets = widget.NewSelect(nil, mw.onPreset)
	mw.presets.PlaceHolder = "Presets"
	mw.refreshPresets()
	savePreset := widget.NewButton("Save as preset", mw.onSavePreset)
	deletePreset := widget.NewButton("Delete preset", mw.onDeletePreset)
	movePreset := widget.NewButton("Move up", mw.onMovePresetUp)

	mw.play = widget.NewButton("Play", mw.togglePlaying)
	mw.play.Disable()

	toolbar := container.NewHBox(
		widget.NewButton("Open", mw.onOpen),
		widget.NewButton("Save", mw.onSave),
		widget.NewButton("Copy", mw.onCopy),
		widget.NewButton("Reset", mw.editor.Reset),
		widget.NewButton("Auto frame", mw.onAutoFrame),
		mw.play,
		widget.NewButton("Help", mw.showHelp),
	)

	side := container.NewVBox(
		widget.NewLabel("Rotation"),
		mw.rotation,
		widget.NewLabel("Zoom sensitivity"),
		mw.sensitivity,
		widget.NewSeparator(),
		widget.NewLabel("Output size"),
		container.NewGridWithColumns(2, mw.cropW, mw.cropH),
		apply,
		mw.presets,
		container.NewGridWithColumns(2, savePreset, deletePreset),
		movePreset,
	)

	content := container.NewBorder(
		toolbar,                        // top
		container.NewPadded(mw.status), // bottom
		nil,                            // left
		container.NewPadded(side),      // right
		mw.surface,                     // center
	)
	mw.SetContent(content)
}

func (mw *mainWindow) setupShortcuts() {
	c := mw.Canvas()
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { mw.onSave() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyC, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { mw.onCopy() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { mw.onOpen() })
	c.SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyH:
			mw.showHelp()
		case fyne.KeyR:
			mw.editor.Reset()
		case fyne.KeySpace:
			mw.togglePlaying()
		case fyne.KeyHome:
			mw.editor.Rewind()
		}
	})
}

func (mw *mainWindow) callbacks() croppy.Callbacks {
	return croppy.Callbacks{
		OnPositionChange: func(x, y float64) { mw.updateStatus() },
		OnScaleChange:    func(scale float64) { mw.updateStatus() },
		OnRotationChange: func(deg float64) { mw.updateStatus() },
		OnCropResize: func(w, h int) {
			mw.cropW.SetText(strconv.Itoa(w))
			mw.cropH.SetText(strconv.Itoa(h))
			if err := mw.store.SetCropSize(w, h); err != nil {
				logging.Logger().Warn("failed to save crop size", "error", err)
			}
			mw.updateStatus()
		},
		OnMediaReady: func(info media.Info) {
			mw.rotation.SetValue(0)
			if info.Kind == media.Video {
				mw.play.Enable()
			} else {
				mw.play.Disable()
			}
			mw.play.SetText("Play")
			mw.updateStatus()
		},
		OnMediaError: func(err error) {
			dialog.ShowError(err, mw.Window)
		},
	}
}

func (mw *mainWindow) updateStatus() {
	s := mw.editor.State()
	if !s.HasMedia {
		mw.status.SetText("No media")
		return
	}
	w, h := s.Crop.Round()
	text := fmt.Sprintf("%s %dx%d   zoom %d%%   rotation %.0f°   output %dx%d",
		s.Media.Kind, s.Media.Width, s.Media.Height, s.ZoomPercent(), s.Model.Rotation, w, h)
	if s.Media.Duration > 0 {
		text += "   " + s.Media.Duration.Round(time.Second).String()
	}
	mw.status.SetText(text)
}

// openPath loads path off the UI goroutine.
func (mw *mainWindow) openPath(path string) {
	mw.status.SetText("Loading " + filepath.Base(path) + "...")
	id := mw.loads.begin()
	go func() {
		m, err := loadPath(mw.cfg, path)
		used := mw.loads.finish(id, m, err, mw.editor.LoadMedia, func(err error) {
			mw.editor.OnMediaError(err)
			mw.updateStatus()
		})
		if !used {
			logging.Logger().Debug("dropped superseded load", "path", path)
		}
	}()
}

func (mw *mainWindow) onOpen() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		mw.openPath(reader.URI().Path())
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{
		".png", ".jpg", ".jpeg", ".gif", ".webp", ".tif", ".tiff", ".bmp",
		".mp4", ".mov", ".webm", ".mkv", ".avi", ".pdf",
	}))
	fd.Show()
}

// onDropped opens the first dropped file the editor can load.
func (mw *mainWindow) onDropped(_ fyne.Position, uris []fyne.URI) {
	for _, u := range uris {
		if utils.KindOf(u.Path()) != utils.KindUnknown {
			mw.openPath(u.Path())
			return
		}
	}
	logging.Logger().Debug("ignored drop without a supported file", "count", len(uris))
}

func (mw *mainWindow) onSave() {
	mw.export("Saved", cropper.FileSink{Dir: mw.cfg.Output.Dir})
}

func (mw *mainWindow) onCopy() {
	mw.export("Copied", cropper.ClipboardSink{Command: mw.cfg.Output.Clipboard})
}

func (mw *mainWindow) export(verb string, sink cropper.Sink) {
	f, err := cropper.ParseFormat(mw.cfg.Output.Format)
	if err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()
		exp, err := mw.editor.Export(ctx, f, sink)
		switch {
		case errors.Is(err, types.ErrNoMedia):
			mw.status.SetText("Nothing to export")
		case err != nil:
			dialog.ShowError(err, mw.Window)
		default:
			mw.status.SetText(fmt.Sprintf("%s %s (%s)", verb, exp.Name, utils.FormatFileSize(int64(len(exp.Data)))))
		}
	}()
}

func (mw *mainWindow) onAutoFrame() {
	finder, err := framing.NewFinder(framing.Backend{
		Name:   mw.cfg.Vision.Backend,
		URL:    mw.cfg.Vision.URL,
		Model:  mw.cfg.Vision.Model,
		MaxDim: mw.cfg.Vision.MaxDim,
	})
	if err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.status.SetText("Finding subject...")
	go func() {
		err := mw.editor.AutoFrame(context.Background(), finder)
		switch {
		case errors.Is(err, detection.ErrNoSubject):
			mw.status.SetText("No subject found")
		case errors.Is(err, types.ErrNoMedia):
			mw.updateStatus()
		case err != nil:
			dialog.ShowError(err, mw.Window)
		}
	}()
}

func (mw *mainWindow) togglePlaying() {
	playing := !mw.editor.State().Playing
	mw.editor.SetPlaying(playing)
	if mw.editor.State().Playing {
		mw.play.SetText("Pause")
	} else {
		mw.play.SetText("Play")
	}
}

func (mw *mainWindow) onApplyCrop() {
	w, errW := strconv.Atoi(mw.cropW.Text)
	h, errH := strconv.Atoi(mw.cropH.Text)
	if errW != nil || errH != nil {
		dialog.ShowError(errors.New("output size must be whole numbers"), mw.Window)
		return
	}
	mw.editor.SetCropSize(w, h)
}

func (mw *mainWindow) refreshPresets() {
	var names []string
	for _, p := range mw.store.Presets() {
		names = append(names, presetLabel(p))
	}
	mw.presets.Options = names
	mw.presets.Refresh()
}

func (mw *mainWindow) presetByLabel(label string) (prefs.Preset, bool) {
	for _, p := range mw.store.Presets() {
		if presetLabel(p) == label {
			return p, true
		}
	}
	return prefs.Preset{}, false
}

func (mw *mainWindow) onPreset(label string) {
	if p, ok := mw.presetByLabel(label); ok {
		mw.editor.SetCropSize(p.Width, p.Height)
	}
}

func (mw *mainWindow) onSavePreset() {
	name := widget.NewEntry()
	name.SetPlaceHolder("Preset name")
	dialog.ShowForm("Save preset", "Save", "Cancel", []*widget.FormItem{
		widget.NewFormItem("Name", name),
	}, func(ok bool) {
		if !ok || name.Text == "" {
			return
		}
		w, h := mw.editor.CropSize()
		p, err := mw.store.AddPreset(name.Text, w, h)
		if err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.refreshPresets()
		mw.presets.SetSelected(presetLabel(p))
	}, mw.Window)
}

func (mw *mainWindow) onDeletePreset() {
	p, ok := mw.presetByLabel(mw.presets.Selected)
	if !ok {
		return
	}
	if p.Builtin() {
		dialog.ShowInformation("Presets", "Built-in presets cannot be deleted.", mw.Window)
		return
	}
	if _, err := mw.store.DeletePreset(p.ID); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.presets.ClearSelected()
	mw.refreshPresets()
}

// onMovePresetUp swaps the selected preset with the one above it.
func (mw *mainWindow) onMovePresetUp() {
	label := mw.presets.Selected
	all := mw.store.Presets()
	i := slices.IndexFunc(all, func(p prefs.Preset) bool { return presetLabel(p) == label })
	if i <= 0 {
		return
	}
	if _, err := mw.store.MovePreset(all[i].ID, all[i-1].ID); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.refreshPresets()
	mw.presets.SetSelected(label)
}

func (mw *mainWindow) showHelp() {
	dialog.ShowInformation("Keyboard shortcuts", helpText, mw.Window)
}

func presetLabel(p prefs.Preset) string {
	return fmt.Sprintf("%s (%dx%d)", p.Name, p.Width, p.Height)
}

// loadPath opens a still image, video or PDF page by file kind.
func loadPath(cfg *config.Config, path string) (*media.Media, error) {
	switch utils.KindOf(path) {
	case utils.KindVideo:
		return video.Open(path)
	case utils.KindPDF:
		return pdf.LoadPage(path, 0, cfg.Media.PDFDPI)
	default:
		loader := media.NewWithConfig(media.Config{
			SupportedFormats: cfg.Media.SupportedFormats,
			MinImageSize:     cfg.Media.MinImageSize,
			MaxBytes:         int64(cfg.Media.MaxDownloadMB) << 20,
		})
		return loader.LoadFile(path)
	}
}
