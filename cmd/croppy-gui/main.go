// Command croppy-gui is the desktop crop editor.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"fyne.io/fyne/v2/app"

	"github.com/menta2k/croppy"
	"github.com/menta2k/croppy/internal/config"
	"github.com/menta2k/croppy/internal/utils"
	"github.com/menta2k/croppy/pkg/prefs"
)

const appID = "io.github.menta2k.croppy"

func main() {
	var configPath string
	var verbose bool
	flag.StringVar(&configPath, "config", "", "config file (default ~/.config/croppy/config.json if present)")
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

	prefsPath := cfg.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	store, err := prefs.Open(prefsPath)
	if err != nil {
		log.Fatalf("Failed to open preferences: %v", err)
	}
	cropW, cropH := store.CropSize()
	cfg.ApplyPrefs(cropW, cropH, store.Sensitivity())

	edCfg, err := croppy.ConfigFromApp(cfg)
	if err != nil {
		log.Fatal(err)
	}
	ed := croppy.NewWithConfig(edCfg)
	defer ed.Close()

	a := app.NewWithID(appID)
	w := newMainWindow(a, ed, cfg, store)

	if flag.NArg() > 0 {
		w.openPath(flag.Arg(0))
	}
	w.ShowAndRun()

	if err := store.Save(); err != nil {
		log.Printf("Failed to save preferences to %s: %v", store.Path(), err)
	}
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
