package cropper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/menta2k/croppy/internal/logging"
	"github.com/menta2k/croppy/internal/utils"
)

// Post-export delivery failures. They never touch editor state.
var (
	ErrClipboardWrite = errors.New("clipboard write failed")
	ErrDownload       = errors.New("download failed")
)

// Export is one encoded crop ready for delivery.
type Export struct {
	Data   []byte
	Format Format
	Name   string
}

// Sink receives an encoded export.
type Sink interface {
	Deliver(ctx context.Context, e Export) error
}

// FileSink writes exports into a directory.
type FileSink struct {
	Dir string
}

// Deliver writes e to Dir/e.Name. Path separators in the name are replaced.
func (s FileSink) Deliver(_ context.Context, e Export) error {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrDownload, err)
	}
	path := filepath.Join(dir, utils.SanitizeFilename(e.Name))
	if err := os.WriteFile(path, e.Data, 0644); err != nil {
		return fmt.Errorf("%w: %w", ErrDownload, err)
	}
	logging.Logger().Info("export saved", "path", path, "bytes", len(e.Data))
	return nil
}

// ClipboardSink pipes exports into a clipboard command.
type ClipboardSink struct {
	// Command and Args override detection, e.g. "wl-copy" or
	// "xclip -selection clipboard -t image/png".
	Command string
	Args    []string
}

// clipboardCommands are tried in order when no command is configured.
var clipboardCommands = [][]string{
	{"wl-copy", "--type", "{mime}"},
	{"xclip", "-selection", "clipboard", "-t", "{mime}"},
	{"pbcopy"},
}

// Deliver writes e.Data to the clipboard command's stdin.
func (s ClipboardSink) Deliver(ctx context.Context, e Export) error {
	name, args, err := s.resolve(e.Format.MIME())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrClipboardWrite, err)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(e.Data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %w: %s", ErrClipboardWrite, name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	logging.Logger().Info("export copied to clipboard", "command", name, "bytes", len(e.Data))
	return nil
}

func (s ClipboardSink) resolve(mime string) (string, []string, error) {
	if s.Command != "" {
		return s.Command, s.Args, nil
	}
	for _, c := range clipboardCommands {
		path, err := exec.LookPath(c[0])
		if err != nil {
			continue
		}
		args := make([]string, 0, len(c)-1)
		for _, a := range c[1:] {
			if a == "{mime}" {
				a = mime
			}
			args = append(args, a)
		}
		return path, args, nil
	}
	return "", nil, errors.New("no clipboard command found (install wl-clipboard or xclip)")
}

// Deliver hands one export to every sink concurrently and returns the first
// failure.
func Deliver(ctx context.Context, e Export, sinks ...Sink) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range sinks {
		g.Go(func() error {
			return s.Deliver(ctx, e)
		})
	}
	return g.Wait()
}

// NewExport encodes result for delivery, naming it after now.
func NewExport(result CropResult, f Format, quality int, now time.Time) (Export, error) {
	data, err := EncodeBytes(result.Image, f, quality)
	if err != nil {
		return Export{}, err
	}
	return Export{Data: data, Format: f, Name: FileName(now, f)}, nil
}
