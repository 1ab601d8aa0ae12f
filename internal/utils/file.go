package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// FileKind is the kind of media a path holds, judged by extension.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindImage
	KindVideo
	KindPDF
)

func (k FileKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

var (
	imageExts = []string{"jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff", "webp"}
	videoExts = []string{"mp4", "webm", "mov", "mkv", "avi", "m4v"}
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	return slices.Contains(imageExts, GetFileExtension(filename))
}

// IsVideoFile checks if a file has a video extension
func IsVideoFile(filename string) bool {
	return slices.Contains(videoExts, GetFileExtension(filename))
}

// IsPDFFile checks if a file has a .pdf extension
func IsPDFFile(filename string) bool {
	return GetFileExtension(filename) == "pdf"
}

// KindOf classifies filename by extension.
func KindOf(filename string) FileKind {
	switch {
	case IsImageFile(filename):
		return KindImage
	case IsVideoFile(filename):
		return KindVideo
	case IsPDFFile(filename):
		return KindPDF
	default:
		return KindUnknown
	}
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// SanitizeFilename removes or replaces invalid characters in filenames
func SanitizeFilename(filename string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := filename

	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}

	return strings.Trim(result, " .")
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
