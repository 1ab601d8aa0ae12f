package cropper

import (
	"strings"
	"time"
)

// FilePrefix starts every exported file name.
const FilePrefix = "croppy-"

// FileName returns the export file name for t, e.g.
// croppy-2026-10-17T12-34-56-.png. The stamp is the UTC ISO-8601 time with
// ':' and '.' turned into '-', keeping the date and the first nine characters
// of the time.
func FileName(t time.Time, f Format) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000Z")
	date, clock, _ := strings.Cut(iso, "T")
	dash := strings.NewReplacer(":", "-", ".", "-")
	clock = dash.Replace(clock)
	if len(clock) > 9 {
		clock = clock[:9]
	}
	if f == "" {
		f = PNG
	}
	return FilePrefix + dash.Replace(date) + "T" + clock + "." + f.Ext()
}
