package watermark

import (
	"path/filepath"
	"strings"
)

const outputSuffix = "-with-watermark"

// OutputName derives the result file name from the input path:
// photo.jpg -> photo-with-watermark.jpg. Only the last dot separates the
// extension, so my.photo.jpg -> my.photo-with-watermark.jpg.
func OutputName(input string) string {
	name := filepath.Base(input)
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	// dotfiles like ".png" have no stem; keep the whole name as the stem
	if stem == "" && ext != "" {
		stem, ext = ext, ""
	}
	return stem + outputSuffix + ext
}
