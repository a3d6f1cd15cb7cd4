package imaging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// imageExts is the supported image-file extension set, lower-case, without
// the leading dot.
var imageExts = map[string]struct{}{
	"bmp": {}, "tif": {}, "tiff": {}, "jpeg": {}, "jpg": {},
	"png": {}, "ppm": {}, "pgm": {}, "pbm": {}, "gif": {},
}

// IsImageFile reports whether the filename has a supported image extension,
// case-insensitive.
func IsImageFile(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	_, ok := imageExts[ext]
	return ok
}

// ListImages returns the names of files in dir whose extension matches the
// supported image set, in listing order.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("imaging: list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if IsImageFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
