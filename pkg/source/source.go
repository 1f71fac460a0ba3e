// Package source opens analysis inputs by path: video files and streams
// through OpenCV's capture API, still images as a single frame.
package source

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnreadable is returned when a source is missing, corrupt or in an
// unsupported format.
var ErrUnreadable = errors.New("source unreadable")

var stillExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// IsStillImage decides by extension whether path is a single image rather
// than a video stream.
func IsStillImage(path string) bool {
	return stillExtensions[strings.ToLower(filepath.Ext(path))]
}
