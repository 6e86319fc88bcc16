package filesystem

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ShouldProcessEvent reports whether an fsnotify event touches one of the
// watched manifest files
func ShouldProcessEvent(event fsnotify.Event, manifests map[string]bool) bool {
	// Process Write, Create, Remove, and Rename events
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if isEditorTemp(filepath.Base(event.Name)) {
		return false
	}
	return manifests[filepath.Clean(event.Name)]
}

// isEditorTemp matches swap and backup files editors write next to the
// file being saved
func isEditorTemp(name string) bool {
	if strings.HasSuffix(name, "~") {
		return true
	}
	return strings.HasPrefix(name, ".") && (strings.HasSuffix(name, ".swp") ||
		strings.HasSuffix(name, ".tmp") ||
		strings.Contains(name, ".sw"))
}
