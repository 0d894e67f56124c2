//go:build windows

package position

import "os"

// fileIdentity has no portable device/inode pair on Windows; rotation
// detection there falls back to the size-shrink check alone (spec.md §4.2
// still triggers a reset on that signal).
func fileIdentity(fi os.FileInfo) (dev, inode uint64, ok bool) {
	return 0, 0, false
}
