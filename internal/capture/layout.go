package capture

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout is the on-disk folder structure under a root directory.
type Layout struct {
	Root string
}

func (l Layout) Images() string { return filepath.Join(l.Root, "images") }
func (l Layout) Videos() string { return filepath.Join(l.Root, "videos") }
func (l Layout) Temp() string   { return filepath.Join(l.Root, "temp") }

// Prepare creates the image and video folders and empties the staging folder.
// Files left in temp by an interrupted capture are discarded.
func (l Layout) Prepare() error {
	for _, dir := range []string{l.Images(), l.Videos()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.RemoveAll(l.Temp()); err != nil {
		return fmt.Errorf("clear %s: %w", l.Temp(), err)
	}
	if err := os.MkdirAll(l.Temp(), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", l.Temp(), err)
	}
	return nil
}

// stage returns the temp and final paths for a capture file.
func (l Layout) stage(dir, basename, ext string) (tmp, final string) {
	name := basename + ext
	return filepath.Join(l.Temp(), name), filepath.Join(dir, name)
}
