package capture

import (
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"log/slog"
	"os"
	"sync"

	"github.com/corona10/goimagehash"
)

// MaxHashDistance is the perceptual hash distance at or below which two stills
// are considered the same scene (wind in foliage, light changes).
const MaxHashDistance = 6

func perceptionHash(path string) (*goimagehash.ImageHash, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return goimagehash.PerceptionHash(img)
}

// Fingerprinter hashes successive stills and compares each to the previous one.
type Fingerprinter struct {
	mu   sync.Mutex
	last *goimagehash.ImageHash
}

// Compare hashes the still at path and reports its distance to the previous still.
// distance is -1 for the first still.
func (fp *Fingerprinter) Compare(path string) (hash string, distance int, similar bool, err error) {
	h, err := perceptionHash(path)
	if err != nil {
		return "", -1, false, err
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	prev := fp.last
	fp.last = h
	if prev == nil {
		return h.ToString(), -1, false, nil
	}

	dist, err := prev.Distance(h)
	if err != nil {
		return h.ToString(), -1, false, nil
	}
	if dist <= MaxHashDistance {
		slog.Debug("capture similar to previous", "distance", dist)
	}
	return h.ToString(), dist, dist <= MaxHashDistance, nil
}
