package camera

import (
	"errors"
	"fmt"
)

// Backend names accepted by NewOpener.
const (
	BackendRPiCam = "rpicam"
	BackendV4L2   = "v4l2"
	BackendGoCV   = "gocv"
)

var errNoGoCV = errors.New("gocv backend not compiled in (rebuild with -tags gocv)")

// Backends lists every backend name.
var Backends = []string{BackendRPiCam, BackendV4L2, BackendGoCV}

// NewOpener selects a camera backend. device is the V4L2/OpenCV device and
// stillCommand the libcamera tool; each is ignored by backends that don't use it.
func NewOpener(backend, device, stillCommand string) (Opener, error) {
	switch backend {
	case BackendRPiCam, "":
		return OpenRPiCam(stillCommand, nil), nil
	case BackendV4L2:
		return OpenV4L2(device), nil
	case BackendGoCV:
		if !GoCVAvailable {
			return nil, errNoGoCV
		}
		return OpenGoCV(device), nil
	default:
		return nil, fmt.Errorf("unknown camera backend %q (want one of %v)", backend, Backends)
	}
}
