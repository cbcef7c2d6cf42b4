//go:build !gocv

package camera

import "context"

// GoCVAvailable reports whether the OpenCV backend is compiled in.
const GoCVAvailable = false

// OpenGoCV fails on every open in builds without OpenCV.
func OpenGoCV(string) Opener {
	return func(context.Context) (Device, error) { return nil, errNoGoCV }
}
