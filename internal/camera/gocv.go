//go:build gocv

package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"time"

	"gocv.io/x/gocv"

	"github.com/GriffinCanCode/trapcam/internal/frame"
)

// GoCVAvailable reports whether the OpenCV backend is compiled in.
const GoCVAvailable = true

// OpenGoCV returns an opener backed by OpenCV's VideoCapture.
// device is a numeric index or a device path.
func OpenGoCV(device string) Opener {
	return func(ctx context.Context) (Device, error) {
		var id any = device
		if n, err := strconv.Atoi(device); err == nil {
			id = n
		}
		vc, err := gocv.OpenVideoCapture(id)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", device, err)
		}
		if !vc.IsOpened() {
			vc.Close()
			return nil, fmt.Errorf("open %s: device not opened", device)
		}
		return &gocvDevice{vc: vc}, nil
	}
}

type gocvDevice struct {
	vc       *gocv.VideoCapture
	settings Settings
}

func (d *gocvDevice) Configure(s Settings) error {
	d.settings = s
	d.vc.Set(gocv.VideoCaptureFrameWidth, float64(s.Width))
	d.vc.Set(gocv.VideoCaptureFrameHeight, float64(s.Height))
	d.vc.Set(gocv.VideoCaptureAutoWB, boolProp(s.AutoWhiteBalance))

	if s.AutoExposure {
		// V4L2 backend maps 0.75 to auto, 0.25 to manual
		d.vc.Set(gocv.VideoCaptureAutoExposure, 0.75)
		return nil
	}
	d.vc.Set(gocv.VideoCaptureFPS, s.FrameRate)
	d.vc.Set(gocv.VideoCaptureAutoExposure, 0.25)
	d.vc.Set(gocv.VideoCaptureExposure, float64(s.ShutterMicros/100))
	d.vc.Set(gocv.VideoCaptureISOSpeed, float64(s.ISO))
	return nil
}

// Settle drains frames so the sensor adapts to the new settings.
func (d *gocvDevice) Settle(ctx context.Context, dur time.Duration) error {
	mat := gocv.NewMat()
	defer mat.Close()

	deadline := time.Now().Add(dur)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.vc.Read(&mat) {
			return errors.New("read failed while settling")
		}
	}
	return nil
}

func (d *gocvDevice) Capture(ctx context.Context) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat := gocv.NewMat()
	defer mat.Close()

	if !d.vc.Read(&mat) || mat.Empty() {
		return nil, errors.New("empty frame from VideoCapture")
	}

	// drivers may ignore the requested size; resize and reorder BGR in OpenCV
	w, h := d.settings.Width, d.settings.Height
	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(mat, &small, image.Pt(w, h), 0, 0, gocv.InterpolationArea)
	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(small, &rgb, gocv.ColorBGRToRGB)
	return frame.FromRGB(w, h, rgb.ToBytes())
}

func (d *gocvDevice) Close() error {
	return d.vc.Close()
}

func boolProp(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
