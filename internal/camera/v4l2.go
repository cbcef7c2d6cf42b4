package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sort"
	"time"

	"github.com/blackjack/webcam"

	"github.com/GriffinCanCode/trapcam/internal/frame"
)

const (
	fmtYUYV  webcam.PixelFormat = 0x56595559
	fmtMJPEG webcam.PixelFormat = 0x47504a4d
)

// V4L2 user controls (linux/v4l2-controls.h).
const (
	ctrlAutoWhiteBalance webcam.ControlID = 0x0098090c
	ctrlExposureAuto     webcam.ControlID = 0x009a0901
	ctrlExposureAbsolute webcam.ControlID = 0x009a0902
	ctrlISOSensitivity   webcam.ControlID = 0x009a0917
	ctrlISOAuto          webcam.ControlID = 0x009a0918

	exposureManual           = 1
	exposureAperturePriority = 3
)

const (
	frameWaitSeconds = 5
	maxFrameTimeouts = 3
)

// preferred order when both are offered
var supportedFormats = []webcam.PixelFormat{fmtYUYV, fmtMJPEG}

// OpenV4L2 returns an opener for a Video4Linux device such as /dev/video0.
func OpenV4L2(path string) Opener {
	return func(ctx context.Context) (Device, error) {
		cam, err := webcam.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return &v4l2Device{cam: cam, path: path}, nil
	}
}

type v4l2Device struct {
	cam       *webcam.Webcam
	path      string
	format    webcam.PixelFormat
	w, h      uint32
	settings  Settings
	streaming bool
}

func (d *v4l2Device) Configure(s Settings) error {
	format, err := pickFormat(d.cam.GetSupportedFormats())
	if err != nil {
		return err
	}
	size := pickSize(d.cam.GetSupportedFrameSizes(format), s.Width, s.Height)

	f, w, h, err := d.cam.SetImageFormat(format, size.MaxWidth, size.MaxHeight)
	if err != nil {
		return fmt.Errorf("set image format: %w", err)
	}
	d.format, d.w, d.h, d.settings = f, w, h, s

	d.applyControls(s)

	if err := d.cam.StartStreaming(); err != nil {
		return fmt.Errorf("start streaming: %w", err)
	}
	d.streaming = true
	return nil
}

// applyControls is best effort: UVC cameras expose wildly different control sets.
func (d *v4l2Device) applyControls(s Settings) {
	controls := d.cam.GetControls()
	set := func(id webcam.ControlID, value int32) {
		c, ok := controls[id]
		if !ok {
			return
		}
		value = max(c.Min, min(value, c.Max))
		if err := d.cam.SetControl(id, value); err != nil {
			slog.Debug("v4l2 control rejected", "device", d.path, "control", c.Name, "value", value, "error", err)
		}
	}

	set(ctrlAutoWhiteBalance, boolControl(s.AutoWhiteBalance))
	if s.AutoExposure {
		set(ctrlExposureAuto, exposureAperturePriority)
		return
	}

	if err := d.cam.SetFramerate(float32(s.FrameRate)); err != nil {
		slog.Debug("v4l2 framerate rejected", "device", d.path, "fps", s.FrameRate, "error", err)
	}
	set(ctrlExposureAuto, exposureManual)
	set(ctrlExposureAbsolute, int32(s.ShutterMicros/100)) // 100us units
	set(ctrlISOAuto, 0)
	set(ctrlISOSensitivity, int32(s.ISO))
}

// Settle keeps frames flowing while streaming so the exposure loop converges.
func (d *v4l2Device) Settle(ctx context.Context, dur time.Duration) error {
	if !d.streaming {
		return sleepCtx(ctx, dur)
	}
	deadline := time.Now().Add(dur)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.cam.WaitForFrame(1); err != nil {
			var timeout *webcam.Timeout
			if errors.As(err, &timeout) {
				continue
			}
			return err
		}
		if _, err := d.cam.ReadFrame(); err != nil {
			return err
		}
	}
	return nil
}

func (d *v4l2Device) Capture(ctx context.Context) (*frame.Frame, error) {
	if !d.streaming {
		return nil, errors.New("capture before configure")
	}
	for timeouts := 0; ; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := d.cam.WaitForFrame(frameWaitSeconds)
		var timeout *webcam.Timeout
		if errors.As(err, &timeout) {
			if timeouts++; timeouts >= maxFrameTimeouts {
				return nil, fmt.Errorf("%s: no frame after %d waits", d.path, timeouts)
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		raw, err := d.cam.ReadFrame()
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			continue
		}
		// the driver reuses the mmap buffer
		buf := bytes.Clone(raw)

		img, err := d.decode(buf)
		if err != nil {
			return nil, err
		}
		return frame.FromImage(img, d.settings.Width, d.settings.Height), nil
	}
}

func (d *v4l2Device) decode(buf []byte) (image.Image, error) {
	switch d.format {
	case fmtYUYV:
		return decodeYUYV(buf, int(d.w), int(d.h))
	case fmtMJPEG:
		return jpeg.Decode(bytes.NewReader(buf))
	default:
		return nil, fmt.Errorf("unsupported pixel format %#x", uint32(d.format))
	}
}

func (d *v4l2Device) Close() error {
	var errs []error
	if d.streaming {
		errs = append(errs, d.cam.StopStreaming())
		d.streaming = false
	}
	errs = append(errs, d.cam.Close())
	return errors.Join(errs...)
}

func decodeYUYV(buf []byte, w, h int) (image.Image, error) {
	if len(buf) < w*h*2 {
		return nil, fmt.Errorf("short YUYV frame: %d bytes for %dx%d", len(buf), w, h)
	}
	yuyv := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio422)
	for i := range yuyv.Cb {
		ii := i * 4
		yuyv.Y[i*2] = buf[ii]
		yuyv.Y[i*2+1] = buf[ii+2]
		yuyv.Cb[i] = buf[ii+1]
		yuyv.Cr[i] = buf[ii+3]
	}
	return yuyv, nil
}

func pickFormat(offered map[webcam.PixelFormat]string) (webcam.PixelFormat, error) {
	for _, f := range supportedFormats {
		if _, ok := offered[f]; ok {
			return f, nil
		}
	}
	return 0, fmt.Errorf("no supported pixel format among %d offered (need YUYV or MJPEG)", len(offered))
}

// pickSize returns the smallest discrete size covering w x h, or the largest available.
func pickSize(sizes []webcam.FrameSize, w, h int) webcam.FrameSize {
	if len(sizes) == 0 {
		return webcam.FrameSize{MaxWidth: uint32(w), MaxHeight: uint32(h)}
	}
	sort.Slice(sizes, func(i, j int) bool {
		return sizes[i].MaxWidth*sizes[i].MaxHeight < sizes[j].MaxWidth*sizes[j].MaxHeight
	})
	for _, s := range sizes {
		if s.MaxWidth >= uint32(w) && s.MaxHeight >= uint32(h) {
			return s
		}
	}
	return sizes[len(sizes)-1]
}

func boolControl(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// FormatInfo describes one pixel format a device offers.
type FormatInfo struct {
	Name  string
	Code  uint32
	Sizes []string
}

// ListV4L2 reports the formats and frame sizes a device supports.
func ListV4L2(path string) ([]FormatInfo, error) {
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer cam.Close()

	var infos []FormatInfo
	for f, name := range cam.GetSupportedFormats() {
		info := FormatInfo{Name: name, Code: uint32(f)}
		for _, s := range cam.GetSupportedFrameSizes(f) {
			info.Sizes = append(info.Sizes, s.GetString())
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Code < infos[j].Code })
	return infos, nil
}
