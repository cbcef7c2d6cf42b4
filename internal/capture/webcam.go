package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/blackjack/webcam"
	"github.com/google/uuid"
	"github.com/icza/mjpeg"

	apperrors "github.com/GriffinCanCode/trapcam/internal/errors"
	"github.com/GriffinCanCode/trapcam/internal/trace"
)

const (
	fmtMJPEG webcam.PixelFormat = 0x47504a4d

	// DefaultClipFPS is written into the AVI header; UVC cameras rarely hold it exactly.
	DefaultClipFPS = 15
)

// FrameStream yields JPEG-encoded frames.
type FrameStream interface {
	Next(ctx context.Context) ([]byte, error)
	Size() (w, h int)
	Close() error
}

// StreamOpener opens a FrameStream for one capture.
type StreamOpener func() (FrameStream, error)

// WebcamRecorder is the capture action for USB cameras without the Pi tools:
// the still is the first MJPEG frame, the clip an MJPEG AVI.
type WebcamRecorder struct {
	Layout       Layout
	Open         StreamOpener
	ClipDuration time.Duration
	FPS          int32

	Fingerprints *Fingerprinter
	OnCapture    func(Result)

	now func() time.Time
}

// NewWebcamRecorder records from the V4L2 device at path.
func NewWebcamRecorder(layout Layout, path string) *WebcamRecorder {
	return &WebcamRecorder{
		Layout:       layout,
		Open:         OpenMJPEGStream(path),
		ClipDuration: DefaultVideoDuration,
		FPS:          DefaultClipFPS,
		Fingerprints: &Fingerprinter{},
		now:          time.Now,
	}
}

// Run implements Action.
func (r *WebcamRecorder) Run(ctx context.Context) error {
	_, err := r.Capture(ctx)
	return err
}

// Capture records one still and one clip.
func (r *WebcamRecorder) Capture(ctx context.Context) (res Result, err error) {
	log := trace.Logger(ctx)
	now := r.now
	if now == nil {
		now = time.Now
	}
	started := now()
	res = Result{
		ID:        uuid.NewString(),
		Basename:  started.Format(BasenameFormat),
		Distance:  -1,
		StartedAt: started,
	}
	fail := func(err error, step string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.Wrap(err, apperrors.ActionFailed, step).WithMetadata("basename", res.Basename)
	}

	stream, err := r.Open()
	if err != nil {
		return res, fail(err, "open webcam")
	}
	defer stream.Close()

	log.Info("capturing image", "basename", res.Basename)
	still, err := stream.Next(ctx)
	if err != nil {
		return res, fail(err, "still capture")
	}
	tmp, final := r.Layout.stage(r.Layout.Images(), res.Basename, ".jpg")
	if err := os.WriteFile(tmp, still, 0o644); err != nil {
		return res, fail(err, "write still")
	}
	if err := os.Rename(tmp, final); err != nil {
		return res, fail(err, "move still")
	}
	res.StillPath = final

	log.Info("capturing video", "basename", res.Basename, "duration", r.ClipDuration)
	tmp, final = r.Layout.stage(r.Layout.Videos(), res.Basename, ".avi")
	frames, err := r.record(ctx, stream, tmp)
	if err != nil {
		return res, fail(err, "video capture")
	}
	if err := os.Rename(tmp, final); err != nil {
		return res, fail(err, "move video")
	}
	res.VideoPath = final

	if r.Fingerprints != nil {
		hash, dist, similar, err := r.Fingerprints.Compare(res.StillPath)
		if err != nil {
			log.Warn("fingerprint failed", "path", res.StillPath, "error", err)
		}
		res.Fingerprint, res.Distance, res.Similar = hash, dist, similar
	}

	res.Duration = now().Sub(started)
	log.Info("capture complete", "id", res.ID, "frames", frames, "duration", res.Duration)
	if r.OnCapture != nil {
		r.OnCapture(res)
	}
	return res, nil
}

func (r *WebcamRecorder) record(ctx context.Context, stream FrameStream, path string) (int, error) {
	w, h := stream.Size()
	fps := r.FPS
	if fps <= 0 {
		fps = DefaultClipFPS
	}
	aw, err := mjpeg.New(path, int32(w), int32(h), fps)
	if err != nil {
		return 0, err
	}

	clipCtx, cancel := context.WithTimeout(ctx, r.ClipDuration)
	defer cancel()

	count := 0
	for {
		img, err := stream.Next(clipCtx)
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				break
			}
			aw.Close()
			return count, err
		}
		if err := aw.AddFrame(img); err != nil {
			aw.Close()
			return count, err
		}
		count++
	}
	if count == 0 {
		aw.Close()
		return 0, errors.New("no frames recorded")
	}
	return count, aw.Close()
}

// OpenMJPEGStream opens the V4L2 device at path in MJPEG mode at its largest frame size.
func OpenMJPEGStream(path string) StreamOpener {
	return func() (FrameStream, error) {
		cam, err := webcam.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		if _, ok := cam.GetSupportedFormats()[fmtMJPEG]; !ok {
			cam.Close()
			return nil, fmt.Errorf("%s does not offer MJPEG", path)
		}
		sizes := cam.GetSupportedFrameSizes(fmtMJPEG)
		if len(sizes) == 0 {
			cam.Close()
			return nil, fmt.Errorf("%s reports no MJPEG frame sizes", path)
		}
		sort.Slice(sizes, func(i, j int) bool {
			return sizes[i].MaxWidth*sizes[i].MaxHeight < sizes[j].MaxWidth*sizes[j].MaxHeight
		})
		largest := sizes[len(sizes)-1]
		_, w, h, err := cam.SetImageFormat(fmtMJPEG, largest.MaxWidth, largest.MaxHeight)
		if err != nil {
			cam.Close()
			return nil, fmt.Errorf("set MJPEG format: %w", err)
		}
		if err := cam.StartStreaming(); err != nil {
			cam.Close()
			return nil, fmt.Errorf("start streaming: %w", err)
		}
		return &mjpegStream{cam: cam, w: int(w), h: int(h)}, nil
	}
}

type mjpegStream struct {
	cam  *webcam.Webcam
	w, h int
}

func (s *mjpegStream) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := s.cam.WaitForFrame(1)
		var timeout *webcam.Timeout
		if errors.As(err, &timeout) {
			continue
		}
		if err != nil {
			return nil, err
		}
		raw, err := s.cam.ReadFrame()
		if err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			return bytes.Clone(raw), nil
		}
	}
}

func (s *mjpegStream) Size() (int, int) { return s.w, s.h }

func (s *mjpegStream) Close() error {
	return errors.Join(s.cam.StopStreaming(), s.cam.Close())
}
