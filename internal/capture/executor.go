package capture

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/GriffinCanCode/trapcam/internal/errors"
	"github.com/GriffinCanCode/trapcam/internal/trace"
)

// Capture command defaults (Raspberry Pi legacy camera stack).
const (
	DefaultStillCommand  = "raspistill"
	DefaultVideoCommand  = "raspivid"
	DefaultVideoDuration = 15 * time.Second
)

// Executor is the subprocess-backed capture action: it shoots a still, then a clip,
// each into the staging folder, and moves them into images/ and videos/.
type Executor struct {
	Layout        Layout
	StillCommand  string
	VideoCommand  string
	VideoDuration time.Duration
	Runner        Runner

	// Fingerprints, when set, hashes each still against the previous one.
	Fingerprints *Fingerprinter
	// OnCapture is called after each successful capture.
	OnCapture func(Result)

	now func() time.Time
}

// NewExecutor creates an executor with the default commands.
func NewExecutor(layout Layout) *Executor {
	return &Executor{
		Layout:        layout,
		StillCommand:  DefaultStillCommand,
		VideoCommand:  DefaultVideoCommand,
		VideoDuration: DefaultVideoDuration,
		Runner:        ExecRunner{},
		Fingerprints:  &Fingerprinter{},
		now:           time.Now,
	}
}

// Run implements Action.
func (e *Executor) Run(ctx context.Context) error {
	_, err := e.Capture(ctx)
	return err
}

// Capture shoots one still and one clip and returns where they were filed.
func (e *Executor) Capture(ctx context.Context) (Result, error) {
	log := trace.Logger(ctx)
	started := e.clock()
	res := Result{
		ID:        uuid.NewString(),
		Basename:  started.Format(BasenameFormat),
		Distance:  -1,
		StartedAt: started,
	}

	log.Info("capturing image", "basename", res.Basename)
	tmp, final := e.Layout.stage(e.Layout.Images(), res.Basename, ".jpg")
	if err := e.Runner.Run(ctx, e.StillCommand, "-t", "1", "-n", "-o", tmp); err != nil {
		return res, e.fail(ctx, err, res, "still capture")
	}
	if err := os.Rename(tmp, final); err != nil {
		return res, e.fail(ctx, err, res, "move still")
	}
	res.StillPath = final

	log.Info("capturing video", "basename", res.Basename, "duration", e.VideoDuration)
	tmp, final = e.Layout.stage(e.Layout.Videos(), res.Basename, ".mp4")
	ms := strconv.FormatInt(e.VideoDuration.Milliseconds(), 10)
	if err := e.Runner.Run(ctx, e.VideoCommand, "-t", ms, "-n", "-o", tmp); err != nil {
		return res, e.fail(ctx, err, res, "video capture")
	}
	if err := os.Rename(tmp, final); err != nil {
		return res, e.fail(ctx, err, res, "move video")
	}
	res.VideoPath = final

	if e.Fingerprints != nil {
		hash, dist, similar, err := e.Fingerprints.Compare(res.StillPath)
		if err != nil {
			log.Warn("fingerprint failed", "path", res.StillPath, "error", err)
		}
		res.Fingerprint, res.Distance, res.Similar = hash, dist, similar
	}

	res.Duration = e.clock().Sub(started)
	log.Info("capture complete", "id", res.ID, "still", res.StillPath, "video", res.VideoPath, "duration", res.Duration)
	if e.OnCapture != nil {
		e.OnCapture(res)
	}
	return res, nil
}

func (e *Executor) fail(ctx context.Context, err error, res Result, step string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	trace.Logger(ctx).Debug("capture step failed", "step", step, "basename", res.Basename, "error", err)
	return apperrors.Wrap(err, apperrors.ActionFailed, step).WithMetadata("basename", res.Basename)
}

func (e *Executor) clock() time.Time {
	if e.now == nil {
		return time.Now()
	}
	return e.now()
}
