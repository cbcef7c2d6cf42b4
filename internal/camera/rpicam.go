package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"os/exec"
	"strconv"
	"time"

	"github.com/GriffinCanCode/trapcam/internal/frame"
)

// DefaultStillCommand is the libcamera still tool shipped with Raspberry Pi OS.
const DefaultStillCommand = "rpicam-still"

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec, folding stderr into the error.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

// OpenRPiCam returns an opener for the libcamera still tool. Each acquisition is one
// process run: settle time is passed as the preview timeout and the PNG is read from stdout.
func OpenRPiCam(command string, run CommandRunner) Opener {
	if command == "" {
		command = DefaultStillCommand
	}
	checkPath := run == nil
	if run == nil {
		run = ExecRunner
	}
	return func(ctx context.Context) (Device, error) {
		if checkPath {
			if _, err := exec.LookPath(command); err != nil {
				return nil, fmt.Errorf("%s not found: %w", command, err)
			}
		}
		return &rpicamDevice{command: command, run: run}, nil
	}
}

type rpicamDevice struct {
	command  string
	run      CommandRunner
	settings Settings
	settle   time.Duration
}

func (d *rpicamDevice) Settle(_ context.Context, dur time.Duration) error {
	d.settle += dur
	return nil
}

func (d *rpicamDevice) Configure(s Settings) error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", s.Width, s.Height)
	}
	d.settings = s
	return nil
}

func (d *rpicamDevice) Capture(ctx context.Context) (*frame.Frame, error) {
	out, err := d.run(ctx, d.command, d.args()...)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode %s output: %w", d.command, err)
	}
	return frame.FromImage(img, d.settings.Width, d.settings.Height), nil
}

func (d *rpicamDevice) Close() error { return nil }

func (d *rpicamDevice) args() []string {
	s := d.settings
	// -t 0 means "run forever"
	timeout := max(d.settle.Milliseconds(), 1)

	args := []string{
		"-n",
		"-t", strconv.FormatInt(timeout, 10),
		"--width", strconv.Itoa(s.Width),
		"--height", strconv.Itoa(s.Height),
		"--awb", "auto",
		"-e", "png",
		"-o", "-",
	}
	if s.AutoExposure {
		return args
	}
	// fixed shutter and gain disable the AE loop
	return append(args,
		"--framerate", strconv.FormatFloat(s.FrameRate, 'f', 4, 64),
		"--shutter", strconv.Itoa(s.ShutterMicros),
		"--gain", strconv.FormatFloat(float64(s.ISO)/100, 'f', 2, 64),
	)
}
