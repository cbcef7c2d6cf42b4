package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"slices"
	"testing"

	"github.com/GriffinCanCode/trapcam/internal/detect"

	apperrors "github.com/GriffinCanCode/trapcam/internal/errors"
)

type recordingRunner struct {
	name string
	args []string
	out  []byte
	err  error
}

func (r *recordingRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.name, r.args = name, args
	return r.out, r.err
}

func pngOf(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func argValue(args []string, flag string) (string, bool) {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return "", false
	}
	return args[i+1], true
}

func TestRPiCamNightArgs(t *testing.T) {
	cfg := detect.DefaultConfig()
	cfg.Night.ShutterMicros = 9_000_000
	r := &recordingRunner{out: pngOf(t, cfg.Width, cfg.Height, color.NRGBA{G: 200, A: 255})}
	s := NewSource(OpenRPiCam("rpicam-still", r.run))

	f, err := s.Acquire(context.Background(), Night, cfg)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if got := f.Sample(5, 5, detect.Channel); got != 200 {
		t.Errorf("green = %d, want 200", got)
	}

	want := map[string]string{
		"-t":          "8500", // open settle plus night settle
		"--shutter":   "6000000",
		"--gain":      "8.00",
		"--width":     "128",
		"--height":    "80",
		"--awb":       "auto",
		"--framerate": "0.1667",
	}
	for flag, v := range want {
		if got, ok := argValue(r.args, flag); !ok || got != v {
			t.Errorf("%s = %q (present %v), want %q", flag, got, ok, v)
		}
	}
	if r.name != "rpicam-still" {
		t.Errorf("command = %q", r.name)
	}
}

func TestRPiCamDayArgs(t *testing.T) {
	cfg := detect.DefaultConfig()
	r := &recordingRunner{out: pngOf(t, cfg.Width, cfg.Height, color.White)}
	s := NewSource(OpenRPiCam("", r.run))

	if _, err := s.Acquire(context.Background(), Day, cfg); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if v, _ := argValue(r.args, "-t"); v != "500" {
		t.Errorf("-t = %q, want 500", v)
	}
	if slices.Contains(r.args, "--shutter") {
		t.Errorf("day args carry a fixed shutter: %v", r.args)
	}
	if r.name != DefaultStillCommand {
		t.Errorf("command = %q, want %q", r.name, DefaultStillCommand)
	}
}

func TestRPiCamResizesLargerStill(t *testing.T) {
	cfg := detect.DefaultConfig()
	r := &recordingRunner{out: pngOf(t, cfg.Width*2, cfg.Height*2, color.Black)}
	s := NewSource(OpenRPiCam("", r.run))

	f, err := s.Acquire(context.Background(), Day, cfg)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if f.Width != cfg.Width || f.Height != cfg.Height {
		t.Errorf("frame = %dx%d", f.Width, f.Height)
	}
}

func TestRPiCamFailures(t *testing.T) {
	cfg := detect.DefaultConfig()

	tests := []struct {
		name string
		r    *recordingRunner
	}{
		{"command fails", &recordingRunner{err: errors.New("exit status 1")}},
		{"garbage output", &recordingRunner{out: []byte("not a png")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSource(OpenRPiCam("", tt.r.run))
			if _, err := s.Acquire(context.Background(), Day, cfg); !apperrors.IsCode(err, apperrors.Hardware) {
				t.Errorf("Acquire() error = %v, want HARDWARE", err)
			}
		})
	}
}
