package camera

import (
	"testing"

	"github.com/GriffinCanCode/trapcam/internal/detect"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"day", Day, false},
		{"NIGHT", Night, false},
		{" night ", Night, false},
		{"", Day, false},
		{"dusk", Day, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestModeString(t *testing.T) {
	if Day.String() != "day" || Night.String() != "night" {
		t.Errorf("String() = %q/%q", Day, Night)
	}
	if got := Mode(7).String(); got != "Mode(7)" {
		t.Errorf("Mode(7).String() = %q", got)
	}
}

func TestSettingsForDay(t *testing.T) {
	cfg := detect.DefaultConfig()
	s := SettingsFor(Day, cfg)

	if !s.AutoExposure || !s.AutoWhiteBalance {
		t.Error("day mode should leave exposure and white balance automatic")
	}
	if s.ShutterMicros != 0 || s.NightSettle != 0 || s.FrameRate != 0 {
		t.Errorf("day mode carries night settings: %+v", s)
	}
	if s.Settle != cfg.Settle || s.Width != cfg.Width || s.Height != cfg.Height {
		t.Errorf("SettingsFor(Day) = %+v", s)
	}
}

func TestSettingsForNight(t *testing.T) {
	cfg := detect.DefaultConfig()
	s := SettingsFor(Night, cfg)

	if s.AutoExposure {
		t.Error("night mode should disable automatic exposure")
	}
	if !s.AutoWhiteBalance {
		t.Error("night mode should keep automatic white balance")
	}
	if s.ShutterMicros != 5_500_000 || s.ISO != 800 {
		t.Errorf("shutter/ISO = %d/%d, want 5500000/800", s.ShutterMicros, s.ISO)
	}
	if s.NightSettle != cfg.Night.Settle || s.FrameRate != cfg.Night.FrameRate {
		t.Errorf("SettingsFor(Night) = %+v", s)
	}
}

func TestNightShutterClamped(t *testing.T) {
	tests := []struct {
		configured, want int
	}{
		{5_500_000, 5_500_000},
		{6_000_000, 6_000_000},
		{9_000_000, MaxShutterMicros},
	}
	for _, tt := range tests {
		cfg := detect.DefaultConfig()
		cfg.Night.ShutterMicros = tt.configured
		if got := SettingsFor(Night, cfg).ShutterMicros; got != tt.want {
			t.Errorf("shutter %d -> %d, want %d", tt.configured, got, tt.want)
		}
	}
}

func TestNewOpener(t *testing.T) {
	for _, b := range []string{BackendRPiCam, BackendV4L2, ""} {
		if _, err := NewOpener(b, "/dev/video0", ""); err != nil {
			t.Errorf("NewOpener(%q) error = %v", b, err)
		}
	}
	if _, err := NewOpener("firewire", "", ""); err == nil {
		t.Error("NewOpener(unknown) should fail")
	}
	if _, err := NewOpener(BackendGoCV, "0", ""); (err == nil) != GoCVAvailable {
		t.Errorf("NewOpener(gocv) error = %v with GoCVAvailable=%v", err, GoCVAvailable)
	}
}
