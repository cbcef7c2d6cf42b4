// Package config handles trap configuration: environment, an optional .env file and an optional YAML overlay
package config

import (
	"errors"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/GriffinCanCode/trapcam/internal/camera"
	"github.com/GriffinCanCode/trapcam/internal/capture"
	"github.com/GriffinCanCode/trapcam/internal/detect"
	apperrors "github.com/GriffinCanCode/trapcam/internal/errors"
	"github.com/GriffinCanCode/trapcam/internal/resilience"
)

// Capture backends.
const (
	CaptureExec   = "exec"
	CaptureWebcam = "webcam"
)

type Config struct {
	Threshold   int           `yaml:"threshold"`
	Sensitivity int           `yaml:"sensitivity"`
	Width       int           `yaml:"width"`
	Height      int           `yaml:"height"`
	Settle      time.Duration `yaml:"settle"`

	NightShutterMicros int           `yaml:"night_shutter_us"`
	NightISO           int           `yaml:"night_iso"`
	NightSettle        time.Duration `yaml:"night_settle"`
	NightFrameRate     float64       `yaml:"night_framerate"`

	Mode    string `yaml:"mode"`
	Verbose bool   `yaml:"verbose"`

	Backend        string `yaml:"backend"`
	Device         string `yaml:"device"`
	PreviewCommand string `yaml:"preview_cmd"`

	CaptureBackend string        `yaml:"capture_backend"`
	RootDir        string        `yaml:"root_dir"`
	StillCommand   string        `yaml:"still_cmd"`
	VideoCommand   string        `yaml:"video_cmd"`
	VideoDuration  time.Duration `yaml:"video_duration"`

	AcquireRetries   int           `yaml:"acquire_retries"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`
	BreakerThreshold int           `yaml:"capture_breaker_threshold"`
	BreakerReset     time.Duration `yaml:"capture_breaker_reset"`

	HTTPAddr     string `yaml:"http_addr"`
	GRPCAddr     string `yaml:"grpc_addr"`
	EventHistory int    `yaml:"event_history"`
}

// Load reads .env (if present), then the environment, then the YAML file named by
// CONFIG_FILE (if set). Keys present in the file win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.Wrap(err, apperrors.ConfigInvalid, "load .env")
	}
	cfg := FromEnv()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.Overlay(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// FromEnv builds a config from environment variables and defaults alone.
func FromEnv() *Config {
	d := detect.DefaultConfig()
	return &Config{
		Threshold:   getEnvInt("MOTION_THRESHOLD", d.Threshold),
		Sensitivity: getEnvInt("MOTION_SENSITIVITY", d.Sensitivity),
		Width:       getEnvInt("FRAME_WIDTH", d.Width),
		Height:      getEnvInt("FRAME_HEIGHT", d.Height),
		Settle:      getEnvDuration("SETTLE_DELAY", d.Settle),

		NightShutterMicros: getEnvInt("NIGHT_SHUTTER_US", d.Night.ShutterMicros),
		NightISO:           getEnvInt("NIGHT_ISO", d.Night.ISO),
		NightSettle:        getEnvDuration("NIGHT_SETTLE", d.Night.Settle),
		NightFrameRate:     getEnvFloat("NIGHT_FRAMERATE", d.Night.FrameRate),

		Mode:    getEnv("DAY_MODE", "day"),
		Verbose: getEnvBool("VERBOSE", true),

		Backend:        getEnv("CAMERA_BACKEND", camera.BackendRPiCam),
		Device:         getEnv("CAMERA_DEVICE", "/dev/video0"),
		PreviewCommand: getEnv("PREVIEW_CMD", camera.DefaultStillCommand),

		CaptureBackend: getEnv("CAPTURE_BACKEND", CaptureExec),
		RootDir:        getEnv("ROOT_DIR", "/home/pi/Desktop"),
		StillCommand:   getEnv("STILL_CMD", capture.DefaultStillCommand),
		VideoCommand:   getEnv("VIDEO_CMD", capture.DefaultVideoCommand),
		VideoDuration:  getEnvDuration("VIDEO_DURATION", capture.DefaultVideoDuration),

		AcquireRetries:   getEnvInt("ACQUIRE_RETRIES", 0),
		RetryBaseDelay:   getEnvDuration("RETRY_BASE_DELAY", resilience.DefaultBaseDelay),
		BreakerThreshold: getEnvInt("CAPTURE_BREAKER_THRESHOLD", 0),
		BreakerReset:     getEnvDuration("CAPTURE_BREAKER_RESET", resilience.DefaultResetTimeout),

		HTTPAddr:     getEnv("HTTP_ADDR", ""),
		GRPCAddr:     getEnv("GRPC_ADDR", ""),
		EventHistory: getEnvInt("EVENT_HISTORY", 100),
	}
}

// Overlay applies the keys present in the YAML file at path.
func (c *Config) Overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ConfigInvalid, "read config file %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return apperrors.Wrapf(err, apperrors.ConfigInvalid, "parse config file %s", path)
	}
	return nil
}

// Detection builds the immutable detection config.
func (c *Config) Detection() detect.Config {
	return detect.Config{
		Threshold:   c.Threshold,
		Sensitivity: c.Sensitivity,
		Width:       c.Width,
		Height:      c.Height,
		Settle:      c.Settle,
		Night: detect.NightConfig{
			ShutterMicros: c.NightShutterMicros,
			ISO:           c.NightISO,
			Settle:        c.NightSettle,
			FrameRate:     c.NightFrameRate,
		},
	}
}

// DayMode parses Mode.
func (c *Config) DayMode() (camera.Mode, error) {
	m, err := camera.ParseMode(c.Mode)
	if err != nil {
		return m, apperrors.Wrap(err, apperrors.ConfigInvalid, "mode")
	}
	return m, nil
}

// RetryPolicy returns nil when acquisition failures should terminate the loop.
func (c *Config) RetryPolicy() *resilience.RetryConfig {
	if c.AcquireRetries <= 0 {
		return nil
	}
	rc := resilience.DefaultRetryConfig()
	rc.MaxRetries = c.AcquireRetries
	if c.RetryBaseDelay > 0 {
		rc.BaseDelay = c.RetryBaseDelay
	}
	return &rc
}

// Validate rejects settings the trap cannot start with.
func (c *Config) Validate() error {
	if err := c.Detection().Validate(); err != nil {
		return err
	}
	if _, err := c.DayMode(); err != nil {
		return err
	}
	if !slices.Contains(camera.Backends, c.Backend) {
		return apperrors.Newf(apperrors.ConfigInvalid, "camera backend %q not one of %v", c.Backend, camera.Backends)
	}
	switch c.CaptureBackend {
	case CaptureExec, CaptureWebcam:
	default:
		return apperrors.Newf(apperrors.ConfigInvalid, "capture backend %q not one of [%s %s]", c.CaptureBackend, CaptureExec, CaptureWebcam)
	}
	switch {
	case c.RootDir == "":
		return apperrors.New(apperrors.ConfigInvalid, "root dir must be set")
	case c.VideoDuration <= 0:
		return apperrors.Newf(apperrors.ConfigInvalid, "video duration %v must be positive", c.VideoDuration)
	case c.AcquireRetries < 0 || c.BreakerThreshold < 0:
		return apperrors.New(apperrors.ConfigInvalid, "retry and breaker counts must not be negative")
	case c.EventHistory <= 0:
		return apperrors.Newf(apperrors.ConfigInvalid, "event history %d must be positive", c.EventHistory)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1"
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
