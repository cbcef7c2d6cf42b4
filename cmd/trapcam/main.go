// trapcam watches a camera for motion and captures a still and a clip when it sees some
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/trapcam/internal/config"
)

var flags struct {
	configFile string
	mode       string
	backend    string
	verbose    bool
}

var rootCmd = &cobra.Command{
	Use:           "trapcam",
	Short:         "Motion-triggered camera trap",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	pf.StringVar(&flags.mode, "mode", "", "lighting mode: day or night")
	pf.StringVar(&flags.backend, "backend", "", "camera backend: rpicam, v4l2 or gocv")
	pf.BoolVarP(&flags.verbose, "verbose", "v", true, "log every comparison")

	rootCmd.AddCommand(runCmd, devicesCmd, checkCmd, healthCmd)
}

// loadConfig reads the configuration and applies any flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.configFile != "" {
		if err := cfg.Overlay(flags.configFile); err != nil {
			return nil, err
		}
	}
	f := cmd.Flags()
	if f.Changed("mode") {
		cfg.Mode = flags.mode
	}
	if f.Changed("backend") {
		cfg.Backend = flags.backend
	}
	if f.Changed("verbose") {
		cfg.Verbose = flags.verbose
	}
	setupLogging(cfg.Verbose)
	return cfg, nil
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func main() {
	setupLogging(true)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exit(os.Stdout, err))
}

// exit logs err and prints the banner on every way out, Ctrl-C included.
func exit(w io.Writer, err error) int {
	code := 0
	if err != nil {
		slog.Error("trapcam failed", "error", err)
		code = 1
	}
	fmt.Fprintln(w, "Exiting Program")
	return code
}
