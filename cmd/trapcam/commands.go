package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/GriffinCanCode/trapcam/internal/camera"
	"github.com/GriffinCanCode/trapcam/internal/detect"
	apperrors "github.com/GriffinCanCode/trapcam/internal/errors"
	"github.com/GriffinCanCode/trapcam/internal/health"
	"github.com/GriffinCanCode/trapcam/internal/orchestrator"
)

const healthTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch for motion until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		m, err := orchestrator.New(cfg)
		if err != nil {
			return err
		}
		slog.Info("trapcam starting",
			"backend", cfg.Backend,
			"capture", cfg.CaptureBackend,
			"root", cfg.RootDir,
			"http", cfg.HTTPAddr,
			"grpc", cfg.GRPCAddr)
		if err := m.Run(cmd.Context()); err != nil {
			return err
		}
		slog.Info("shutdown complete")
		return nil
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices [path]",
	Short: "List the formats and frame sizes a V4L2 device offers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path := cfg.Device
		if len(args) == 1 {
			path = args[0]
		}
		infos, err := camera.ListV4L2(path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, path)
		for _, info := range infos {
			fmt.Fprintf(out, "  %-24s %#08x  %s\n", info.Name, info.Code, strings.Join(info.Sizes, " "))
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Acquire two frames, compare them once and print the result",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		mode, err := cfg.DayMode()
		if err != nil {
			return err
		}
		open, err := camera.NewOpener(cfg.Backend, cfg.Device, cfg.PreviewCommand)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		src := camera.NewSource(open)
		dc := cfg.Detection()
		prev, err := src.Acquire(ctx, mode, dc)
		if err != nil {
			return err
		}
		curr, err := src.Acquire(ctx, mode, dc)
		if err != nil {
			return err
		}
		ev, err := detect.Compare(prev, curr, dc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "mode=%s backend=%s changed=%d sensitivity=%d motion=%v\n",
			mode, cfg.Backend, ev.ChangedPixels, dc.Sensitivity, ev.Motion)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health [addr]",
	Short: "Ask a running trap's gRPC health service how the detector is doing",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		addr := cfg.GRPCAddr
		if len(args) == 1 {
			addr = args[0]
		}
		if addr == "" {
			return apperrors.New(apperrors.ConfigInvalid, "no gRPC address: set GRPC_ADDR or pass one")
		}

		resp, err := checkHealth(cmd.Context(), addr)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), protojson.Format(resp))
		return nil
	},
}

// checkHealth queries the detector service at addr. RPC failures come back as
// AppErrors decoded from the status detail, so a camera fault reads as HARDWARE.
func checkHealth(ctx context.Context, addr string, opts ...grpc.DialOption) (*healthpb.HealthCheckResponse, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ConfigInvalid, "dial %s", addr)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: health.Service})
	if err != nil {
		return nil, apperrors.FromGRPCError(err)
	}
	return resp, nil
}
