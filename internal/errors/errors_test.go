package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorString(t *testing.T) {
	cause := stderrors.New("device busy")
	err := Wrap(cause, Hardware, "open camera").WithMetadata("device", "/dev/video0")

	s := err.Error()
	for _, want := range []string{"[HARDWARE]", "open camera", "/dev/video0", "caused by: device busy"} {
		if !strings.Contains(s, want) {
			t.Errorf("Error() = %q, missing %q", s, want)
		}
	}
}

func TestUnwrap(t *testing.T) {
	err := Wrap(context.Canceled, Cancelled, "stopped")
	if !stderrors.Is(err, context.Canceled) {
		t.Error("errors.Is should see the cause")
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	inner := Newf(DimensionMismatch, "frame %dx%d", 1, 2)
	outer := fmt.Errorf("compare: %w", inner)

	if !IsCode(outer, DimensionMismatch) {
		t.Error("IsCode should unwrap fmt.Errorf chains")
	}
	if IsCode(outer, Hardware) {
		t.Error("IsCode matched the wrong code")
	}
	if IsCode(stderrors.New("plain"), Hardware) {
		t.Error("plain errors carry no code")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(Hardware, "capture"), true},
		{fmt.Errorf("acquire: %w", New(Hardware, "capture")), true},
		{New(ActionFailed, "raspistill"), false},
		{New(DimensionMismatch, "size"), false},
		{stderrors.New("other"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestCodeString(t *testing.T) {
	if got := ActionFailed.String(); got != "ACTION_FAILED" {
		t.Errorf("String() = %q, want ACTION_FAILED", got)
	}
	if got := ErrorCode(99).String(); got != "ErrorCode(99)" {
		t.Errorf("String() = %q, want ErrorCode(99)", got)
	}
}

func TestGRPCRoundTrip(t *testing.T) {
	err := New(Hardware, "capture failed").WithMetadata("backend", "v4l2")

	st := err.GRPCStatus()
	if st.Code() != codes.Unavailable {
		t.Errorf("GRPCCode = %v, want Unavailable", st.Code())
	}

	back := FromGRPCError(st.Err())
	if back.Code != Hardware {
		t.Errorf("round trip code = %v, want HARDWARE", back.Code)
	}
	if back.Metadata["backend"] != "v4l2" {
		t.Errorf("round trip metadata = %v, want backend=v4l2", back.Metadata)
	}
}

func TestFromGRPCErrorFallback(t *testing.T) {
	back := FromGRPCError(status.Error(codes.FailedPrecondition, "shape"))
	if back.Code != DimensionMismatch {
		t.Errorf("fallback code = %v, want DIMENSION_MISMATCH", back.Code)
	}

	plain := FromGRPCError(stderrors.New("not grpc"))
	if plain.Code != Unknown {
		t.Errorf("plain code = %v, want UNKNOWN", plain.Code)
	}
}
