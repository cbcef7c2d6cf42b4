package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordComparison(t *testing.T) {
	c := New()

	c.RecordComparison(0, false)
	c.RecordComparison(12, false)
	c.RecordComparison(301, true)

	if got := testutil.ToFloat64(c.comparisons); got != 3 {
		t.Errorf("comparisons = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.motionEvents); got != 1 {
		t.Errorf("motion events = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.changedPixels); got != 1 {
		t.Errorf("changed pixels series = %d, want 1", got)
	}
}

func TestRecordAcquire(t *testing.T) {
	c := New()

	c.RecordAcquired(600 * time.Millisecond)
	c.RecordAcquired(8 * time.Second)
	c.RecordAcquireFailure(true)
	c.RecordAcquireFailure(true)
	c.RecordAcquireFailure(false)

	if got := testutil.ToFloat64(c.framesAcquired); got != 2 {
		t.Errorf("frames = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.acquireFailures.WithLabelValues("retried")); got != 2 {
		t.Errorf("retried failures = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.acquireFailures.WithLabelValues("fatal")); got != 1 {
		t.Errorf("fatal failures = %v, want 1", got)
	}
}

func TestSetState(t *testing.T) {
	c := New()
	states := []string{"awaiting_baseline", "comparing"}

	c.SetState("awaiting_baseline", states...)
	c.SetState("comparing", states...)

	if got := testutil.ToFloat64(c.loopState.WithLabelValues("comparing")); got != 1 {
		t.Errorf("comparing = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.loopState.WithLabelValues("awaiting_baseline")); got != 0 {
		t.Errorf("awaiting_baseline = %v, want 0", got)
	}
}

func TestHandler(t *testing.T) {
	c := New()
	c.RecordComparison(301, true)
	c.RecordAction(true)
	c.RecordCapture()
	c.SetBreakerOpen(true)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, name := range []string{
		"trapcam_motion_events_total 1",
		"trapcam_action_failures_total 1",
		"trapcam_captures_total 1",
		"trapcam_capture_breaker_open 1",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("exposition missing %q", name)
		}
	}
}
