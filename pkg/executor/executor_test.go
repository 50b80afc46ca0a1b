package executor

import (
	"testing"

	"github.com/jihwankim/ce-driver/pkg/command"
	"github.com/jihwankim/ce-driver/pkg/coverage"
)

func TestCheckTimeoutEscalatesAfterThreeConsecutiveTimeouts(t *testing.T) {
	e := &Executor{}

	for i := 0; i < TmoutSkip-1; i++ {
		if got := e.checkTimeout(coverage.Timeout); got != coverage.Timeout {
			t.Fatalf("iteration %d: status = %v, want Timeout", i, got)
		}
	}
	if got := e.checkTimeout(coverage.Timeout); got != coverage.Skip {
		t.Fatalf("expected escalation to Skip on the %dth consecutive timeout, got %v", TmoutSkip, got)
	}
	if e.tmoutCount != 0 {
		t.Fatalf("expected timeout counter to reset after escalating, got %d", e.tmoutCount)
	}
}

func TestCheckTimeoutResetsOnNormal(t *testing.T) {
	e := &Executor{}

	e.checkTimeout(coverage.Timeout)
	e.checkTimeout(coverage.Timeout)
	if got := e.checkTimeout(coverage.Normal); got != coverage.Normal {
		t.Fatalf("status = %v, want Normal", got)
	}
	if e.tmoutCount != 0 {
		t.Fatalf("expected counter reset after a Normal run, got %d", e.tmoutCount)
	}
	if got := e.checkTimeout(coverage.Timeout); got != coverage.Timeout {
		t.Fatalf("expected the count to have restarted from zero, got %v", got)
	}
}

func TestCheckTimeoutTreatsErrorAsTimeout(t *testing.T) {
	// RebindForksrv will fail against this empty command descriptor
	// (no real binary to spawn), but checkTimeout must still downgrade
	// Error to Timeout for the caller regardless of rebind success.
	e := &Executor{cmd: &command.Opt{}}

	got := e.checkTimeout(coverage.Error)
	if got != coverage.Timeout {
		t.Fatalf("status = %v, want Timeout", got)
	}
}
