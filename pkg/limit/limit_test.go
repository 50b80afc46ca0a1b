package limit

import (
	"os/exec"
	"testing"

	"golang.org/x/sys/unix"
)

func TestSetsidSetsSysProcAttr(t *testing.T) {
	cmd := exec.Command("true")
	Setsid(cmd)
	if cmd.SysProcAttr == nil || !cmd.SysProcAttr.Setsid {
		t.Fatal("expected SysProcAttr.Setsid to be set")
	}
}

func TestWithMemLimitRestoresDriverRlimits(t *testing.T) {
	var before unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &before); err != nil {
		t.Fatalf("Getrlimit(AS): %v", err)
	}

	cmd := exec.Command("true")
	if err := WithMemLimit(cmd, 64); err != nil {
		t.Fatalf("WithMemLimit: %v", err)
	}
	_ = cmd.Wait()

	var after unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &after); err != nil {
		t.Fatalf("Getrlimit(AS): %v", err)
	}
	if before != after {
		t.Fatalf("driver's own RLIMIT_AS not restored: before=%+v after=%+v", before, after)
	}
}

func TestWithMemLimitZeroLeavesASUnbounded(t *testing.T) {
	var before unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &before); err != nil {
		t.Fatalf("Getrlimit(AS): %v", err)
	}

	cmd := exec.Command("true")
	if err := WithMemLimit(cmd, 0); err != nil {
		t.Fatalf("WithMemLimit: %v", err)
	}
	_ = cmd.Wait()

	var after unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &after); err != nil {
		t.Fatalf("Getrlimit(AS): %v", err)
	}
	if before != after {
		t.Fatalf("driver's own RLIMIT_AS not restored: before=%+v after=%+v", before, after)
	}
}
