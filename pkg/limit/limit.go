// Package limit applies the resource policy of spec.md §5 to a
// spawned target process: a memory cap via RLIMIT_AS, disabled core
// dumps via a zeroed RLIMIT_CORE, and session detachment via setsid.
//
// Go's os/exec has no equivalent of Rust's Command::pre_exec (a
// closure run in the forked child before exec()); the original
// implementation (original_source/.../limit.rs) uses exactly that to
// set rlimits only for the child. Since POSIX rlimits are inherited
// across fork, the same effect is achieved here by narrowing this
// process's own rlimits immediately before Start() — after fork the
// child has already inherited the lowered limit — and restoring the
// driver's own limits immediately afterward.
package limit

import (
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Setsid marks cmd to run in its own session, detached from the
// driver's controlling terminal (spec.md §4.4).
func Setsid(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true
}

// WithMemLimit starts cmd with RLIMIT_AS capped to memLimitMB MiB (0 =
// unlimited) and RLIMIT_CORE zeroed, restoring the driver's own
// rlimits once the child has been forked.
func WithMemLimit(cmd *exec.Cmd, memLimitMB uint64) error {
	Setsid(cmd)

	var savedAS, savedCore unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &savedAS); err != nil {
		return fmt.Errorf("getrlimit(AS): %w", err)
	}
	if err := unix.Getrlimit(unix.RLIMIT_CORE, &savedCore); err != nil {
		return fmt.Errorf("getrlimit(CORE): %w", err)
	}

	// Only the soft limits are lowered: a lowered hard limit could not
	// be raised back by an unprivileged driver afterward.
	if memLimitMB > 0 {
		sizeBytes := memLimitMB << 20
		if sizeBytes > savedAS.Max {
			sizeBytes = savedAS.Max
		}
		r := unix.Rlimit{Cur: sizeBytes, Max: savedAS.Max}
		if err := unix.Setrlimit(unix.RLIMIT_AS, &r); err != nil {
			return fmt.Errorf("setrlimit(AS): %w", err)
		}
	}
	zero := unix.Rlimit{Cur: 0, Max: savedCore.Max}
	if err := unix.Setrlimit(unix.RLIMIT_CORE, &zero); err != nil {
		return fmt.Errorf("setrlimit(CORE): %w", err)
	}

	startErr := cmd.Start()

	_ = unix.Setrlimit(unix.RLIMIT_AS, &savedAS)
	_ = unix.Setrlimit(unix.RLIMIT_CORE, &savedCore)

	return startErr
}
