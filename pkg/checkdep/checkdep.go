// Package checkdep runs the pre-flight checks spec.md §7 requires
// before the fuzz loop starts: the input/output directories are
// usable, the track binary is an existing regular file that is
// actually instrumented for taint tracking, and the host isn't about
// to misreport crashes as timeouts because of a core-dump handler
// pipe. The execute permission bit is not checked.
//
// Grounded on original_source/.../fuzzer/src/check_dep.rs. The Rust
// original mmaps the binary and does a Boyer-Moore-ish substring scan
// with memmap+twoway; none of the five example repos in the pack pulls
// in an mmap or substring-search dependency, so this reads the binary
// once at startup with the standard library instead — these are
// modest compiled binaries scanned a single time, not a hot path.
package checkdep

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

const corePatternFile = "/proc/sys/kernel/core_pattern"

const crashHandlingWarning = `If your system is configured to pipe core dumps to a handler,
there will be an extended delay after the target crashes, which can
make a crash be misinterpreted as a timeout.
Disable it with:
  echo core | sudo tee /proc/sys/kernel/core_pattern`

// CheckCrashHandling fails if core_pattern pipes dumps to a handler
// program, which would otherwise make genuine crashes look like
// timeouts to the executor.
func CheckCrashHandling() error {
	data, err := os.ReadFile(corePatternFile)
	if err != nil {
		// Not every host exposes this file (e.g. inside some
		// containers); treat it as non-fatal rather than aborting a
		// fuzzing run over an unreadable proc file.
		return nil
	}
	if strings.HasPrefix(string(data), "|") {
		return fmt.Errorf("core_pattern pipes to a handler: %s", crashHandlingWarning)
	}
	return nil
}

// CheckTargetBinary fails unless target names an existing, regular
// file.
func CheckTargetBinary(target string) error {
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("invalid executable file %q: %w", target, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("invalid executable file %q: not a regular file", target)
	}
	return nil
}

func containsMarker(target, marker string) (bool, error) {
	data, err := os.ReadFile(target)
	if err != nil {
		return false, fmt.Errorf("reading %q: %w", target, err)
	}
	return bytes.Contains(data, []byte(marker)), nil
}

// CheckASan reports whether target was built against ASan or MSan,
// in which case the spec's §5 resource policy zeroes the memory
// limit rather than risking ASan's own inflated address-space use
// tripping RLIMIT_AS spuriously.
func CheckASan(target string) (bool, error) {
	asan, err := containsMarker(target, "libasan.so")
	if err != nil {
		return false, err
	}
	if asan {
		return true, nil
	}
	return containsMarker(target, "__msan_init")
}

// CheckTrackLLVM fails unless target carries the taint-tracking
// instrumentation marker, i.e. it was actually built as a tracking
// binary rather than the plain fast-execution one.
func CheckTrackLLVM(target string) error {
	if err := CheckTargetBinary(target); err != nil {
		return err
	}
	ok, err := containsMarker(target, "__taint_trace_cmp")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%q is not built with taint tracking instrumentation", target)
	}
	return nil
}

// CheckIODir validates the input/output directory pair: a resumed run
// (inDir == "-") requires an existing output directory; a fresh run
// requires an existing input directory.
func CheckIODir(inDir, outDir string) error {
	if inDir == "-" {
		if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
			return fmt.Errorf("original output directory %q is required to resume fuzzing", outDir)
		}
		return nil
	}
	info, err := os.Stat(inDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("input dir %q does not exist or is not a directory", inDir)
	}
	return nil
}

// CheckAll runs the full pre-flight sequence spec.md §7 prescribes
// before the fuzz loop may start: directory layout, crash-handling
// configuration, and the track binary's instrumentation.
func CheckAll(inDir, outDir, trackBinary string) error {
	if err := CheckIODir(inDir, outDir); err != nil {
		return err
	}
	if err := CheckCrashHandling(); err != nil {
		return err
	}
	return CheckTrackLLVM(trackBinary)
}
