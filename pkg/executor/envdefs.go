// Package executor drives target binaries through the forkserver
// protocol of spec.md §4.4: it sets up the control socket, classifies
// each run's exit status, and folds coverage novelty back through
// pkg/coverage and pkg/depot.
//
// Grounded on original_source/.../fuzzer/src/executor.rs and
// forksrv.rs; env var names ported from
// original_source/.../common/src/defs.rs.
package executor

import "time"

const (
	envTrackOutput       = "ANGORA_TRACK_OUTPUT"
	envBranchesSHMID     = "ANGORA_BRANCHES_SHM_ID"
	envPathHashSHMID     = "PATH_HASH_SHM_ID"
	envLDLibraryPath     = "LD_LIBRARY_PATH"
	envASanOptionsVar    = "ASAN_OPTIONS"
	envMSanOptionsVar    = "MSAN_OPTIONS"
	envEnableForksrv     = "ANGORA_ENABLE_FORKSRV"
	envForksrvSocketPath = "ANGORA_FORKSRV_SOCKET_PATH"
	envTaintOptions      = "TAINT_OPTIONS"

	asanOptionsContent = "abort_on_error=1:detect_leaks=0:symbolize=0:allocator_may_return_null=1"
	msanOptionsContent = "exit_code=86:symbolize=0:abort_on_error=1:allocator_may_return_null=1:msan_track_origins=0"
	msanErrorCode      = 86
)

// TmoutSkip is the number of consecutive timeouts that escalate a run
// to coverage.Skip (spec.md §4.4, §8 S4).
const TmoutSkip = 3

// MemLimitTrack and TimeLimitTrack bound every tracking run
// regardless of the fast-execution limits configured for the main
// binary, matching the original's own fixed tracking budget.
const (
	MemLimitTrack  uint64        = 0
	TimeLimitTrack time.Duration = 180 * time.Second
)

func baseEnv(ldLibrary string) map[string]string {
	return map[string]string{
		envASanOptionsVar: asanOptionsContent,
		envMSanOptionsVar: msanOptionsContent,
		envLDLibraryPath:  ldLibrary,
	}
}
