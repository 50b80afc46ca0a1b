// Package command builds the spawn template (spec.md §3's "command
// descriptor") shared by every executor instance: the main and
// tracking binaries to run, the tmpfs-backed scratch paths each
// instance writes its current input/forkserver-socket/track-output to,
// and the per-instance clone ("specify") that gives each parallel job
// its own suffixed copy of those paths.
//
// Grounded on original_source/.../fuzzer/src/command.rs.
package command

import (
	"fmt"
	"path/filepath"

	"github.com/jihwankim/ce-driver/pkg/checkdep"
	"github.com/jihwankim/ce-driver/pkg/tmpfs"
)

const (
	tmpDirName       = "tmp"
	inputFileName    = "cur_input"
	forksrvSockName  = "forksrv_socket"
	trackFileName    = "track"
	inputPlaceholder = "@@"
)

// Binary is a program invocation: its path and argv (excluding argv[0]).
type Binary struct {
	Path string
	Args []string
}

// Opt is the command descriptor every executor instance spawns from,
// mirroring the Rust CommandOpt. ID 0 with IsRaw true denotes the
// template created by New; every parallel job works from a Specify(id)
// clone instead.
type Opt struct {
	ID                int
	Main              Binary
	Track             Binary
	TmpDir            string
	OutFile           string
	ForksrvSocketPath string
	TrackPath         string
	IsStdin           bool
	MemLimitMB        uint64
	TimeLimitSec      uint64
	IsRaw             bool
	UsesASan          bool
}

// New builds the shared template: it creates the tmpfs scratch
// directory, derives the scratch file paths, and checks whether the
// main binary was built with ASan/MSan (in which case the memory
// limit is forced to 0, matching the Rust original's own override,
// since ASan's inflated address-space footprint would otherwise trip
// RLIMIT_AS spuriously).
func New(trackTarget string, mainArgs []string, outDir string, memLimitMB, timeLimitSec uint64) (*Opt, error) {
	if len(mainArgs) == 0 {
		return nil, fmt.Errorf("command: main program args must not be empty")
	}

	tmpDir := filepath.Join(outDir, tmpDirName)
	if err := tmpfs.CreateDir(tmpDir); err != nil {
		return nil, fmt.Errorf("command: creating tmp dir: %w", err)
	}

	outFile := filepath.Join(tmpDir, inputFileName)
	forksrvSocketPath := filepath.Join(tmpDir, forksrvSockName)
	trackPath := filepath.Join(tmpDir, trackFileName)

	mainBin := mainArgs[0]
	restArgs := append([]string(nil), mainArgs[1:]...)

	hasInputArg := false
	for _, a := range restArgs {
		if a == inputPlaceholder {
			hasInputArg = true
			break
		}
	}

	usesASan, err := checkdep.CheckASan(mainBin)
	if err != nil {
		return nil, fmt.Errorf("command: checking asan marker: %w", err)
	}
	if usesASan && memLimitMB != 0 {
		memLimitMB = 0
	}

	trackArgs := append([]string(nil), restArgs...)

	return &Opt{
		ID:                0,
		Main:              Binary{Path: mainBin, Args: restArgs},
		Track:             Binary{Path: trackTarget, Args: trackArgs},
		TmpDir:            tmpDir,
		OutFile:           outFile,
		ForksrvSocketPath: forksrvSocketPath,
		TrackPath:         trackPath,
		IsStdin:           !hasInputArg,
		MemLimitMB:        memLimitMB,
		TimeLimitSec:      timeLimitSec,
		IsRaw:             true,
		UsesASan:          usesASan,
	}, nil
}

// Specify returns a clone of o scoped to executor instance id: every
// scratch path gets an "_<id>" suffix and any "@@" placeholder in the
// argv is substituted with the instance's own input file path. The
// clone has IsRaw false, so Close on it is a no-op — only the
// template owns the tmpfs directory's lifetime.
func (o *Opt) Specify(id int) *Opt {
	clone := *o
	clone.ID = id
	clone.IsRaw = false

	newFile := fmt.Sprintf("%s_%d", o.OutFile, id)
	clone.OutFile = newFile
	clone.ForksrvSocketPath = fmt.Sprintf("%s_%d", o.ForksrvSocketPath, id)
	clone.TrackPath = fmt.Sprintf("%s_%d", o.TrackPath, id)

	clone.Main = substitutePlaceholder(o.Main, newFile, o.IsStdin)
	clone.Track = substitutePlaceholder(o.Track, newFile, o.IsStdin)

	return &clone
}

func substitutePlaceholder(b Binary, file string, isStdin bool) Binary {
	if isStdin {
		return Binary{Path: b.Path, Args: append([]string(nil), b.Args...)}
	}
	args := make([]string, len(b.Args))
	for i, a := range b.Args {
		if a == inputPlaceholder {
			args[i] = file
		} else {
			args[i] = a
		}
	}
	return Binary{Path: b.Path, Args: args}
}

// Close releases the tmpfs-backed scratch directory. Only the raw
// template (the value returned by New, not a Specify clone) actually
// owns that directory, matching the Rust original's Drop guard on
// is_raw.
func (o *Opt) Close() error {
	if !o.IsRaw {
		return nil
	}
	return tmpfs.ClearDir(o.TmpDir)
}
