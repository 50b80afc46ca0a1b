package executor

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/jihwankim/ce-driver/pkg/command"
	"github.com/jihwankim/ce-driver/pkg/coverage"
	"github.com/jihwankim/ce-driver/pkg/depot"
	"github.com/jihwankim/ce-driver/pkg/limit"
	"github.com/jihwankim/ce-driver/pkg/pipefd"
	"github.com/jihwankim/ce-driver/pkg/reporting"
	"github.com/jihwankim/ce-driver/pkg/shm"
)

func envMapToList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// runDirect spawns target without going through a forkserver, waits
// up to timeLimit, and classifies the result. Used by the tracking
// path (the track binary never speaks the forkserver protocol) and as
// the fallback when a fast-execution forkserver hasn't been set up.
func runDirect(fd *pipefd.PipeFd, env map[string]string, target command.Binary, isStdin, usesASan bool, memLimitMB uint64, timeLimit time.Duration) (coverage.Status, error) {
	c := exec.Command(target.Path, target.Args...)
	c.Env = envMapToList(env)
	c.Stdout = nil
	c.Stderr = nil
	if isStdin {
		c.Stdin = fd.File()
	}

	if err := limit.WithMemLimit(c, memLimitMB); err != nil {
		return coverage.Error, fmt.Errorf("executor: spawning target: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Wait() }()

	select {
	case err := <-done:
		if err == nil {
			return coverage.Normal, nil
		}
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return coverage.Crash, nil
		}
		ws, ok := exitErr.Sys().(syscall.WaitStatus)
		if !ok {
			return coverage.Crash, nil
		}
		if ws.Signaled() || (usesASan && ws.ExitStatus() == msanErrorCode) {
			return coverage.Crash, nil
		}
		return coverage.Normal, nil
	case <-time.After(timeLimit):
		_ = c.Process.Kill()
		<-done
		return coverage.Timeout, nil
	}
}

func writeTest(fd *pipefd.PipeFd, buf []byte, isStdin bool) error {
	if err := fd.WriteBuf(buf); err != nil {
		return err
	}
	if isStdin {
		return fd.Rewind()
	}
	return nil
}

// ExecutorSync is the tracking-only executor used against the
// sync/fifo depot path (spec.md §4.5): it only ever runs the track
// binary, directly, handing each run's TAINT_OPTIONS encoding to the
// solver side-channel.
//
// Grounded on original_source/.../fuzzer/src/executor.rs's
// ExecutorSync.
type ExecutorSync struct {
	cmd    *command.Opt
	env    map[string]string
	fd     *pipefd.PipeFd
	shmid  int
	logger *reporting.Logger
}

// NewExecutorSync builds the tracking-only executor for instance
// cmd.ID against the given solver SHM segment id.
func NewExecutorSync(cmd *command.Opt, shmid int, logger *reporting.Logger) (*ExecutorSync, error) {
	fd, err := pipefd.Open(cmd.OutFile)
	if err != nil {
		return nil, fmt.Errorf("executor: opening input scratch file: %w", err)
	}
	env := baseEnv(os.Getenv(envLDLibraryPath))
	return &ExecutorSync{cmd: cmd, env: env, fd: fd, shmid: shmid, logger: logger}, nil
}

// Track writes buf as the current input, encodes the solver's
// TAINT_OPTIONS string, and runs the track binary directly, logging
// (but not propagating) anything other than a Normal exit.
func (e *ExecutorSync) Track(id uint64, qid uint32, buf []byte) error {
	taintFile := e.cmd.OutFile
	if e.cmd.IsStdin {
		taintFile = "stdin"
	}
	e.env[envTaintOptions] = fmt.Sprintf("taint_file=%s tid=%d shmid=%d pipeid=%d inputid=%d",
		taintFile, qid, e.shmid, e.cmd.ID, id)

	if e.logger != nil {
		e.logger.Debug("tracking input", "id", id, "taint_options", e.env[envTaintOptions])
	}

	if err := writeTest(e.fd, buf, e.cmd.IsStdin); err != nil {
		return err
	}

	status, err := runDirect(e.fd, e.env, e.cmd.Track, e.cmd.IsStdin, e.cmd.UsesASan, MemLimitTrack, TimeLimitTrack)
	if err != nil {
		return err
	}
	if status != coverage.Normal && e.logger != nil {
		e.logger.Warn("crash or hang while tracking", "status", status, "id", id)
	}
	return nil
}

// Close releases the instance's scratch file handle.
func (e *ExecutorSync) Close() error {
	return e.fd.Close()
}

// Executor is the full fast-execution executor (spec.md §4.2/§4.4): it
// drives the main binary through a forkserver, folds the resulting
// trace into the coverage engine, and saves novel inputs to the local
// depot.
//
// Grounded on original_source/.../fuzzer/src/executor.rs's Executor.
type Executor struct {
	cmd        *command.Opt
	branches   *coverage.Branches
	traceSHM   *shm.SHM[coverage.BranchBuf]
	pathSHM    *shm.SHM[coverage.PathHash]
	env        map[string]string
	forksrv    *Forksrv
	local      *depot.Local
	fd         *pipefd.PipeFd
	tmoutCount int
	hasNewPath bool
	shmid      int
	logger     *reporting.Logger
}

// NewExecutor builds the full executor for instance cmd.ID, attaching
// a fresh coverage trace/path-hash SHM pair and binding the forkserver
// control socket.
func NewExecutor(cmd *command.Opt, global *coverage.GlobalBranches, local *depot.Local, shmid int, logger *reporting.Logger) (*Executor, error) {
	fd, err := pipefd.Open(cmd.OutFile)
	if err != nil {
		return nil, fmt.Errorf("executor: opening input scratch file: %w", err)
	}

	traceSHM, err := shm.New[coverage.BranchBuf]()
	if err != nil {
		return nil, fmt.Errorf("executor: allocating trace shm: %w", err)
	}
	pathSHM, err := shm.New[coverage.PathHash]()
	if err != nil {
		traceSHM.Close()
		return nil, fmt.Errorf("executor: allocating path hash shm: %w", err)
	}

	env := baseEnv(os.Getenv(envLDLibraryPath))
	env[envBranchesSHMID] = strconv.Itoa(traceSHM.ID())
	env[envPathHashSHMID] = strconv.Itoa(pathSHM.ID())

	fs, err := NewForksrv(cmd.ForksrvSocketPath, cmd.Main, env, fd, cmd.IsStdin, cmd.UsesASan,
		time.Duration(cmd.TimeLimitSec)*time.Second, cmd.MemLimitMB)
	if err != nil {
		traceSHM.Close()
		pathSHM.Close()
		return nil, fmt.Errorf("executor: starting forkserver: %w", err)
	}

	return &Executor{
		cmd:      cmd,
		branches: coverage.NewBranches(global),
		traceSHM: traceSHM,
		pathSHM:  pathSHM,
		env:      env,
		forksrv:  fs,
		local:    local,
		fd:       fd,
		shmid:    shmid,
		logger:   logger,
	}, nil
}

// RebindForksrv tears down and re-establishes the forkserver
// connection, used after check_timeout observes a protocol-level
// Error (spec.md §4.4's rebind path).
func (e *Executor) RebindForksrv() error {
	if e.forksrv != nil {
		_ = e.forksrv.Close()
		e.forksrv = nil
	}
	fs, err := NewForksrv(e.cmd.ForksrvSocketPath, e.cmd.Main, e.env, e.fd, e.cmd.IsStdin, e.cmd.UsesASan,
		time.Duration(e.cmd.TimeLimitSec)*time.Second, e.cmd.MemLimitMB)
	if err != nil {
		return fmt.Errorf("executor: rebinding forkserver: %w", err)
	}
	e.forksrv = fs
	return nil
}

// Track runs the track binary directly against buf, the same as
// ExecutorSync.Track but against this executor's own SHM-backed
// solver channel id.
func (e *Executor) Track(id uint64, buf []byte) error {
	taintFile := e.cmd.OutFile
	if e.cmd.IsStdin {
		taintFile = "stdin"
	}
	e.env[envTaintOptions] = fmt.Sprintf("taint_file=%s tid=%d shmid=%d pipeid=%d inputid=%d",
		taintFile, id, e.shmid, e.cmd.ID, id)

	if err := writeTest(e.fd, buf, e.cmd.IsStdin); err != nil {
		return err
	}
	status, err := runDirect(e.fd, e.env, e.cmd.Track, e.cmd.IsStdin, e.cmd.UsesASan, MemLimitTrack, TimeLimitTrack)
	if err != nil {
		return err
	}
	if status != coverage.Normal && e.logger != nil {
		e.logger.Warn("crash or hang while tracking", "status", status, "id", id)
	}
	return nil
}

func (e *Executor) runInner(buf []byte) coverage.Status {
	if err := writeTest(e.fd, buf, e.cmd.IsStdin); err != nil {
		if e.logger != nil {
			e.logger.Error("failed to write current input", "err", err)
		}
		return coverage.Error
	}
	e.traceSHM.Clear()
	e.pathSHM.Clear()

	if e.forksrv != nil {
		return e.forksrv.Run(time.Duration(e.cmd.TimeLimitSec) * time.Second)
	}
	if e.logger != nil {
		e.logger.Warn("run does not go through forksrv")
	}
	status, err := runDirect(e.fd, e.env, e.cmd.Main, e.cmd.IsStdin, e.cmd.UsesASan, e.cmd.MemLimitMB,
		time.Duration(e.cmd.TimeLimitSec)*time.Second)
	if err != nil {
		return coverage.Error
	}
	return status
}

func (e *Executor) doIfHasNew(buf []byte, status coverage.Status) (bool, uint64) {
	updates, rare := e.branches.Observe(e.traceSHM.Ptr())
	pathHash := uint64(*e.pathSHM.Ptr())

	novelty := e.branches.HasNewUniquePath(status, updates, pathHash)
	if novelty == coverage.NoveltyNone {
		return false, 0
	}

	e.hasNewPath = true
	var newID uint64
	if e.local != nil {
		newID = e.local.SaveWithRarity(status, buf, novelty, float32(rare)/10000)
	}
	return true, newID
}

// checkTimeout applies spec.md §4.4's escalation: a protocol Error
// forces a forkserver rebind and is treated as a Timeout; TmoutSkip
// consecutive timeouts escalate to Skip.
func (e *Executor) checkTimeout(status coverage.Status) coverage.Status {
	ret := status
	if ret == coverage.Error {
		if err := e.RebindForksrv(); err != nil && e.logger != nil {
			e.logger.Error("failed to rebind forkserver", "err", err)
		}
		ret = coverage.Timeout
	}

	if ret == coverage.Timeout {
		e.tmoutCount++
		if e.tmoutCount >= TmoutSkip {
			ret = coverage.Skip
			e.tmoutCount = 0
		}
	} else {
		e.tmoutCount = 0
	}
	return ret
}

// Run executes buf through the forkserver once, saving it to the
// local depot if it proved novel (spec.md §4.2/§4.4's run()).
func (e *Executor) Run(buf []byte) coverage.Status {
	e.hasNewPath = false
	status := e.runInner(buf)
	e.doIfHasNew(buf, status)
	return e.checkTimeout(status)
}

// RunSync is Run, but also returns whether the input was novel and
// its assigned depot id, for callers that need to react to novelty
// directly rather than only through the local depot's own queue.
func (e *Executor) RunSync(buf []byte) (bool, uint64, coverage.Status) {
	e.hasNewPath = false
	status := e.runInner(buf)
	isNew, newID := e.doIfHasNew(buf, status)
	return isNew, newID, e.checkTimeout(status)
}

// RunNoRun unconditionally saves buf to the local depot without
// executing it — used to seed the depot with the initial corpus.
func (e *Executor) RunNoRun(buf []byte) {
	if e.local != nil {
		e.local.Save(coverage.Normal, buf)
	}
}

// RandomInputBuf returns the contents of a uniformly-random input
// already present in the local depot.
func (e *Executor) RandomInputBuf() ([]byte, error) {
	if e.local == nil {
		return nil, fmt.Errorf("executor: no local depot configured")
	}
	return e.local.GetInputBuf(e.local.NextRandom())
}

// Close tears down the forkserver, scratch file, and SHM segments
// owned by this executor.
func (e *Executor) Close() error {
	if e.forksrv != nil {
		_ = e.forksrv.Close()
	}
	_ = e.fd.Close()
	e.traceSHM.Close()
	e.pathSHM.Close()
	return nil
}
