// Package fuzzloop implements the CE driver's main loop state machine
// (spec.md §4.3/§4.5): sync the depot from its source directories, pop
// the next highest-priority input, run the tracker against it while
// the native solver consumes that same input's constraint records in
// parallel, and repeat until told to stop.
//
// Grounded on original_source/.../fuzzer/src/fuzz_loop.rs's
// ce_loop_sync, with the loop shape loosely adapted from
// jhkimqd-chaos-utils/pkg/core/orchestrator/orchestrator.go. There is
// no teardown audit trail; Close only releases the tracking executor.
package fuzzloop

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/jihwankim/ce-driver/pkg/command"
	"github.com/jihwankim/ce-driver/pkg/depot"
	"github.com/jihwankim/ce-driver/pkg/emergency"
	"github.com/jihwankim/ce-driver/pkg/executor"
	"github.com/jihwankim/ce-driver/pkg/reporting"
	"github.com/jihwankim/ce-driver/pkg/solver"
)

// Reserved SHM keys of the solver's constraint-record segment for
// executor instances 2 and 3; the segment's id is handed to both the
// tracker (TAINT_OPTIONS shmid) and RunSolver. Matches the original's
// own fixed 0x9876 / 0x8765 constants (spec.md §6).
const (
	shmKeyExecutorTwo   = 0x9876
	shmKeyExecutorThree = 0x8765
	// shmReserveSize is a large address-space reservation the native
	// solver core maps sparsely; SHM_NORESERVE means the kernel never
	// actually commits it, only hands out address space on demand.
	shmReserveSize = 0xc00000000
)

// RoundBudget bounds each inner tracking pass at 30 wall-clock
// seconds before yielding back to a fresh depot sync, matching the
// original's own hardcoded time_used > 30 check.
const RoundBudget = 30 * time.Second

// Params configures one Loop run.
type Params struct {
	Cmd          *command.Opt
	Depot        *depot.DepotSync
	Sources      depot.SyncDir
	Controller   *emergency.Controller
	FlipStrategy uint32
	FifoMode     bool
	Logger       *reporting.Logger
}

// shmIDForExecutor derives the tracking shmid the way the original
// does: instance 2 and 3 get their own reserved key, everything else
// gets 0 (no dedicated segment — solver calls with shmid 0 are a
// documented no-op for any executor outside the two reserved slots).
func shmIDForExecutor(executorID int) (int32, error) {
	var key int
	switch executorID {
	case 2:
		key = shmKeyExecutorTwo
	case 3:
		key = shmKeyExecutorThree
	default:
		return 0, nil
	}
	id, err := unix.SysvShmGet(key, shmReserveSize, unix.IPC_CREAT|unix.SHM_NORESERVE|0644)
	if err != nil {
		return 0, err
	}
	return int32(id), nil
}

// Loop is the running instance of the tier/fifo tracking loop.
type Loop struct {
	params Params
	shmid  int32
	exec   *executor.ExecutorSync
}

// New builds a Loop, deriving this instance's reserved SHM segment and
// its tracking-only executor.
func New(p Params) (*Loop, error) {
	shmid, err := shmIDForExecutor(p.Cmd.ID)
	if err != nil {
		return nil, err
	}
	exec, err := executor.NewExecutorSync(p.Cmd, int(shmid), p.Logger)
	if err != nil {
		return nil, err
	}
	return &Loop{params: p, shmid: shmid, exec: exec}, nil
}

// Close releases the loop's tracking executor.
func (l *Loop) Close() error {
	return l.exec.Close()
}

func (l *Loop) sync() {
	d := l.params.Depot
	sources := l.params.Sources.TierSources()
	if l.params.FifoMode {
		sources = l.params.Sources.FifoSources()
	}
	for _, src := range sources {
		d.Sync(src)
	}
}

// Run drives the loop until the controller reports it should stop,
// implementing ce_loop_sync's body: depot sync, then repeatedly pop
// the next input, track it while the solver consumes that input's
// constraint records concurrently, and join the solver before moving
// on, until the 30-second round budget is spent or the depot runs dry.
func (l *Loop) Run() {
	for l.params.Controller.Running() {
		l.sync()

		roundStart := time.Now()
		for {
			buf, _, queueID, seedID, isLast, ok := l.params.Depot.GetNextInputRare()
			if !ok {
				break
			}

			done := make(chan struct{})
			go func() {
				defer close(done)
				solver.RunSolver(l.shmid, uintptr(l.params.Cmd.ID), l.params.FlipStrategy, boolToLastOne(isLast))
			}()

			if err := l.exec.Track(seedID, queueID, buf); err != nil && l.params.Logger != nil {
				l.params.Logger.Error("tracking run failed", "seed_id", seedID, "err", err)
			}
			<-done

			if time.Since(roundStart) > RoundBudget {
				if l.params.Logger != nil {
					l.params.Logger.Info("round time budget spent, resyncing")
				}
				break
			}
		}
	}
}

func boolToLastOne(isLast bool) uint32 {
	if isLast {
		return 1
	}
	return 0
}
