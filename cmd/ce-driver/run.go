package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jihwankim/ce-driver/pkg/checkdep"
	"github.com/jihwankim/ce-driver/pkg/command"
	"github.com/jihwankim/ce-driver/pkg/config"
	"github.com/jihwankim/ce-driver/pkg/coverage"
	"github.com/jihwankim/ce-driver/pkg/depot"
	"github.com/jihwankim/ce-driver/pkg/emergency"
	"github.com/jihwankim/ce-driver/pkg/fuzzloop"
	"github.com/jihwankim/ce-driver/pkg/metrics"
	"github.com/jihwankim/ce-driver/pkg/reporting"
	"github.com/jihwankim/ce-driver/pkg/solver"
)

var runCmd = &cobra.Command{
	Use:   "run -- TARGET [ARGS...]",
	Args:  cobra.MinimumNArgs(1),
	Short: "Run the concolic-execution fuzz loop against a target",
	Long: `Syncs seeds from the configured sibling directories, pops the
highest-priority one, and hands it to the tracking target and the
external solver in parallel, round after round, until interrupted.`,
	RunE: runFuzzLoop,
}

func init() {
	runCmd.Flags().StringP("input", "i", "", "input seed directory (or \"-\" to resume) (-i)")
	runCmd.Flags().StringP("output", "o", "", "output root directory (-o)")
	runCmd.Flags().StringP("track", "t", "", "tracking-mode target binary (required) (-t)")
	runCmd.Flags().Uint64P("mem-limit", "M", 0, "memory limit in MiB, 0 = unlimited (-M)")
	runCmd.Flags().Uint64P("time-limit", "T", 0, "fast-run time limit in seconds (-T)")
	runCmd.Flags().IntP("jobs", "j", 0, "thread jobs, reserved (-j)")
	runCmd.Flags().BoolP("sync", "S", false, "sync with sibling AFL/grader directories (-S)")
	runCmd.Flags().Uint32P("flip-strategy", "b", 0, "solver flip strategy (-b)")
	runCmd.Flags().Uint32P("fifo", "f", 0, "fifo sync mode, 0 = tier sync (-f)")
	runCmd.Flags().Uint32P("corpus-count", "c", 0, "initial corpus count handed to the solver core (-c)")
	runCmd.Flags().String("metrics-addr", "", "address to serve /metrics on, empty disables it")
}

func runFuzzLoop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlagOverrides(cmd, cfg, args)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logLevel := reporting.LogLevelInfo
	if verbose {
		logLevel = reporting.LogLevelDebug
	}
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  logLevel,
		Format: reporting.LogFormat(cfg.Framework.LogFormat),
		Output: os.Stdout,
	})
	logger.Info("ce-driver starting", "version", version)

	if err := checkdep.CheckAll(cfg.Target.InputDir, cfg.Target.OutputDir, cfg.Target.TrackTarget); err != nil {
		return fmt.Errorf("pre-flight check failed: %w", err)
	}

	controller := emergency.New(emergency.Config{
		StopFile:       cfg.Emergency.StopFile,
		EnableStopFile: cfg.Emergency.EnableStopFile,
		Logger:         logger,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	controller.Start(ctx)

	template, err := command.New(cfg.Target.TrackTarget, args, cfg.Target.OutputDir, cfg.Target.MemLimitMB, cfg.Target.TimeLimitSec)
	if err != nil {
		return fmt.Errorf("building command descriptor: %w", err)
	}
	defer template.Close()
	// Instance 2, matching original_source/.../fuzz_main.rs's own
	// fuzz_main_seq, which always drives ce_loop_sync off
	// command_option.specify(2) — the id that derives the 0x9876
	// reserved solver SHM segment (spec.md §4.5).
	instance := template.Specify(2)

	local, err := depot.NewLocal(cfg.Target.OutputDir, logger)
	if err != nil {
		return fmt.Errorf("creating local depot: %w", err)
	}

	depotSync := depot.NewDepotSync(logger)
	// The sibling sync directories are always created and always synced
	// every round, matching original_source/.../fuzz_main.rs's own
	// fuzz_main_seq: its sync_afl parameter is accepted but never
	// actually gates depot construction or the ce_loop_sync call.
	// cfg.Sync.SyncWithAFL is carried for CLI-surface fidelity (-S) and
	// logged, not used to skip sync.
	if !cfg.Sync.SyncWithAFL {
		logger.Debug("-S not set; sibling-directory sync still runs every round, matching the original driver")
	}
	sources, err := depot.NewSyncDir(cfg.Target.OutputDir)
	if err != nil {
		return fmt.Errorf("creating sync directories: %w", err)
	}

	if cfg.Target.InputDir != "-" {
		seeded, err := seedInitialCorpus(cfg.Target.InputDir, local)
		if err != nil {
			return fmt.Errorf("seeding initial corpus: %w", err)
		}
		logger.Info("seeded initial corpus", "count", seeded)
	}

	global := coverage.NewGlobalBranches()
	solver.InitCore(true, cfg.Execution.InitialCorpusCount)

	var metricsRegistry *metrics.Registry
	if cfg.Metrics.Addr != "" {
		metricsRegistry = metrics.NewRegistry()
		go func() {
			if err := metricsRegistry.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		go reportMetricsPeriodically(ctx, metricsRegistry, global, depotSync)
	}

	loop, err := fuzzloop.New(fuzzloop.Params{
		Cmd:          instance,
		Depot:        depotSync,
		Sources:      sources,
		Controller:   controller,
		FlipStrategy: cfg.Execution.FlipStrategy,
		FifoMode:     cfg.Sync.FifoMode,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("starting fuzz loop: %w", err)
	}
	defer loop.Close()

	startTime := time.Now()
	loop.Run()
	endTime := time.Now()

	summary := &reporting.RunSummary{
		RunID:           fmt.Sprintf("%d", startTime.Unix()),
		StartTime:       startTime,
		EndTime:         endTime,
		Duration:        endTime.Sub(startTime).String(),
		Status:          reporting.RunStatusStopped,
		CoverageDensity: global.Density(),
		QueueDepth:      depotSync.Len(),
	}

	storage, err := reporting.NewStorage(cfg.Target.OutputDir, 10, logger)
	if err != nil {
		logger.Warn("failed to create run summary storage", "error", err)
	} else if _, err := storage.SaveSummary(summary); err != nil {
		logger.Warn("failed to save run summary", "error", err)
	}

	reporting.NewProgressReporter(reporting.FormatText, logger).ReportRunCompleted(summary)
	logger.Info("ce-driver stopped")
	return nil
}

func applyRunFlagOverrides(cmd *cobra.Command, cfg *config.Config, args []string) {
	if v, _ := cmd.Flags().GetString("input"); v != "" {
		cfg.Target.InputDir = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.Target.OutputDir = v
	}
	if v, _ := cmd.Flags().GetString("track"); v != "" {
		cfg.Target.TrackTarget = v
	}
	if cmd.Flags().Changed("mem-limit") {
		v, _ := cmd.Flags().GetUint64("mem-limit")
		cfg.Target.MemLimitMB = v
	}
	if cmd.Flags().Changed("time-limit") {
		v, _ := cmd.Flags().GetUint64("time-limit")
		cfg.Target.TimeLimitSec = v
	}
	if cmd.Flags().Changed("jobs") {
		v, _ := cmd.Flags().GetInt("jobs")
		cfg.Execution.Jobs = v
	}
	if cmd.Flags().Changed("sync") {
		v, _ := cmd.Flags().GetBool("sync")
		cfg.Sync.SyncWithAFL = v
	}
	if cmd.Flags().Changed("flip-strategy") {
		v, _ := cmd.Flags().GetUint32("flip-strategy")
		cfg.Execution.FlipStrategy = v
	}
	if cmd.Flags().Changed("fifo") {
		v, _ := cmd.Flags().GetUint32("fifo")
		cfg.Sync.FifoMode = v > 0
	}
	if cmd.Flags().Changed("corpus-count") {
		v, _ := cmd.Flags().GetUint32("corpus-count")
		cfg.Execution.InitialCorpusCount = v
	}
	if v, _ := cmd.Flags().GetString("metrics-addr"); v != "" {
		cfg.Metrics.Addr = v
	}
	_ = args
}

// seedInitialCorpus loads every regular file directly under inDir into
// the local depot under Normal status, matching spec.md §6's expectation
// that a fresh run's input directory seeds the depot before the first
// sync pass.
func seedInitialCorpus(inDir string, local *depot.Local) (int, error) {
	entries, err := os.ReadDir(inDir)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		buf, err := os.ReadFile(filepath.Join(inDir, entry.Name()))
		if err != nil {
			continue
		}
		local.Save(coverage.Normal, buf)
		count++
	}
	return count, nil
}

func reportMetricsPeriodically(ctx context.Context, reg *metrics.Registry, global *coverage.GlobalBranches, depotSync *depot.DepotSync) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.ObserveDensity(global)
			reg.SetQueueDepth("synced", depotSync.Len())
		}
	}
}
