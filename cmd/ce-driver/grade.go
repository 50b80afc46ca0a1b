package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/jihwankim/ce-driver/pkg/command"
	"github.com/jihwankim/ce-driver/pkg/coverage"
	"github.com/jihwankim/ce-driver/pkg/depot"
	"github.com/jihwankim/ce-driver/pkg/executor"
	"github.com/jihwankim/ce-driver/pkg/reporting"
)

// gradeCmd replays an existing corpus directory through the
// forkserver-driven fast-run executor and reports throughput, without
// any solver/tracker involvement. Grounded on
// original_source/.../fuzzer/src/fuzz_loop.rs's own test_grading,
// which exercises Executor.run_sync this same way — a grading pass
// over a directory of previously generated test cases, not production
// fuzzing.
var gradeCmd = &cobra.Command{
	Use:   "grade -- TARGET [ARGS...]",
	Args:  cobra.MinimumNArgs(1),
	Short: "Replay a corpus directory through the fast-run executor and report coverage/throughput",
	RunE:  runGrade,
}

func init() {
	gradeCmd.Flags().StringP("input", "i", "", "directory of test cases to grade (required)")
	gradeCmd.Flags().StringP("output", "o", "", "scratch output directory (required)")
	gradeCmd.Flags().String("track", "", "tracking-mode target binary (unused in grading, but required by the command descriptor)")
	gradeCmd.Flags().Uint64("mem-limit", 200, "memory limit in MiB, 0 = unlimited")
	gradeCmd.Flags().Uint64("time-limit", 1, "fast-run time limit in seconds")
}

func runGrade(cmd *cobra.Command, args []string) error {
	inDir, _ := cmd.Flags().GetString("input")
	outDir, _ := cmd.Flags().GetString("output")
	trackTarget, _ := cmd.Flags().GetString("track")
	memLimit, _ := cmd.Flags().GetUint64("mem-limit")
	timeLimit, _ := cmd.Flags().GetUint64("time-limit")

	if inDir == "" || outDir == "" {
		return fmt.Errorf("--input and --output are required")
	}

	logLevel := reporting.LogLevelInfo
	if verbose {
		logLevel = reporting.LogLevelDebug
	}
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  logLevel,
		Format: reporting.LogFormatText,
		Output: os.Stdout,
	})

	template, err := command.New(trackTarget, args, outDir, memLimit, timeLimit)
	if err != nil {
		return fmt.Errorf("building command descriptor: %w", err)
	}
	defer template.Close()
	instance := template.Specify(1)

	local, err := depot.NewLocal(outDir, logger)
	if err != nil {
		return fmt.Errorf("creating local depot: %w", err)
	}
	global := coverage.NewGlobalBranches()

	exec, err := executor.NewExecutor(instance, global, local, 2, logger)
	if err != nil {
		return fmt.Errorf("starting executor: %w", err)
	}
	defer exec.Close()

	files, err := gradeFiles(inDir)
	if err != nil {
		return fmt.Errorf("listing grading corpus: %w", err)
	}

	start := time.Now()
	novel := 0
	for _, path := range files {
		buf, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable grading input", "path", path, "error", err)
			continue
		}
		isNew, _, status := exec.RunSync(buf)
		if isNew {
			novel++
		}
		logger.Debug("graded input", "path", path, "status", status, "novel", isNew)
	}
	elapsed := time.Since(start)

	logger.Info("grading complete",
		"inputs", len(files),
		"novel", novel,
		"density", global.Density(),
		"elapsed", elapsed.String(),
	)
	if elapsed.Seconds() >= 1 {
		logger.Info("throughput", "inputs_per_sec", float64(len(files))/elapsed.Seconds())
	}
	return nil
}

// gradeFiles lists the regular files directly under dir, sorted by
// name for deterministic grading order.
func gradeFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
