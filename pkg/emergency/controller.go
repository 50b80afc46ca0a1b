// Package emergency implements the process-wide cancellation flag
// described in spec.md §5: an atomic "running" boolean cleared by the
// interrupt signal handler, checked between loop iterations.
package emergency

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jihwankim/ce-driver/pkg/reporting"
)

// Config configures the controller.
type Config struct {
	// StopFile, if EnableStopFile is set, is polled alongside the signal
	// handler as a secondary, operator-triggerable stop mechanism.
	StopFile       string
	EnableStopFile bool
	PollInterval   time.Duration

	Logger *reporting.Logger
}

// Controller owns the single atomic "running" flag the main loop reads.
type Controller struct {
	running      atomic.Bool
	stopFile     string
	pollStopFile bool
	pollInterval time.Duration
	logger       *reporting.Logger
}

// New creates a controller in the running state.
func New(cfg Config) *Controller {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 1 * time.Second
	}
	c := &Controller{
		stopFile:     cfg.StopFile,
		pollStopFile: cfg.EnableStopFile,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}
	c.running.Store(true)
	return c
}

// Start installs the SIGINT/SIGTERM handler and, if enabled, the
// stop-file poller. Both clear the running flag exactly once.
func (c *Controller) Start(ctx context.Context) {
	go c.watchSignals(ctx)
	if c.pollStopFile {
		go c.watchStopFile(ctx)
	}
}

func (c *Controller) watchSignals(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		return
	case sig := <-sigCh:
		c.log("interrupt signal received", "signal", sig.String())
		c.Stop()
	}
}

func (c *Controller) watchStopFile(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(c.stopFile); err == nil {
				c.log("emergency stop file detected", "path", c.stopFile)
				c.Stop()
				return
			}
		}
	}
}

// Stop clears the running flag. Idempotent.
func (c *Controller) Stop() {
	c.running.Store(false)
}

// Running reports whether the main loop should keep iterating.
func (c *Controller) Running() bool {
	return c.running.Load()
}

func (c *Controller) log(msg string, fields ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, fields...)
	}
}
