package emergency_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jihwankim/ce-driver/pkg/emergency"
)

func TestControllerStopViaStopFile(t *testing.T) {
	stopFile := t.TempDir() + "/stop"

	c := emergency.New(emergency.Config{
		StopFile:       stopFile,
		EnableStopFile: true,
		PollInterval:   20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	if !c.Running() {
		t.Fatal("expected controller to start in running state")
	}

	if err := touch(stopFile); err != nil {
		t.Fatalf("touch stop file: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for c.Running() {
		select {
		case <-deadline:
			t.Fatal("controller did not observe stop file")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestControllerStopIsIdempotent(t *testing.T) {
	c := emergency.New(emergency.Config{})
	c.Stop()
	c.Stop()
	if c.Running() {
		t.Fatal("expected controller to report not-running after Stop")
	}
}

func touch(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return f.Close()
}
