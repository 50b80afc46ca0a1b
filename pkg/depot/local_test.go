package depot

import (
	"bytes"
	"testing"

	"github.com/jihwankim/ce-driver/pkg/coverage"
)

func TestLocalSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, nil)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	payload := bytes.Repeat([]byte{0x42}, 128)
	l.Save(coverage.Normal, payload)

	got, err := l.GetInputBuf(0)
	if err != nil {
		t.Fatalf("GetInputBuf: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("round-tripped bytes do not match")
	}
}

func TestLocalSaveDispatchesByStatus(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, nil)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	l.Save(coverage.Normal, []byte("n"))
	l.Save(coverage.Timeout, []byte("t"))
	l.Save(coverage.Crash, []byte("c"))

	if l.numInputs.Load() != 1 {
		t.Fatalf("expected 1 saved input, got %d", l.numInputs.Load())
	}
	if l.numHangs.Load() != 1 {
		t.Fatalf("expected 1 saved hang, got %d", l.numHangs.Load())
	}
	if l.numCrashes.Load() != 1 {
		t.Fatalf("expected 1 saved crash, got %d", l.numCrashes.Load())
	}
}
