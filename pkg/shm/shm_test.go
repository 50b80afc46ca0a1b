package shm_test

import (
	"testing"

	"github.com/jihwankim/ce-driver/pkg/shm"
)

type fixedPayload struct {
	Bytes [1 << 10]byte
	Hash  uint64
}

func TestRoundTrip(t *testing.T) {
	h, err := shm.New[fixedPayload]()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	if h.IsFail() {
		t.Fatal("expected successful attach")
	}

	h.Ptr().Bytes[4] = 0xAB
	h.Ptr().Hash = 0xDEADBEEF

	other := shm.FromID[fixedPayload](h.ID())
	if other.IsFail() {
		t.Fatal("expected successful re-attach by ID")
	}

	if other.Ptr().Bytes[4] != 0xAB {
		t.Fatalf("byte mismatch: got %x", other.Ptr().Bytes[4])
	}
	if other.Ptr().Hash != 0xDEADBEEF {
		t.Fatalf("hash mismatch: got %x", other.Ptr().Hash)
	}
}

func TestClear(t *testing.T) {
	h, err := shm.New[fixedPayload]()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	h.Ptr().Hash = 42
	h.Clear()
	if h.Ptr().Hash != 0 {
		t.Fatalf("expected cleared payload, got hash=%d", h.Ptr().Hash)
	}
}

func TestFromIDFailure(t *testing.T) {
	h := shm.FromID[fixedPayload](0x7fffffff)
	if !h.IsFail() {
		t.Fatal("expected attach to a bogus ID to fail")
	}
}
