package tmpfs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateAndClearDir(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "tmp")

	if err := CreateDir(target); err != nil {
		t.Fatalf("CreateDir: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected target to exist: %v", err)
	}

	if err := ClearDir(target); err != nil {
		t.Fatalf("ClearDir: %v", err)
	}
	if _, err := os.Lstat(target); err == nil {
		t.Fatal("expected target to be removed")
	}
}

func TestDisableTmpfsEnvVar(t *testing.T) {
	t.Setenv(DisableEnvVar, "1")
	base := t.TempDir()
	target := filepath.Join(base, "tmp")

	if err := CreateDir(target); err != nil {
		t.Fatalf("CreateDir: %v", err)
	}
	info, err := os.Lstat(target)
	if err != nil {
		t.Fatalf("expected target to exist: %v", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		t.Fatal("expected a plain directory, not a symlink, when tmpfs is disabled")
	}
}
