package command

import (
	"os"
	"path/filepath"
	"testing"
)

func writeExecutable(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewDerivesStdinMode(t *testing.T) {
	t.Setenv("CE_DRIVER_DISABLE_TMPFS", "1")
	outDir := t.TempDir()
	mainBin := writeExecutable(t, outDir, "main", []byte("plain binary"))

	opt, err := New("track-bin", []string{mainBin}, outDir, 200, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !opt.IsStdin {
		t.Fatal("expected stdin mode when no @@ placeholder is present")
	}
	if !opt.IsRaw {
		t.Fatal("expected the template to be raw")
	}
	if opt.MemLimitMB != 200 {
		t.Fatalf("mem limit = %d, want 200", opt.MemLimitMB)
	}
}

func TestNewDetectsASanAndZeroesMemLimit(t *testing.T) {
	t.Setenv("CE_DRIVER_DISABLE_TMPFS", "1")
	outDir := t.TempDir()
	mainBin := writeExecutable(t, outDir, "main", []byte("...libasan.so..."))

	opt, err := New("track-bin", []string{mainBin}, outDir, 200, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !opt.UsesASan {
		t.Fatal("expected asan to be detected")
	}
	if opt.MemLimitMB != 0 {
		t.Fatalf("mem limit = %d, want 0 for an asan binary", opt.MemLimitMB)
	}
}

func TestSpecifySubstitutesPlaceholderAndSuffixesPaths(t *testing.T) {
	t.Setenv("CE_DRIVER_DISABLE_TMPFS", "1")
	outDir := t.TempDir()
	mainBin := writeExecutable(t, outDir, "main", []byte("plain binary"))

	opt, err := New("track-bin", []string{mainBin, "@@"}, outDir, 0, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if opt.IsStdin {
		t.Fatal("expected file mode when @@ is present")
	}

	clone := opt.Specify(3)
	if clone.IsRaw {
		t.Fatal("expected clone to not be raw")
	}
	if clone.OutFile != opt.OutFile+"_3" {
		t.Fatalf("out file = %q, want suffixed", clone.OutFile)
	}
	if len(clone.Main.Args) != 1 || clone.Main.Args[0] != clone.OutFile {
		t.Fatalf("expected @@ substituted with the clone's own out file, got %v", clone.Main.Args)
	}
	// the template's own args must be untouched
	if opt.Main.Args[0] != "@@" {
		t.Fatalf("template args were mutated: %v", opt.Main.Args)
	}
}

func TestCloseOnlyClearsRawTemplate(t *testing.T) {
	outDir := t.TempDir()
	mainBin := writeExecutable(t, outDir, "main", []byte("plain binary"))

	opt, err := New("track-bin", []string{mainBin}, outDir, 0, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clone := opt.Specify(1)

	if err := clone.Close(); err != nil {
		t.Fatalf("clone Close should be a no-op, got: %v", err)
	}
	if _, err := os.Lstat(opt.TmpDir); err != nil {
		t.Fatalf("expected template's tmp dir to still exist after clone Close: %v", err)
	}

	if err := opt.Close(); err != nil {
		t.Fatalf("template Close: %v", err)
	}
	if _, err := os.Lstat(opt.TmpDir); err == nil {
		t.Fatal("expected template's tmp dir to be removed after Close")
	}
}
