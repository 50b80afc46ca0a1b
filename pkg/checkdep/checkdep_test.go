package checkdep

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, content []byte, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, mode); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCheckTargetBinary(t *testing.T) {
	dir := t.TempDir()
	bin := writeFile(t, dir, "target", []byte("\x7fELF"), 0755)

	if err := CheckTargetBinary(bin); err != nil {
		t.Fatalf("expected existing regular file to pass: %v", err)
	}
	if err := CheckTargetBinary(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected missing file to fail")
	}
}

func TestCheckASan(t *testing.T) {
	dir := t.TempDir()
	plain := writeFile(t, dir, "plain", []byte("nothing special here"), 0755)
	asan := writeFile(t, dir, "asan", []byte("...libasan.so..."), 0755)
	msan := writeFile(t, dir, "msan", []byte("...__msan_init..."), 0755)

	if ok, err := CheckASan(plain); err != nil || ok {
		t.Fatalf("plain binary should not report asan, got ok=%v err=%v", ok, err)
	}
	if ok, err := CheckASan(asan); err != nil || !ok {
		t.Fatalf("expected asan marker to be detected, got ok=%v err=%v", ok, err)
	}
	if ok, err := CheckASan(msan); err != nil || !ok {
		t.Fatalf("expected msan marker to be detected, got ok=%v err=%v", ok, err)
	}
}

func TestCheckTrackLLVM(t *testing.T) {
	dir := t.TempDir()
	tracked := writeFile(t, dir, "tracked", []byte("...__taint_trace_cmp..."), 0755)
	untracked := writeFile(t, dir, "untracked", []byte("no markers here"), 0755)

	if err := CheckTrackLLVM(tracked); err != nil {
		t.Fatalf("expected tracked binary to pass: %v", err)
	}
	if err := CheckTrackLLVM(untracked); err == nil {
		t.Fatal("expected untracked binary to fail")
	}
}

func TestCheckIODir(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	if err := CheckIODir(in, out); err != nil {
		t.Fatalf("expected valid input dir to pass: %v", err)
	}
	if err := CheckIODir("-", out); err != nil {
		t.Fatalf("expected resume mode with existing out dir to pass: %v", err)
	}
	if err := CheckIODir("-", filepath.Join(out, "missing")); err == nil {
		t.Fatal("expected resume mode with missing out dir to fail")
	}
}
