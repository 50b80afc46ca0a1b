package depot

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileName formats the contiguous-ID filename convention spec.md §3/§6
// describes: "id:NNNNNN" zero-padded to six digits.
func FileName(dir string, id uint64) string {
	return filepath.Join(dir, fmt.Sprintf("id:%06d", id))
}

// FileNameRare formats the rarity-suffixed variant "id:NNNNNN_R.RR"
// used by sources that report a rarity score. The local depot itself
// writes plain FileName names.
func FileNameRare(dir string, id uint64, rare float32) string {
	return filepath.Join(dir, fmt.Sprintf("id:%06d_%.2f", id, rare))
}

// ReadFile reads an entire seed file into memory. Non-existence is
// reported to the caller rather than retried; spec.md §4.3's pop
// routine is responsible for discarding popped entries whose file
// raced out of existence, not this helper.
func ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes a seed's bytes to disk with permissions matching
// the rest of the depot's output files.
func WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}

// Exists reports whether a path is present on disk, used by the pop
// routine to discard stale priority entries (spec.md §4.3, §7).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
