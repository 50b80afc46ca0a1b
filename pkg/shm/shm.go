// Package shm provides a typed handle over a fixed-size POSIX shared
// memory segment, mirroring the lifecycle spec.md §4.1 describes: a
// segment is created or attached, exposed as a typed pointer, and
// marked for removal when the handle is released. This is the only
// low-overhead way to hand a continuously-updated coverage bitmap to a
// separately compiled, instrumented child process.
package shm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// failPtr is the sentinel shmat/shmget failure value: all bits set,
// reinterpreted as a signed word. Matches the POSIX (void*)-1 / -1
// convention the original implementation checks against.
const failPtr = ^uintptr(0)

// SHM is a typed handle over a fixed-size shared memory segment whose
// payload is exactly sizeof(T) bytes.
type SHM[T any] struct {
	id   int
	addr uintptr
}

// New creates a new private, exclusive segment sized to T, permission
// 0600, and attaches it.
func New[T any]() (*SHM[T], error) {
	var zero T
	size := unsafe.Sizeof(zero)

	id, err := unix.SysvShmGet(unix.SysvIPCPrivate, int(size), unix.IPC_CREAT|unix.IPC_EXCL|0600)
	if err != nil {
		return nil, fmt.Errorf("shmget: %w", err)
	}

	return attachExisting[T](id)
}

// FromID attaches to an existing segment by integer ID. Failure to
// attach is reported via the returned handle's IsFail, never via a
// panic, matching spec.md §4.1's "never raises" contract.
func FromID[T any](id int) *SHM[T] {
	h, err := attachExisting[T](id)
	if err != nil {
		return &SHM[T]{id: id, addr: failPtr}
	}
	return h
}

func attachExisting[T any](id int) (*SHM[T], error) {
	addr, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return &SHM[T]{id: id, addr: failPtr}, fmt.Errorf("shmat: %w", err)
	}
	return &SHM[T]{id: id, addr: addr}, nil
}

// IsFail reports whether this handle failed to attach.
func (s *SHM[T]) IsFail() bool {
	return s.addr == failPtr
}

// ID returns the segment's integer ID, suitable for passing to a
// child process through an environment variable.
func (s *SHM[T]) ID() int {
	return s.id
}

// Ptr returns a mutable pointer to the payload. Callers must not hold
// it past Close.
func (s *SHM[T]) Ptr() *T {
	return (*T)(unsafe.Pointer(s.addr))
}

// Clear zeroes the segment in place.
func (s *SHM[T]) Clear() {
	var zero T
	*s.Ptr() = zero
}

// Close marks the segment for removal. POSIX semantics mean the
// segment is actually destroyed once every attachment (including this
// one) detaches; this call never returns an error to the caller
// because there is nothing actionable to do if IPC_RMID itself fails
// during teardown, matching spec.md §4.1's "no fallible operation in
// drop".
func (s *SHM[T]) Close() {
	if s.IsFail() {
		return
	}
	_, _ = unix.SysvShmCtl(s.id, unix.IPC_RMID, nil)
	_ = unix.SysvShmDetach(s.addr)
}
