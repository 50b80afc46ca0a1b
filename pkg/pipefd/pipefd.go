// Package pipefd wraps the on-disk file each executor instance writes
// its current test case into before a run: the forkserver child reads
// it either as argv's "@@" path or, in stdin mode, as the file handed
// to the child's stdin.
//
// Grounded on original_source/.../fuzzer/src/pipe_fd.rs.
package pipefd

import "os"

// PipeFd is the read-write scratch file backing one executor
// instance's current input.
type PipeFd struct {
	file *os.File
}

// Open opens path read-write, creating it if needed, for use as the
// executor's current-input scratch file. Existing contents are kept
// until the first WriteBuf.
func Open(path string) (*PipeFd, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return &PipeFd{file: f}, nil
}

// File exposes the underlying *os.File, e.g. to hand to exec.Cmd.Stdin
// in stdin mode.
func (p *PipeFd) File() *os.File {
	return p.file
}

// WriteBuf overwrites the file's contents with buf from offset 0 and
// truncates it to len(buf), matching the Rust original's
// seek-write-truncate-flush sequence.
func (p *PipeFd) WriteBuf(buf []byte) error {
	if _, err := p.file.Seek(0, 0); err != nil {
		return err
	}
	if _, err := p.file.Write(buf); err != nil {
		return err
	}
	if err := p.file.Truncate(int64(len(buf))); err != nil {
		return err
	}
	return p.file.Sync()
}

// Rewind seeks back to the start of the file, needed before a stdin
// run so the child reads from the beginning.
func (p *PipeFd) Rewind() error {
	_, err := p.file.Seek(0, 0)
	return err
}

// Close closes the underlying file.
func (p *PipeFd) Close() error {
	return p.file.Close()
}
