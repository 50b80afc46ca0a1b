package executor

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/jihwankim/ce-driver/pkg/command"
	"github.com/jihwankim/ce-driver/pkg/coverage"
	"github.com/jihwankim/ce-driver/pkg/limit"
	"github.com/jihwankim/ce-driver/pkg/pipefd"
)

// forksrvNewChild is the sentinel sent to request a new fork; its
// value carries no meaning beyond "not all zero bytes" (spec.md §4.4).
var forksrvNewChild = [4]byte{8, 8, 8, 8}

// Forksrv owns the control socket and the long-lived forkserver child
// process one executor instance talks to for every run.
//
// Grounded on original_source/.../fuzzer/src/forksrv.rs.
type Forksrv struct {
	socketPath string
	conn       *net.UnixConn
	child      *exec.Cmd
	usesASan   bool
}

// NewForksrv binds socketPath, spawns the target under the forkserver
// protocol env vars, and blocks until the child connects back.
func NewForksrv(socketPath string, target command.Binary, env map[string]string, fd *pipefd.PipeFd, isStdin, usesASan bool, timeLimit time.Duration, memLimitMB uint64) (*Forksrv, error) {
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("forksrv: bind %q: %w", socketPath, err)
	}
	defer listener.Close()

	childEnv := make([]string, 0, len(env)+2)
	for k, v := range env {
		childEnv = append(childEnv, k+"="+v)
	}
	childEnv = append(childEnv, envEnableForksrv+"=TRUE", envForksrvSocketPath+"="+socketPath)

	cmd := exec.Command(target.Path, target.Args...)
	cmd.Env = childEnv
	cmd.Stdout = nil
	cmd.Stderr = nil
	if isStdin {
		cmd.Stdin = fd.File()
	}

	if err := limit.WithMemLimit(cmd, memLimitMB); err != nil {
		return nil, fmt.Errorf("forksrv: spawning target: %w", err)
	}

	unixListener, ok := listener.(*net.UnixListener)
	if !ok {
		return nil, fmt.Errorf("forksrv: expected a unix listener")
	}
	if timeLimit > 0 {
		_ = unixListener.SetDeadline(time.Now().Add(timeLimit + 5*time.Second))
	}
	conn, err := unixListener.Accept()
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("forksrv: accept: %w", err)
	}
	unixConn := conn.(*net.UnixConn)

	if err := unixConn.SetDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("forksrv: clearing accept deadline: %w", err)
	}

	return &Forksrv{
		socketPath: socketPath,
		conn:       unixConn,
		child:      cmd,
		usesASan:   usesASan,
	}, nil
}

func (f *Forksrv) setRunDeadline(timeLimit time.Duration) {
	if timeLimit <= 0 {
		_ = f.conn.SetDeadline(time.Time{})
		return
	}
	_ = f.conn.SetDeadline(time.Now().Add(timeLimit))
}

// Run requests one fork from the child, waits for its exit status,
// and classifies the result (spec.md §4.4's fork-request protocol).
func (f *Forksrv) Run(timeLimit time.Duration) coverage.Status {
	f.setRunDeadline(timeLimit)

	if _, err := f.conn.Write(forksrvNewChild[:]); err != nil {
		return coverage.Error
	}

	var pidBuf [4]byte
	if _, err := readFull(f.conn, pidBuf[:]); err != nil {
		return coverage.Error
	}
	childPID := int32(binary.LittleEndian.Uint32(pidBuf[:]))
	if childPID <= 0 {
		return coverage.Error
	}

	var statusBuf [4]byte
	if _, err := readFull(f.conn, statusBuf[:]); err != nil {
		_ = syscall.Kill(int(childPID), syscall.SIGKILL)
		drainBuf := make([]byte, 16)
		for {
			if _, err := f.conn.Read(drainBuf); err == nil {
				break
			}
		}
		return coverage.Timeout
	}

	raw := int32(binary.LittleEndian.Uint32(statusBuf[:]))
	ws := syscall.WaitStatus(raw)
	if ws.Signaled() || (f.usesASan && ws.ExitStatus() == msanErrorCode) {
		return coverage.Crash
	}
	return coverage.Normal
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, fmt.Errorf("forksrv: short read")
		}
	}
	return total, nil
}

// Close tells the forkserver child to exit, removes the control
// socket file, and reaps the child process.
func (f *Forksrv) Close() error {
	fin := [2]byte{}
	_, _ = f.conn.Write(fin[:])
	_ = f.conn.Close()
	_ = os.Remove(f.socketPath)
	if f.child.Process != nil {
		_, _ = f.child.Process.Wait()
	}
	return nil
}
