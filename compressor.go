package lofarcap

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// compressorProc pipes consumer output through an external compression
// command, per §4.3's --compress behavior. os/exec is the stdlib: no
// library in the example corpus wraps "spawn a shell-templated external
// command and pipe stdin to it" any better than os/exec already does, so
// this is one of the few places the package stays on the standard
// library (see DESIGN.md).
type compressorProc struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	outErr error
}

// startCompressor launches compCommand with %s replaced by filename,
// using /bin/sh -c so the operator can supply a command with arguments
// ("gzip -c > %s", say). The compressor's stdout/stderr are left attached
// to the parent process's so its own errors surface on the console.
func startCompressor(compCommand, filename string) (*compressorProc, error) {
	line := strings.Replace(compCommand, "%s", filename, 1)
	cmd := exec.Command("/bin/sh", "-c", line)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, compressorErr("StdinPipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, compressorErr("start", err)
	}
	return &compressorProc{cmd: cmd, stdin: stdin}, nil
}

// Write satisfies io.Writer so a compressorProc can be used directly
// wherever the consumer would otherwise write to a plain *os.File.
func (c *compressorProc) Write(p []byte) (int, error) {
	return c.stdin.Write(p)
}

// Close closes the compressor's stdin and waits for it to exit, per §7:
// a non-zero exit is reported as a CompressorFailure but does not erase
// data already handed to the subprocess.
func (c *compressorProc) Close() error {
	if err := c.stdin.Close(); err != nil {
		return compressorErr("close stdin", err)
	}
	if err := c.cmd.Wait(); err != nil {
		return compressorErr("wait", fmt.Errorf("compressor exited: %w", err))
	}
	return nil
}
