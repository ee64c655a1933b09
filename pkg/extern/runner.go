package extern

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mcortz/meshlens/internal/types"
)

// ProcessRunner runs external tools as local subprocesses. Stdout and stderr
// are accumulated into buffers until the process exits, so an arbitrarily
// chatty tool cannot deadlock the read side. A Timeout of zero means the
// process may run as long as the caller's context allows.
type ProcessRunner struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewProcessRunner(timeout time.Duration, logger *zap.Logger) *ProcessRunner {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &ProcessRunner{Timeout: timeout, Logger: logger}
}

func (r *ProcessRunner) Run(ctx context.Context, name string, args ...string) (*types.Invocation, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)

	// Own process group, so a timeout kills the tool and any children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %v", name, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return nil, fmt.Errorf("%s did not finish: %v", name, ctx.Err())
	case waitErr = <-done:
	}

	exitCode := 0
	if waitErr != nil {
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("failed to run %s: %v", name, waitErr)
		}
		exitCode = exitErr.ExitCode()
	}

	r.Logger.Debug("external tool finished",
		zap.String("tool", name),
		zap.Int("exit_code", exitCode),
		zap.Duration("elapsed", time.Since(start)))

	return &types.Invocation{
		ExitCode: exitCode,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}, nil
}
