package extern_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mcortz/meshlens/pkg/extern"
)

func TestRunCapturesStreamsAndExitCode(t *testing.T) {
	r := extern.NewProcessRunner(0, zaptest.NewLogger(t))

	inv, err := r.Run(context.Background(), "sh", "-c", "echo out; echo err 1>&2; exit 3")
	require.NoError(t, err)

	assert.Equal(t, 3, inv.ExitCode)
	assert.Equal(t, "out\n", string(inv.Stdout))
	assert.Equal(t, "err\n", string(inv.Stderr))
}

func TestRunZeroExit(t *testing.T) {
	r := extern.NewProcessRunner(0, zaptest.NewLogger(t))

	inv, err := r.Run(context.Background(), "sh", "-c", "printf hello")
	require.NoError(t, err)

	assert.Equal(t, 0, inv.ExitCode)
	assert.Equal(t, "hello", string(inv.Stdout))
	assert.Empty(t, inv.Stderr)
}

func TestRunLargeOutputDoesNotDeadlock(t *testing.T) {
	r := extern.NewProcessRunner(0, zaptest.NewLogger(t))

	// Well past any pipe buffer size.
	inv, err := r.Run(context.Background(), "sh", "-c", "head -c 1048576 /dev/zero")
	require.NoError(t, err)

	assert.Equal(t, 0, inv.ExitCode)
	assert.Len(t, inv.Stdout, 1048576)
}

func TestRunTimeout(t *testing.T) {
	r := extern.NewProcessRunner(100*time.Millisecond, zaptest.NewLogger(t))

	start := time.Now()
	_, err := r.Run(context.Background(), "sh", "-c", "sleep 10")

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunMissingBinary(t *testing.T) {
	r := extern.NewProcessRunner(0, zaptest.NewLogger(t))

	_, err := r.Run(context.Background(), "/nonexistent/tool")
	assert.Error(t, err)
}
