package convert_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mcortz/meshlens/internal/types"
	"github.com/mcortz/meshlens/pkg/convert"
)

// fakeRunner stands in for the subprocess launcher. When produceOutput is
// set it writes the destination file the way a well-behaved converter would.
type fakeRunner struct {
	inv           *types.Invocation
	err           error
	produceOutput bool
	calls         [][]string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (*types.Invocation, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.produceOutput && len(args) >= 3 {
		os.WriteFile(args[2], []byte("OFF\n0 0 0\n"), 0o644)
	}
	return f.inv, f.err
}

func newConverter(r types.Runner, t *testing.T) *convert.Converter {
	return convert.NewWithConfig(convert.Config{
		PythonBin: "python3",
		Script:    "step_to_off.py",
	}, r, zaptest.NewLogger(t))
}

func TestDestinationPath(t *testing.T) {
	assert.Equal(t, "/tmp/part.off", convert.DestinationPath("/tmp/part.step"))
	assert.Equal(t, "/tmp/part.off", convert.DestinationPath("/tmp/part.stp"))
	assert.Equal(t, "/tmp/PART.off", convert.DestinationPath("/tmp/PART.STEP"))
}

func TestConvertSuccess(t *testing.T) {
	src := filepath.Join(t.TempDir(), "part.step")
	require.NoError(t, os.WriteFile(src, []byte("ISO-10303-21;"), 0o644))

	runner := &fakeRunner{inv: &types.Invocation{ExitCode: 0}, produceOutput: true}
	c := newConverter(runner, t)

	dst, err := c.Convert(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, convert.DestinationPath(src), dst)
	assert.FileExists(t, dst)

	// Invoked with source then destination, in that order.
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"python3", "step_to_off.py", src, dst}, runner.calls[0])
}

func TestConvertNonzeroExitEmbedsStderr(t *testing.T) {
	runner := &fakeRunner{inv: &types.Invocation{
		ExitCode: 1,
		Stderr:   []byte("no geometry found\n"),
	}}
	c := newConverter(runner, t)

	_, err := c.Convert(context.Background(), "/tmp/part.step")
	assert.ErrorIs(t, err, convert.ErrConversionFailed)
	assert.Contains(t, err.Error(), "no geometry found")
}

func TestConvertStderrFallsBackToStdout(t *testing.T) {
	runner := &fakeRunner{inv: &types.Invocation{
		ExitCode: 2,
		Stdout:   []byte("usage: step_to_off.py SRC DST\n"),
	}}
	c := newConverter(runner, t)

	_, err := c.Convert(context.Background(), "/tmp/part.step")
	assert.ErrorIs(t, err, convert.ErrConversionFailed)
	assert.Contains(t, err.Error(), "usage: step_to_off.py")
}

func TestConvertExitZeroWithoutArtifactFails(t *testing.T) {
	src := filepath.Join(t.TempDir(), "part.step")
	require.NoError(t, os.WriteFile(src, []byte("ISO-10303-21;"), 0o644))

	// Exits zero but never writes the destination file.
	runner := &fakeRunner{inv: &types.Invocation{ExitCode: 0}}
	c := newConverter(runner, t)

	_, err := c.Convert(context.Background(), src)
	assert.ErrorIs(t, err, convert.ErrConversionFailed)
	assert.Contains(t, err.Error(), "output not produced")
}

func TestConvertRunnerFailure(t *testing.T) {
	runner := &fakeRunner{err: os.ErrNotExist}
	c := newConverter(runner, t)

	_, err := c.Convert(context.Background(), "/tmp/part.step")
	assert.ErrorIs(t, err, convert.ErrConversionFailed)
}
