// Package convert adapts the out-of-process STEP converter. The converter is
// a black box invoked with a source path and a destination path; it must
// create the destination file and exit zero, and both conditions are checked
// because external tools are not trusted to fail loudly.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mcortz/meshlens/internal/types"
)

// ErrConversionFailed is returned for any converter outcome other than
// "exited zero and produced the destination file".
var ErrConversionFailed = errors.New("conversion failed")

type Config struct {
	PythonBin string
	Script    string
}

type Converter struct {
	config Config
	runner types.Runner
	logger *zap.Logger
}

func NewWithConfig(config Config, runner types.Runner, logger *zap.Logger) *Converter {
	if config.PythonBin == "" {
		config.PythonBin = "python3"
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Converter{config: config, runner: runner, logger: logger}
}

// DestinationPath derives the converter's output path: the source path with
// its STEP suffix replaced by the canonical extension. The derivation is
// deterministic so the orchestrator can track the artifact before the
// converter runs.
func DestinationPath(srcPath string) string {
	ext := filepath.Ext(srcPath)
	return strings.TrimSuffix(srcPath, ext) + ".off"
}

// Convert runs the external converter on srcPath and returns the produced
// canonical mesh path.
func (c *Converter) Convert(ctx context.Context, srcPath string) (string, error) {
	dstPath := DestinationPath(srcPath)

	c.logger.Info("converting solid",
		zap.String("src", srcPath),
		zap.String("dst", dstPath))

	inv, err := c.runner.Run(ctx, c.config.PythonBin, c.config.Script, srcPath, dstPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	if inv.ExitCode != 0 {
		detail := strings.TrimSpace(string(inv.Stderr))
		if detail == "" {
			detail = strings.TrimSpace(string(inv.Stdout))
		}
		return "", fmt.Errorf("%w: converter exited %d: %s", ErrConversionFailed, inv.ExitCode, detail)
	}

	// Exit code alone is not proof of success.
	if _, err := os.Stat(dstPath); err != nil {
		return "", fmt.Errorf("%w: output not produced at %s", ErrConversionFailed, dstPath)
	}

	return dstPath, nil
}
