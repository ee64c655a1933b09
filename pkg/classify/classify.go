// Package classify adapts the out-of-process classifier. The classifier is
// invoked with a canonical mesh path and prints exactly one JSON result
// document on stdout; diagnostics go to stderr. Failures surface three ways:
// nonzero exit, unparsable stdout, or a JSON document whose error field is
// set — the last because the tool reports some failures in-band with exit 0.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mcortz/meshlens/internal/models"
	"github.com/mcortz/meshlens/internal/types"
)

var (
	// ErrClassificationFailed covers nonzero exit and in-band error reports.
	ErrClassificationFailed = errors.New("classification failed")

	// ErrResultUnparsable means the classifier exited zero but its stdout is
	// not a valid result document. Distinct from ErrClassificationFailed so
	// callers can surface the raw payload for diagnosis.
	ErrResultUnparsable = errors.New("classifier output unparsable")
)

type Config struct {
	PythonBin    string
	Script       string
	NumPoints    int
	OutputPoints bool
}

type Classifier struct {
	config Config
	runner types.Runner
	logger *zap.Logger
}

func NewWithConfig(config Config, runner types.Runner, logger *zap.Logger) *Classifier {
	if config.PythonBin == "" {
		config.PythonBin = "python3"
	}
	if config.NumPoints == 0 {
		config.NumPoints = 1024
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Classifier{config: config, runner: runner, logger: logger}
}

// Classify runs the external classifier on meshPath and returns its raw
// stdout payload. The payload is only parsed later, at the orchestrator
// boundary, so a parse failure can carry the raw bytes with it.
func (c *Classifier) Classify(ctx context.Context, meshPath string) ([]byte, error) {
	args := []string{
		c.config.Script,
		"--cad_file", meshPath,
		"--num_points", strconv.Itoa(c.config.NumPoints),
		"--output_points", strconv.FormatBool(c.config.OutputPoints),
	}

	c.logger.Info("classifying mesh", zap.String("mesh", meshPath))

	inv, err := c.runner.Run(ctx, c.config.PythonBin, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	if inv.ExitCode != 0 {
		detail := strings.TrimSpace(string(inv.Stderr))
		if detail == "" {
			detail = strings.TrimSpace(string(inv.Stdout))
		}
		return nil, fmt.Errorf("%w: classifier exited %d: %s", ErrClassificationFailed, inv.ExitCode, detail)
	}

	return inv.Stdout, nil
}

// ParseResult decodes the classifier's stdout payload.
func ParseResult(raw []byte) (*models.Result, error) {
	var res models.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResultUnparsable, err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrClassificationFailed, res.Error)
	}
	return &res, nil
}
