package types

import (
	"context"

	"github.com/mcortz/meshlens/internal/models"
)

// Invocation is the observable outcome of one external tool run: everything
// the process wrote plus how it exited.
type Invocation struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner launches an external tool and waits for it to exit. A non-nil error
// means the process could not be run at all; a nonzero ExitCode is reported
// through the Invocation, not the error.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Invocation, error)
}

// Converter turns a boundary-representation solid into a canonical mesh file
// and returns the path of the file it produced.
type Converter interface {
	Convert(ctx context.Context, srcPath string) (string, error)
}

// Classifier runs the external classifier on a canonical mesh file and
// returns its raw stdout payload.
type Classifier interface {
	Classify(ctx context.Context, meshPath string) ([]byte, error)
}

// ResultCache caches classification results by upload content hash.
// Get returns (nil, nil) on a miss.
type ResultCache interface {
	Get(ctx context.Context, key string) (*models.Result, error)
	Set(ctx context.Context, key string, res *models.Result) error
}

// History persists classification outcomes for later querying.
type History interface {
	Save(ctx context.Context, fileName string, res *models.Result) error
}
