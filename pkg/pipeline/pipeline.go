// Package pipeline orchestrates one classification request: inspect the
// upload's extension, normalize to the canonical mesh format (directly for
// STL, via the external converter for STEP, not at all for OFF), hand the
// mesh to the external classifier, and delete every file the request touched
// before returning — on every exit path.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mcortz/meshlens/internal/models"
	"github.com/mcortz/meshlens/internal/types"
	"github.com/mcortz/meshlens/pkg/classify"
	"github.com/mcortz/meshlens/pkg/convert"
	"github.com/mcortz/meshlens/pkg/mesh"
)

// ErrUnsupportedFormat guards against extensions the upload layer should
// have rejected already.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Upload is the unit of work handed in by the upload layer: a file already
// materialized on local storage plus the client's original filename, which
// is used only for its extension.
type Upload struct {
	Path         string
	OriginalName string
}

type Config struct {
	// Cache and History are optional; a nil field disables that hook and
	// never affects the request outcome.
	Converter  types.Converter
	Classifier types.Classifier
	Cache      types.ResultCache
	History    types.History
	Logger     *zap.Logger
}

type Pipeline struct {
	converter  types.Converter
	classifier types.Classifier
	cache      types.ResultCache
	history    types.History
	logger     *zap.Logger
}

func NewWithConfig(config Config) *Pipeline {
	if config.Logger == nil {
		config.Logger, _ = zap.NewProduction()
	}
	return &Pipeline{
		converter:  config.Converter,
		classifier: config.Classifier,
		cache:      config.Cache,
		history:    config.History,
		logger:     config.Logger,
	}
}

// artifactSet tracks every filesystem path created in service of one
// request. It is owned by a single Process call; cleanup runs exactly once,
// from a defer wrapping the whole sequence.
type artifactSet struct {
	paths []string
}

func (a *artifactSet) add(path string) {
	a.paths = append(a.paths, path)
}

// cleanup is best-effort: removal failures are logged, never escalated, and
// never mask the primary outcome being reported.
func (a *artifactSet) cleanup(log *zap.Logger) {
	for _, p := range a.paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove artifact", zap.String("path", p), zap.Error(err))
		}
	}
}

// Process runs one upload through the full sequence and returns the parsed
// classification result. Any error it returns is a *Error carrying a
// machine-distinguishable kind. The classifier is never invoked when
// conversion fails, and it is invoked at most once per request.
func (p *Pipeline) Process(ctx context.Context, up Upload) (res *models.Result, err error) {
	log := p.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("file", up.OriginalName))

	arts := &artifactSet{}
	arts.add(up.Path)
	defer arts.cleanup(log)

	key := p.contentKey(up.Path, log)
	if cached := p.cacheLookup(ctx, key, log); cached != nil {
		return cached, nil
	}

	meshPath, perr := p.normalize(ctx, up, arts, log)
	if perr != nil {
		return nil, perr
	}

	raw, err := p.classifier.Classify(ctx, meshPath)
	if err != nil {
		return nil, newError(KindClassification, err)
	}

	res, err = classify.ParseResult(raw)
	if err != nil {
		if errors.Is(err, classify.ErrClassificationFailed) {
			return nil, newError(KindClassification, err)
		}
		e := newError(KindResultParse, err)
		e.Raw = raw
		return nil, e
	}

	log.Info("classification complete",
		zap.String("class", res.PredictedClass),
		zap.Float64("confidence", res.Confidence))

	p.record(ctx, key, up.OriginalName, res, log)
	return res, nil
}

// normalize brings the upload to a canonical mesh path. Every file it may
// produce is registered in the artifact set before the producer runs, so a
// partial output cannot leak.
func (p *Pipeline) normalize(ctx context.Context, up Upload, arts *artifactSet, log *zap.Logger) (string, *Error) {
	switch strings.ToLower(filepath.Ext(up.OriginalName)) {
	case ".off":
		return up.Path, nil

	case ".stl":
		dst := strings.TrimSuffix(up.Path, filepath.Ext(up.Path)) + ".off"
		arts.add(dst)
		if err := mesh.ConvertSTL(up.Path, dst); err != nil {
			return "", newError(KindProcessing, err)
		}
		log.Info("welded mesh", zap.String("mesh", dst))
		return dst, nil

	case ".step", ".stp":
		arts.add(convert.DestinationPath(up.Path))
		dst, err := p.converter.Convert(ctx, up.Path)
		if err != nil {
			return "", newError(KindConversion, err)
		}
		return dst, nil

	default:
		return "", newError(KindUnsupported,
			fmt.Errorf("%w: %s", ErrUnsupportedFormat, up.OriginalName))
	}
}

// contentKey hashes the uploaded bytes for the cache. A hashing failure just
// disables caching for this request.
func (p *Pipeline) contentKey(path string, log *zap.Logger) string {
	if p.cache == nil {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		log.Warn("failed to hash upload", zap.Error(err))
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		log.Warn("failed to hash upload", zap.Error(err))
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (p *Pipeline) cacheLookup(ctx context.Context, key string, log *zap.Logger) *models.Result {
	if p.cache == nil || key == "" {
		return nil
	}
	res, err := p.cache.Get(ctx, key)
	if err != nil {
		log.Warn("cache lookup failed", zap.Error(err))
		return nil
	}
	if res != nil {
		log.Info("cache hit", zap.String("class", res.PredictedClass))
	}
	return res
}

// record pushes the outcome to the cache and history stores. Both are
// side channels; their failures are logged and swallowed.
func (p *Pipeline) record(ctx context.Context, key, fileName string, res *models.Result, log *zap.Logger) {
	if p.cache != nil && key != "" {
		if err := p.cache.Set(ctx, key, res); err != nil {
			log.Warn("cache store failed", zap.Error(err))
		}
	}
	if p.history != nil {
		if err := p.history.Save(ctx, fileName, res); err != nil {
			log.Warn("history store failed", zap.Error(err))
		}
	}
}
