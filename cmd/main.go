package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	cachePkg "github.com/mcortz/meshlens/pkg/cache"
	"github.com/mcortz/meshlens/pkg/classify"
	"github.com/mcortz/meshlens/pkg/config"
	"github.com/mcortz/meshlens/pkg/convert"
	"github.com/mcortz/meshlens/pkg/extern"
	"github.com/mcortz/meshlens/pkg/pipeline"
	"github.com/mcortz/meshlens/pkg/store"
	"github.com/mcortz/meshlens/server"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "classify":
		err = runClassify(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: meshlens serve [flags]")
	fmt.Fprintln(os.Stderr, "       meshlens classify [flags] <file>...")
}

func loadConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return nil, fmt.Errorf("invalid configuration")
	}

	return cfg, nil
}

// buildPipeline wires the subprocess adapters and the optional cache and
// history stores from configuration.
func buildPipeline(cfg *config.Config, logger *zap.Logger) (*pipeline.Pipeline, func(), error) {
	runner := extern.NewProcessRunner(time.Duration(cfg.Tools.TimeoutSeconds)*time.Second, logger)

	converter := convert.NewWithConfig(convert.Config{
		PythonBin: cfg.Tools.PythonBin,
		Script:    cfg.Tools.ConverterScript,
	}, runner, logger)

	classifier := classify.NewWithConfig(classify.Config{
		PythonBin:    cfg.Tools.PythonBin,
		Script:       cfg.Tools.ClassifierScript,
		NumPoints:    cfg.Tools.NumPoints,
		OutputPoints: cfg.Tools.OutputPoints,
	}, runner, logger)

	pcfg := pipeline.Config{
		Converter:  converter,
		Classifier: classifier,
		Logger:     logger,
	}

	var closers []func()

	if cfg.Cache.Addr != "" {
		c, err := cachePkg.NewWithConfig(cachePkg.Config{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			TTL:      time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize cache: %v", err)
		}
		pcfg.Cache = c
		closers = append(closers, func() { c.Close() })
	}

	if cfg.Database.URL != "" {
		h, err := store.NewWithConfig(store.HistoryConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize history store: %v", err)
		}
		pcfg.History = h
		closers = append(closers, h.Close)
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return pipeline.NewWithConfig(pcfg), cleanup, nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	pipe, cleanup, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv, err := server.NewServer(server.Config{
		Addr:        cfg.Server.Addr,
		UploadDir:   cfg.Server.UploadDir,
		MaxUploadMB: cfg.Server.MaxUploadMB,
		RateLimit:   cfg.Server.RateLimit,
		Burst:       cfg.Server.Burst,
	}, pipe, logger)
	if err != nil {
		return err
	}

	return srv.Start()
}

func runClassify(args []string) error {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	files := fs.Args()
	if len(files) == 0 {
		return fmt.Errorf("no input files")
	}

	logger := zap.NewNop()
	pipe, cleanup, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription(color.BlueString("Classifying meshes...")),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)

	failed := 0
	for _, f := range files {
		// The pipeline deletes its input, so hand it a scratch copy.
		scratch, err := stageCopy(f)
		if err != nil {
			color.Red("\n%s: %v", f, err)
			failed++
			bar.Add(1)
			continue
		}

		res, err := pipe.Process(context.Background(), pipeline.Upload{
			Path:         scratch,
			OriginalName: filepath.Base(f),
		})
		bar.Add(1)

		if err != nil {
			color.Red("\n%s: %v", f, err)
			failed++
			continue
		}
		color.Green("\n%s: %s (%.1f%%)", f, res.PredictedClass, res.Confidence)
	}

	fmt.Println()
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func stageCopy(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), uuid.NewString(), filepath.Ext(path))
	scratch := filepath.Join(os.TempDir(), name)

	dst, err := os.Create(scratch)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(scratch)
		return "", err
	}
	return scratch, dst.Close()
}
