// Package server is the upload edge of the service: it accepts multipart CAD
// uploads, materializes each one in the upload directory under a unique name,
// and hands it to the pipeline. The pipeline owns the file from that point on
// and deletes it whatever the outcome.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mcortz/meshlens/pkg/pipeline"
)

var allowedExtensions = map[string]bool{
	".off":  true,
	".stl":  true,
	".step": true,
	".stp":  true,
}

type Config struct {
	Addr        string
	UploadDir   string
	MaxUploadMB int64
	RateLimit   float64
	Burst       int
}

type Server struct {
	config  Config
	pipe    *pipeline.Pipeline
	limiter *rate.Limiter
	logger  *zap.Logger
}

type errorResponse struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
	Raw    string `json:"raw,omitempty"`
}

// NewServer prepares the upload directory and wires the handler set. Failure
// to create the upload directory is fatal: without it no request can be
// serviced.
func NewServer(config Config, pipe *pipeline.Pipeline, logger *zap.Logger) (*Server, error) {
	if config.MaxUploadMB == 0 {
		config.MaxUploadMB = 64
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10.0
	}
	if config.Burst == 0 {
		config.Burst = 20
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	if err := os.MkdirAll(config.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %v", config.UploadDir, err)
	}

	return &Server{
		config:  config,
		pipe:    pipe,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst),
		logger:  logger,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/classify", s.handleClassify)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("addr", s.config.Addr))
	return http.ListenAndServe(s.config.Addr, s.Handler())
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.limiter.Allow() {
		s.writeError(w, http.StatusTooManyRequests, &pipeline.Error{
			Kind:   pipeline.KindUpload,
			Detail: "too many requests",
		})
		observe("rejected", time.Duration(0))
		return
	}

	start := time.Now()

	upload, status, err := s.saveUpload(w, r)
	if err != nil {
		s.writeError(w, status, &pipeline.Error{
			Kind:   pipeline.KindUpload,
			Detail: err.Error(),
		})
		observe("rejected", time.Since(start))
		return
	}

	res, err := s.pipe.Process(r.Context(), *upload)
	if err != nil {
		var perr *pipeline.Error
		if !errors.As(err, &perr) {
			perr = &pipeline.Error{Kind: pipeline.KindProcessing, Detail: err.Error()}
		}
		s.writeError(w, statusFor(perr.Kind), perr)
		observe(perr.Kind.String(), time.Since(start))
		return
	}

	observe("success", time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

// saveUpload materializes the multipart file part in the upload directory.
// The stored name combines a timestamp and a random component so concurrent
// requests cannot collide; the client's name survives only as the extension
// dispatch input.
func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request) (*pipeline.Upload, int, error) {
	maxBytes := s.config.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("missing file field: %v", err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		return nil, http.StatusBadRequest, fmt.Errorf("unsupported file extension %q", ext)
	}

	name := fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), uuid.NewString(), ext)
	path := filepath.Join(s.config.UploadDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("failed to store upload: %v", err)
	}

	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		return nil, http.StatusInternalServerError, fmt.Errorf("failed to store upload: %v", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return nil, http.StatusInternalServerError, fmt.Errorf("failed to store upload: %v", err)
	}

	return &pipeline.Upload{Path: path, OriginalName: header.Filename}, 0, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) writeError(w http.ResponseWriter, status int, perr *pipeline.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{Kind: perr.Kind.String(), Detail: perr.Detail}
	if len(perr.Raw) > 0 {
		resp.Raw = string(perr.Raw)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to write error response", zap.Error(err))
	}
}

func statusFor(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindUpload, pipeline.KindUnsupported:
		return http.StatusBadRequest
	case pipeline.KindProcessing:
		return http.StatusUnprocessableEntity
	case pipeline.KindConversion, pipeline.KindClassification, pipeline.KindResultParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
