// Package web serves the prediction dashboard, its JSON API and the
// operational endpoints.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"passos-predictor/internal/batch"
	"passos-predictor/internal/common/errors"
	"passos-predictor/internal/common/logger"
	"passos-predictor/internal/common/metrics"
	"passos-predictor/internal/common/observability"
	"passos-predictor/internal/history"
	"passos-predictor/internal/predictor"
)

// Options bound what the dashboard accepts.
type Options struct {
	MaxUploadBytes int64
	PreviewRows    int
	UploadTTL      time.Duration

	// ReadyChecks are run by /ready after the model check, keyed by
	// dependency name.
	ReadyChecks map[string]func(context.Context) error
}

func (o *Options) applyDefaults() {
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 200 << 20
	}
	if o.PreviewRows <= 0 {
		o.PreviewRows = 5
	}
	if o.UploadTTL <= 0 {
		o.UploadTTL = 30 * time.Minute
	}
}

type Server struct {
	predictor *predictor.Service
	batch     *batch.Service
	history   history.Store
	uploads   *UploadStore
	opts      Options
	views     *renderer
	errors    *errors.ErrorHandler
	obs       *observability.Observability
	logger    logger.Logger
}

func NewServer(
	pred *predictor.Service,
	batchSvc *batch.Service,
	store history.Store,
	opts Options,
	obs *observability.Observability,
	log logger.Logger,
) (*Server, error) {
	opts.applyDefaults()
	views, err := newRenderer()
	if err != nil {
		return nil, err
	}
	if store == nil {
		store = history.NopStore{}
	}
	log = log.WithFields(map[string]interface{}{"component": "web"})
	return &Server{
		predictor: pred,
		batch:     batchSvc,
		history:   store,
		uploads:   NewUploadStore(opts.UploadTTL),
		opts:      opts,
		views:     views,
		errors:    errors.NewErrorHandler(log),
		obs:       obs,
		logger:    log,
	}, nil
}

// Uploads exposes the upload store so the caller can run its sweeper.
func (s *Server) Uploads() *UploadStore { return s.uploads }

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, "GET /{$}", s.individualPage)
	s.handle(mux, "POST /predict", s.predictForm)
	s.handle(mux, "GET /batch", s.batchPage)
	s.handle(mux, "POST /batch/upload", s.uploadFile)
	s.handle(mux, "POST /batch/{id}/predict", s.predictUpload)
	s.handle(mux, "GET /batch/{id}/download", s.downloadResult)
	s.handle(mux, "GET /batch/template.csv", s.downloadTemplate)
	s.handle(mux, "GET /about", s.aboutPage)

	s.handle(mux, "POST /api/v1/predict", s.apiPredict)
	s.handle(mux, "POST /api/v1/batch", s.apiBatch)
	s.handle(mux, "GET /api/v1/model", s.apiModel)
	s.handle(mux, "GET /api/v1/history", s.apiHistory)

	s.handle(mux, "GET /health", s.health)
	s.handle(mux, "GET /ready", s.ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(pattern, h))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency per route pattern.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := s.obs.StartSpan(r.Context(), route)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.obs.RecordRequest(ctx, route, rec.status, time.Since(start))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{"status": "healthy"})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	snap := s.predictor.Loader().Load(r.Context())
	if !snap.Loaded() {
		body := map[string]interface{}{"status": "not ready", "model": snap.Path}
		if snap.LoadErr != nil {
			body["error"] = snap.LoadErr.Error()
		}
		s.writeJSON(w, r, http.StatusServiceUnavailable, body)
		return
	}

	failed := make(map[string]string)
	for name, check := range s.opts.ReadyChecks {
		if err := check(r.Context()); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		s.writeJSON(w, r, http.StatusServiceUnavailable, map[string]interface{}{"status": "not ready", "checks": failed})
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{"status": "ready"})
}

// writeJSON encodes v before touching the response, so an unencodable
// value becomes an INTERNAL_ERROR envelope instead of an empty 200.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		s.errors.HandleHTTPError(w, r, fmt.Errorf("encode response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// ListenAndServe runs srv until ctx is cancelled, then shuts it down within
// shutdownTimeout.
func ListenAndServe(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
