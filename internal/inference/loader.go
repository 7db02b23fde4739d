package inference

import (
	"context"
	stderrors "errors"
	"os"
	"sync"
	"time"

	"passos-predictor/internal/common/errors"
	commonhttp "passos-predictor/internal/common/http"
	"passos-predictor/internal/common/logger"
	"passos-predictor/internal/models"
	"passos-predictor/pkg/artifact"
)

// Snapshot is the result of the one-time artifact load. A snapshot without a
// model is the "not loaded" state; the process keeps serving and every
// prediction reports ErrCodeModelNotLoaded.
type Snapshot struct {
	Model    *Model
	Metadata models.ModelMetadata
	Path     string
	LoadErr  error
	LoadedAt time.Time
}

// Loaded reports whether a pipeline is available.
func (s *Snapshot) Loaded() bool {
	return s != nil && s.Model != nil
}

// Pipeline returns the loaded pipeline or a MODEL_NOT_LOADED error.
func (s *Snapshot) Pipeline() (Pipeline, error) {
	if !s.Loaded() {
		stdErr := errors.NewModelNotLoadedError(s.Path)
		if s.LoadErr != nil && !stderrors.Is(s.LoadErr, os.ErrNotExist) {
			stdErr = errors.NewModelLoadFailedError(s.Path, s.LoadErr)
		}
		return nil, stdErr
	}
	return s.Model, nil
}

// Loader loads the pipeline artifact and its metadata at most once per
// process and hands the same snapshot to every caller.
type Loader struct {
	modelPath    string
	metadataPath string
	client       *commonhttp.Client
	logger       logger.Logger

	once     sync.Once
	snapshot *Snapshot
}

func NewLoader(modelPath, metadataPath string, client *commonhttp.Client, log logger.Logger) *Loader {
	if client == nil {
		client = commonhttp.NewClient(30 * time.Second)
	}
	return &Loader{
		modelPath:    modelPath,
		metadataPath: metadataPath,
		client:       client,
		logger:       log,
	}
}

// NewStaticLoader wraps an already built snapshot, mainly for tests and the
// CLI.
func NewStaticLoader(s *Snapshot) *Loader {
	l := &Loader{snapshot: s, logger: logger.NewNoOpLogger()}
	l.once.Do(func() {})
	return l
}

// Load performs the load on first call; later calls return the cached
// snapshot, including a cached failure.
func (l *Loader) Load(ctx context.Context) *Snapshot {
	l.once.Do(func() {
		l.snapshot = l.load(ctx)
	})
	return l.snapshot
}

func (l *Loader) load(ctx context.Context) *Snapshot {
	s := &Snapshot{Path: l.modelPath, LoadedAt: time.Now().UTC()}

	a, err := l.readArtifact(ctx)
	if err != nil {
		s.LoadErr = err
		if stderrors.Is(err, os.ErrNotExist) {
			l.logger.Warn("Pipeline artifact not found, predictions disabled", map[string]interface{}{
				"path": l.modelPath,
			})
		} else {
			l.logger.Error("Failed to load pipeline artifact", map[string]interface{}{
				"path":  l.modelPath,
				"error": err,
			})
		}
		return s
	}

	model, err := NewModel(a)
	if err != nil {
		s.LoadErr = err
		l.logger.Error("Invalid pipeline artifact", map[string]interface{}{
			"path":  l.modelPath,
			"error": err,
		})
		return s
	}
	s.Model = model
	s.Metadata = a.Metadata

	if meta, ok := l.readMetadata(); ok {
		s.Metadata = *meta
	}
	if len(s.Metadata.AllFeatures) == 0 {
		s.Metadata.AllFeatures = model.Features()
	}
	if s.Metadata.BestModelName == "" {
		s.Metadata.BestModelName = model.Name()
	}

	l.logger.Info("Pipeline loaded", map[string]interface{}{
		"path":     l.modelPath,
		"model":    s.Metadata.BestModelName,
		"features": len(s.Metadata.AllFeatures),
	})
	return s
}

func (l *Loader) readArtifact(ctx context.Context) (*artifact.Artifact, error) {
	if commonhttp.IsRemote(l.modelPath) {
		data, err := l.client.Fetch(ctx, l.modelPath)
		if err != nil {
			return nil, err
		}
		return artifact.Parse(data)
	}
	return artifact.Load(l.modelPath)
}

// readMetadata loads the standalone metadata file. It takes precedence over
// the copy embedded in the artifact.
func (l *Loader) readMetadata() (*models.ModelMetadata, bool) {
	if l.metadataPath == "" {
		return nil, false
	}
	meta, err := artifact.LoadMetadata(l.metadataPath)
	if err != nil {
		if !stderrors.Is(err, os.ErrNotExist) {
			l.logger.Warn("Ignoring unreadable model metadata", map[string]interface{}{
				"path":  l.metadataPath,
				"error": err,
			})
		}
		return nil, false
	}
	return meta, true
}
