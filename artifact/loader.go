// Package artifact owns the process-wide classifier and its load lifecycle.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"go.uber.org/zap"

	"irisapi/ml"
)

// State is the lifecycle of the loaded classifier.
type State int

const (
	StateUninitialized State = iota
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type LoadErrorKind int

const (
	NotFound LoadErrorKind = iota
	Corrupt
)

func (k LoadErrorKind) String() string {
	if k == NotFound {
		return "not found"
	}
	return "corrupt"
}

// LoadError reports why the artifact at Path could not be loaded.
type LoadError struct {
	Kind LoadErrorKind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("model artifact %s (%s): %v", e.Kind, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader reads the artifact at a fixed path once. A failed load is sticky
// until Reset is called.
type Loader struct {
	path   string
	logger *zap.Logger
	load   func(path string) (ml.MLModel, error)

	mu         sync.Mutex
	state      State
	classifier ml.Classifier
	err        *LoadError
}

func NewLoader(path string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		path:   path,
		logger: logger,
		load:   ml.LoadModel,
	}
}

func (l *Loader) Path() string { return l.path }

// EnsureLoaded returns the classifier, reading it from disk on the first call.
func (l *Loader) EnsureLoaded() (ml.Classifier, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateLoaded:
		return l.classifier, nil
	case StateFailed:
		return nil, l.err
	}

	model, err := l.load(l.path)
	if err != nil {
		kind := Corrupt
		if errors.Is(err, fs.ErrNotExist) {
			kind = NotFound
		}
		l.err = &LoadError{Kind: kind, Path: l.path, Err: err}
		l.state = StateFailed
		l.logger.Error("model load failed",
			zap.String("path", l.path),
			zap.Stringer("kind", kind),
			zap.Error(err))
		return nil, l.err
	}

	l.classifier = model
	l.state = StateLoaded
	l.logger.Info("model loaded",
		zap.String("path", l.path),
		zap.String("model_type", model.Type()))
	return l.classifier, nil
}

func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Reset clears a failed load so the next EnsureLoaded retries. A loaded
// classifier is kept; it is never replaced for the life of the process.
func (l *Loader) Reset() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateFailed {
		return false
	}
	l.state = StateUninitialized
	l.err = nil
	l.logger.Info("model load failure cleared", zap.String("path", l.path))
	return true
}
