package scoring

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/equipwatch/equipwatch/pkg/interfaces"
)

// Loader instantiates serving model instances from artifact directories
type Loader struct {
	logger *logrus.Logger
}

// NewLoader creates a model loader
func NewLoader(logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Loader{logger: logger}
}

// LoadFrom loads a fully-initialized scoring service from the model files in
// dir. The returned instance is independent of any previously loaded model;
// callers swap it into service atomically.
func (l *Loader) LoadFrom(ctx context.Context, dir string) (interfaces.ModelInstance, error) {
	svc := NewService(dir, l.logger)
	if err := svc.Load(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}
