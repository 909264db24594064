package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/equipwatch/equipwatch/internal/artifact"
	"github.com/equipwatch/equipwatch/pkg/constants"
	"github.com/equipwatch/equipwatch/pkg/errors"
	"github.com/equipwatch/equipwatch/pkg/interfaces"
	"github.com/equipwatch/equipwatch/pkg/models"
)

// document is the persisted registry state. Every mutation rewrites the whole
// document; the file is small (one record per model generation) and a full
// rewrite keeps it impossible to observe a half-applied promotion on disk.
type document struct {
	Models                 map[string]*models.ModelArtifact `json:"models"`
	CurrentProductionModel *string                          `json:"current_production_model"`
	StagingModel           *string                          `json:"staging_model"`
	LastUpdated            time.Time                        `json:"last_updated"`
}

// Registry is the catalogue of every model generation the service has ever
// produced. It is the single writer of the registry document; all mutations
// go through its lock.
type Registry struct {
	mu     sync.RWMutex
	logger *logrus.Logger
	store  *artifact.Store
	path   string
	doc    document
	loaded bool
}

// NewRegistry creates a registry persisted under the store's metadata
// directory. Call Initialize before use.
func NewRegistry(store *artifact.Store, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		logger: logger,
		store:  store,
		path:   filepath.Join(store.MetadataDir(), constants.RegistryFile),
		doc:    emptyDocument(),
	}
}

func emptyDocument() document {
	return document{
		Models:      make(map[string]*models.ModelArtifact),
		LastUpdated: time.Now().UTC(),
	}
}

// Initialize loads the registry document from disk. A missing file starts an
// empty registry; a corrupt file is logged and replaced rather than blocking
// startup. Safe to call more than once.
func (r *Registry) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		r.loaded = true
		return r.persistLocked()
	}
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			"failed to read registry document")
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		r.logger.WithError(err).Warn("Registry document is corrupt, starting with empty registry")
		r.doc = emptyDocument()
		r.loaded = true
		return r.persistLocked()
	}

	if doc.Models == nil {
		doc.Models = make(map[string]*models.ModelArtifact)
	}
	r.doc = doc
	r.loaded = true

	r.logger.WithFields(logrus.Fields{
		"models":     len(r.doc.Models),
		"production": deref(r.doc.CurrentProductionModel),
	}).Info("Loaded model registry")

	return nil
}

// CreateVersion registers an already-trained model as a new artifact: bumps
// the latest version, writes the model files via the persister, fingerprints
// the directory and records the artifact in TRAINING status.
func (r *Registry) CreateVersion(ctx context.Context, persister interfaces.ModelPersister, bump models.VersionBump, metadata map[string]interface{}, createdBy string) (*models.ModelArtifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	version := r.nextVersionLocked(bump)
	id := fmt.Sprintf("%s_%s_%d", constants.ModelFamily, version.String(), time.Now().Unix())

	dir, err := r.store.CreateArtifactDir(id)
	if err != nil {
		return nil, err
	}

	if err := persister.SaveTo(ctx, dir); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			fmt.Sprintf("failed to persist model files for %s", id))
	}

	checksum, err := r.store.Checksum(dir)
	if err != nil {
		return nil, err
	}
	size, err := r.store.Size(dir)
	if err != nil {
		return nil, err
	}

	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	art := &models.ModelArtifact{
		ID:                 id,
		Version:            version,
		Status:             models.StatusTraining,
		CreatedAt:          time.Now().UTC(),
		CreatedBy:          createdBy,
		StoragePath:        dir,
		Checksum:           checksum,
		SizeBytes:          size,
		Metadata:           metadata,
		PerformanceMetrics: make(map[string]float64),
		DeploymentConfig:   make(map[string]interface{}),
	}

	r.doc.Models[id] = art
	if err := r.persistLocked(); err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"model_id":   id,
		"version":    version.String(),
		"created_by": createdBy,
		"size_bytes": size,
	}).Info("Created model version")

	return cloneArtifact(art), nil
}

// nextVersionLocked returns the version for a newly created artifact: the
// first artifact is 1.0.0, every later one bumps the highest version on
// record.
func (r *Registry) nextVersionLocked(bump models.VersionBump) models.ModelVersion {
	if len(r.doc.Models) == 0 {
		return models.ModelVersion{Major: 1, Minor: 0, Patch: 0}
	}
	return r.latestVersionLocked().Bump(bump)
}

func (r *Registry) latestVersionLocked() models.ModelVersion {
	latest := models.ModelVersion{Major: 1, Minor: 0, Patch: 0}
	for _, art := range r.doc.Models {
		if latest.Less(art.Version) {
			latest = art.Version
		}
	}
	return latest
}

// LatestVersion returns the highest version on record, or 1.0.0 when the
// registry is empty
func (r *Registry) LatestVersion() models.ModelVersion {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latestVersionLocked()
}

// NextVersion returns the version CreateVersion would assign for the given
// bump. Advisory only; CreateVersion recomputes under its own lock.
func (r *Registry) NextVersion(bump models.VersionBump) models.ModelVersion {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextVersionLocked(bump)
}

// Get returns the artifact with the given id
func (r *Registry) Get(id string) (*models.ModelArtifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	art, ok := r.doc.Models[id]
	if !ok {
		return nil, errors.NewNotFoundError(errors.CodeArtifactNotFound,
			fmt.Sprintf("model artifact not found: %s", id)).WithContext("model_id", id)
	}
	return cloneArtifact(art), nil
}

// FindByVersion returns the artifact carrying the given version. When several
// artifacts share a version the most recently created wins.
func (r *Registry) FindByVersion(version models.ModelVersion) (*models.ModelArtifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *models.ModelArtifact
	for _, art := range r.doc.Models {
		if art.Version.Compare(version) != 0 {
			continue
		}
		if found == nil || found.CreatedAt.Before(art.CreatedAt) {
			found = art
		}
	}
	if found == nil {
		return nil, errors.NewNotFoundError(errors.CodeVersionNotFound,
			fmt.Sprintf("no artifact with version %s", version.String()))
	}
	return cloneArtifact(found), nil
}

// FindLatestDeprecated returns the most recently created deprecated
// artifact, the default rollback target. Ties on creation time break toward
// the higher version.
func (r *Registry) FindLatestDeprecated() (*models.ModelArtifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *models.ModelArtifact
	for _, art := range r.doc.Models {
		if art.Status != models.StatusDeprecated {
			continue
		}
		switch {
		case found == nil,
			found.CreatedAt.Before(art.CreatedAt),
			found.CreatedAt.Equal(art.CreatedAt) && found.Version.Less(art.Version):
			found = art
		}
	}
	if found == nil {
		return nil, errors.NewNotFoundError(errors.CodeNoRollbackTarget,
			"no deprecated model available to roll back to")
	}
	return cloneArtifact(found), nil
}

// CurrentProduction returns the artifact currently serving production traffic
func (r *Registry) CurrentProduction() (*models.ModelArtifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.doc.CurrentProductionModel == nil {
		return nil, errors.NewNotFoundError(errors.CodeNoProduction, "no production model")
	}
	art, ok := r.doc.Models[*r.doc.CurrentProductionModel]
	if !ok {
		return nil, errors.NewNotFoundError(errors.CodeArtifactNotFound,
			fmt.Sprintf("production model missing from catalogue: %s", *r.doc.CurrentProductionModel))
	}
	return cloneArtifact(art), nil
}

// RecordValidation stores a validation result on the artifact and moves it to
// VALIDATION or FAILED status accordingly
func (r *Registry) RecordValidation(ctx context.Context, id string, result *models.ValidationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	art, ok := r.doc.Models[id]
	if !ok {
		return errors.NewNotFoundError(errors.CodeArtifactNotFound,
			fmt.Sprintf("model artifact not found: %s", id))
	}

	next := models.StatusValidation
	if !result.Passed {
		next = models.StatusFailed
	}
	if art.Status != next && !art.Status.CanTransitionTo(next) {
		return errors.NewPreconditionError(errors.CodeInvalidTransition,
			fmt.Sprintf("cannot move %s from %s to %s", id, art.Status, next))
	}

	art.ValidationResults = result
	art.Status = next
	if art.PerformanceMetrics == nil {
		art.PerformanceMetrics = make(map[string]float64)
	}
	art.PerformanceMetrics["r2_score"] = result.Metrics.R2Score
	art.PerformanceMetrics["rmse"] = result.Metrics.RMSE
	art.PerformanceMetrics["mae"] = result.Metrics.MAE

	return r.persistLocked()
}

// SetStaging marks the artifact as the staging candidate
func (r *Registry) SetStaging(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	art, ok := r.doc.Models[id]
	if !ok {
		return errors.NewNotFoundError(errors.CodeArtifactNotFound,
			fmt.Sprintf("model artifact not found: %s", id))
	}
	if art.Status != models.StatusStaging {
		if !art.Status.CanTransitionTo(models.StatusStaging) {
			return errors.NewPreconditionError(errors.CodeInvalidTransition,
				fmt.Sprintf("cannot stage %s from status %s", id, art.Status))
		}
		art.Status = models.StatusStaging
	}
	r.doc.StagingModel = &id

	return r.persistLocked()
}

// Promote makes the artifact the production model in one registry mutation:
// the previous production model (if any) is deprecated, the new one is marked
// PRODUCTION and the production pointer is replaced. At most one artifact is
// in PRODUCTION status at any time.
func (r *Registry) Promote(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	art, ok := r.doc.Models[id]
	if !ok {
		return errors.NewNotFoundError(errors.CodeArtifactNotFound,
			fmt.Sprintf("model artifact not found: %s", id))
	}
	if art.Status != models.StatusProduction && !art.Status.CanTransitionTo(models.StatusProduction) {
		return errors.NewPreconditionError(errors.CodeInvalidTransition,
			fmt.Sprintf("cannot promote %s from status %s", id, art.Status))
	}

	var previous string
	if r.doc.CurrentProductionModel != nil && *r.doc.CurrentProductionModel != id {
		if prev, ok := r.doc.Models[*r.doc.CurrentProductionModel]; ok {
			prev.Status = models.StatusDeprecated
			previous = prev.ID
		}
	}

	art.Status = models.StatusProduction
	r.doc.CurrentProductionModel = &id
	if r.doc.StagingModel != nil && *r.doc.StagingModel == id {
		r.doc.StagingModel = nil
	}

	if err := r.persistLocked(); err != nil {
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"model_id": id,
		"version":  art.Version.String(),
		"replaced": previous,
	}).Info("Promoted model to production")

	return nil
}

// List returns every artifact sorted by version ascending, then creation time
func (r *Registry) List() []*models.ModelArtifact {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.ModelArtifact, 0, len(r.doc.Models))
	for _, art := range r.doc.Models {
		out = append(out, cloneArtifact(art))
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Version.Compare(out[j].Version); c != 0 {
			return c < 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// StagingModel returns the staging candidate id, or "" when none is staged
func (r *Registry) StagingModel() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return deref(r.doc.StagingModel)
}

// Summary describes the registry for status reporting
type Summary struct {
	TotalModels     int                   `json:"total_models"`
	ProductionModel *models.ModelArtifact `json:"production_model,omitempty"`
	StagingModel    string                `json:"staging_model,omitempty"`
	LatestVersion   string                `json:"latest_version"`
	StatusCounts    map[string]int        `json:"status_counts"`
	LastUpdated     time.Time             `json:"last_updated"`
}

// Status summarizes the catalogue
func (r *Registry) Status() *Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := &Summary{
		TotalModels:   len(r.doc.Models),
		StagingModel:  deref(r.doc.StagingModel),
		LatestVersion: r.latestVersionLocked().String(),
		StatusCounts:  make(map[string]int),
		LastUpdated:   r.doc.LastUpdated,
	}
	for _, art := range r.doc.Models {
		s.StatusCounts[string(art.Status)]++
	}
	if r.doc.CurrentProductionModel != nil {
		if art, ok := r.doc.Models[*r.doc.CurrentProductionModel]; ok {
			s.ProductionModel = cloneArtifact(art)
		}
	}
	return s
}

// persistLocked rewrites the registry document. Callers hold the write lock.
func (r *Registry) persistLocked() error {
	r.doc.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(&r.doc, "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to encode registry document")
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to write registry document")
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to replace registry document")
	}
	return nil
}

// cloneArtifact deep-copies an artifact so callers cannot mutate registry
// state behind the lock
func cloneArtifact(art *models.ModelArtifact) *models.ModelArtifact {
	cp := *art
	cp.Metadata = copyAnyMap(art.Metadata)
	cp.DeploymentConfig = copyAnyMap(art.DeploymentConfig)
	if art.PerformanceMetrics != nil {
		cp.PerformanceMetrics = make(map[string]float64, len(art.PerformanceMetrics))
		for k, v := range art.PerformanceMetrics {
			cp.PerformanceMetrics[k] = v
		}
	}
	if art.ValidationResults != nil {
		vr := *art.ValidationResults
		cp.ValidationResults = &vr
	}
	return &cp
}

func copyAnyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
