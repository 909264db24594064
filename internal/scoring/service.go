package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/equipwatch/equipwatch/pkg/constants"
	"github.com/equipwatch/equipwatch/pkg/errors"
	"github.com/equipwatch/equipwatch/pkg/models"
)

const (
	// ridgeLambda regularizes the least-squares fit; telemetry features are
	// strongly collinear (mean/max pairs), so the normal equations need it.
	ridgeLambda = 1e-2

	confidenceZ = 1.96 // 95% interval
)

// Service is the equipment health scoring model: a ridge regression over
// standardized telemetry features producing 0-100 health scores with
// confidence intervals and explanatory factors. It fills both collaborator
// roles for the lifecycle subsystem: training and inference.
type Service struct {
	logger      *logrus.Logger
	storagePath string
	rng         *rand.Rand

	mu           sync.RWMutex
	featureNames []string
	weights      []float64
	intercept    float64
	featureMeans []float64
	featureStds  []float64
	residualStd  float64
	version      string
	metadata     *models.ModelMetadata
}

// serializedModel is the on-disk shape of a trained model
type serializedModel struct {
	ModelVersion string    `json:"model_version"`
	Weights      []float64 `json:"weights"`
	Intercept    float64   `json:"intercept"`
	FeatureMeans []float64 `json:"feature_means"`
	FeatureStds  []float64 `json:"feature_stds"`
	ResidualStd  float64   `json:"residual_std"`
}

// NewService creates a scoring service rooted at storagePath
func NewService(storagePath string, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}

	return &Service{
		logger:      logger,
		storagePath: storagePath,
		rng:         rand.New(rand.NewSource(42)),
		version:     "1.0.0",
	}
}

// Train fits the health scoring model on the given feature set. Labels are
// synthesized from equipment condition indicators when no maintenance
// history exists. Requires at least 3 device samples.
func (s *Service) Train(ctx context.Context, features *models.FeatureSet) (*models.ModelMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := features.SampleCount()
	if n < 3 {
		return nil, errors.NewValidationError(errors.CodeInsufficientData,
			fmt.Sprintf("insufficient training data: %d samples (minimum 3 required)", n))
	}

	s.logger.WithField("samples", n).Info("Starting health scoring model training")

	names := constants.TrainingFeatures
	x, y := s.buildTrainingMatrix(features, names)

	trainIdx, testIdx := splitIndices(n, s.rng)

	means, stds := columnStats(x, trainIdx)
	weights, intercept, err := fitRidge(x, y, trainIdx, means, stds)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeTrainingFailed,
			"ridge fit failed")
	}

	s.featureNames = names
	s.weights = weights
	s.intercept = intercept
	s.featureMeans = means
	s.featureStds = stds

	r2, rmse, residualStd := s.evaluate(x, y, testIdx)
	s.residualStd = residualStd

	cvScore := s.crossValidate(x, y, r2)

	s.metadata = &models.ModelMetadata{
		ModelVersion:           s.version,
		TrainingDate:           time.Now().UTC(),
		FeatureCount:           len(names),
		TrainingSamples:        n,
		CrossValScore:          cvScore,
		R2Score:                r2,
		RMSE:                   rmse,
		FeatureImportanceTop10: s.topImportances(10),
	}

	if err := s.saveToLocked(ctx, s.storagePath); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"r2_score": r2,
		"rmse":     rmse,
		"cv_score": cvScore,
	}).Info("Model training completed")

	return s.metadata, nil
}

// buildTrainingMatrix assembles the feature matrix and synthetic labels in
// canonical feature order
func (s *Service) buildTrainingMatrix(features *models.FeatureSet, names []string) (*mat.Dense, []float64) {
	ids := features.DeviceIDs()
	sort.Strings(ids)

	x := mat.NewDense(len(ids), len(names), nil)
	y := make([]float64, len(ids))

	for i, id := range ids {
		vector := features.Features[id]
		for j, name := range names {
			x.Set(i, j, featureValue(vector, name))
		}
		y[i] = s.syntheticHealthLabel(vector)
	}

	return x, y
}

// evaluate computes test metrics on the 0-100 health score scale. Very small
// test sets fall back to placeholder metrics.
func (s *Service) evaluate(x *mat.Dense, y []float64, testIdx []int) (r2, rmse, residualStd float64) {
	if len(testIdx) < 2 {
		s.logger.Warn("Test set too small for meaningful metrics, using placeholder values")
		return 0.5, 10.0, 10.0
	}

	predicted := make([]float64, len(testIdx))
	observed := make([]float64, len(testIdx))
	for k, i := range testIdx {
		predicted[k] = s.predictRowLocked(x.RawRowView(i)) * 100
		observed[k] = y[i] * 100
	}

	r2 = stat.RSquaredFrom(predicted, observed, nil)
	var sqSum, absSum float64
	for k := range predicted {
		diff := predicted[k] - observed[k]
		sqSum += diff * diff
		absSum += math.Abs(diff)
	}
	rmse = math.Sqrt(sqSum / float64(len(predicted)))
	residualStd = rmse
	return r2, rmse, residualStd
}

// crossValidate runs k-fold cross validation on the full dataset; datasets
// too small for meaningful folds reuse the test r².
func (s *Service) crossValidate(x *mat.Dense, y []float64, fallback float64) float64 {
	n := len(y)
	folds := 5
	if n < folds {
		folds = n
	}
	if folds < 2 || n < 4 {
		s.logger.Warn("Dataset too small for cross-validation, using test r2 score")
		return fallback
	}

	perm := s.rng.Perm(n)
	scores := make([]float64, 0, folds)

	for f := 0; f < folds; f++ {
		var trainIdx, testIdx []int
		for k, i := range perm {
			if k%folds == f {
				testIdx = append(testIdx, i)
			} else {
				trainIdx = append(trainIdx, i)
			}
		}
		if len(testIdx) < 2 || len(trainIdx) < 2 {
			continue
		}

		means, stds := columnStats(x, trainIdx)
		weights, intercept, err := fitRidge(x, y, trainIdx, means, stds)
		if err != nil {
			continue
		}

		predicted := make([]float64, len(testIdx))
		observed := make([]float64, len(testIdx))
		for k, i := range testIdx {
			predicted[k] = predictRow(x.RawRowView(i), weights, intercept, means, stds)
			observed[k] = y[i]
		}
		scores = append(scores, stat.RSquaredFrom(predicted, observed, nil))
	}

	if len(scores) == 0 {
		return fallback
	}
	return stat.Mean(scores, nil)
}

// Score predicts a health score for one device's feature vector
func (s *Service) Score(ctx context.Context, deviceID string, features map[string]float64) (*models.HealthScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.weights == nil {
		return nil, errors.NewPreconditionError(errors.CodeModelNotTrained, "model not trained or loaded")
	}

	// Features absent from the device's vector fall back to their healthy
	// default, or to the training mean so they contribute nothing. Zero is
	// far outside the training range for most telemetry channels and would
	// make the fit extrapolate wildly.
	row := make([]float64, len(s.featureNames))
	for j, name := range s.featureNames {
		if v, ok := features[name]; ok {
			row[j] = v
		} else if def, ok := constants.FeatureDefaults[name]; ok {
			row[j] = def
		} else {
			row[j] = s.featureMeans[j]
		}
	}

	raw := s.predictRowLocked(row)
	score := clamp(raw*100, 0, 100)

	interval := models.ConfidenceInterval{
		Lower: clamp(score-confidenceZ*s.residualStd, 0, 100),
		Upper: clamp(score+confidenceZ*s.residualStd, 0, 100),
	}

	return &models.HealthScore{
		DeviceID:           deviceID,
		HealthScore:        score,
		ConfidenceInterval: interval,
		ExplanatoryFactors: s.explanatoryFactors(features),
		Timestamp:          time.Now().UTC(),
		ModelVersion:       s.version,
		RiskLevel:          riskLevel(score / 100),
	}, nil
}

// ScoreAll predicts health scores for every device in the set
func (s *Service) ScoreAll(ctx context.Context, features *models.FeatureSet) (map[string]*models.HealthScore, error) {
	scores := make(map[string]*models.HealthScore, features.SampleCount())
	for id, vector := range features.Features {
		score, err := s.Score(ctx, id, vector)
		if err != nil {
			return nil, err
		}
		scores[id] = score
	}

	s.logger.WithField("devices", len(scores)).Debug("Calculated health scores")
	return scores, nil
}

// Loaded reports whether the service holds a usable model
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weights != nil && len(s.featureNames) > 0
}

// Metadata returns the last training metadata, if any
func (s *Service) Metadata() *models.ModelMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadata
}

// SaveTo writes the serialized model, its metadata document and the
// feature-name list into dir
func (s *Service) SaveTo(ctx context.Context, dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveToLocked(ctx, dir)
}

func (s *Service) saveToLocked(_ context.Context, dir string) error {
	if s.weights == nil {
		return errors.NewPreconditionError(errors.CodeModelNotTrained, "nothing to save: model not trained")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			fmt.Sprintf("failed to create model directory: %s", dir))
	}

	model := serializedModel{
		ModelVersion: s.version,
		Weights:      s.weights,
		Intercept:    s.intercept,
		FeatureMeans: s.featureMeans,
		FeatureStds:  s.featureStds,
		ResidualStd:  s.residualStd,
	}

	if err := writeJSON(filepath.Join(dir, constants.ModelFile), model); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, constants.FeatureNamesFile), s.featureNames); err != nil {
		return err
	}
	if s.metadata != nil {
		if err := writeJSON(filepath.Join(dir, constants.ModelMetadataFile), s.metadata); err != nil {
			return err
		}
	}

	s.logger.WithField("dir", dir).Info("Saved model files")
	return nil
}

// Load reads model files from the service's storage path
func (s *Service) Load(ctx context.Context) error {
	return s.LoadDir(ctx, s.storagePath)
}

// LoadDir reads model files from dir into the service
func (s *Service) LoadDir(_ context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var model serializedModel
	if err := readJSON(filepath.Join(dir, constants.ModelFile), &model); err != nil {
		return errors.WrapError(err, errors.ErrorTypeLoadFailure, errors.CodeModelLoadFailed,
			fmt.Sprintf("cannot read model file in %s", dir))
	}

	var names []string
	if err := readJSON(filepath.Join(dir, constants.FeatureNamesFile), &names); err != nil {
		return errors.WrapError(err, errors.ErrorTypeLoadFailure, errors.CodeModelLoadFailed,
			fmt.Sprintf("cannot read feature names in %s", dir))
	}

	if len(model.Weights) != len(names) ||
		len(model.FeatureMeans) != len(names) ||
		len(model.FeatureStds) != len(names) {
		return errors.NewLoadFailureError(errors.CodeModelLoadFailed,
			fmt.Sprintf("corrupt model in %s: weight/feature dimensions disagree", dir))
	}

	var metadata models.ModelMetadata
	if err := readJSON(filepath.Join(dir, constants.ModelMetadataFile), &metadata); err == nil {
		s.metadata = &metadata
	} else if !os.IsNotExist(err) {
		s.logger.WithError(err).Warn("Model metadata unreadable, continuing without it")
	}

	s.featureNames = names
	s.weights = model.Weights
	s.intercept = model.Intercept
	s.featureMeans = model.FeatureMeans
	s.featureStds = model.FeatureStds
	s.residualStd = model.ResidualStd
	if model.ModelVersion != "" {
		s.version = model.ModelVersion
	}

	s.logger.WithField("dir", dir).Info("Model loaded")
	return nil
}

// SetVersion stamps the version string recorded on predictions and saved
// model files
func (s *Service) SetVersion(version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = version
}

func (s *Service) predictRowLocked(row []float64) float64 {
	return predictRow(row, s.weights, s.intercept, s.featureMeans, s.featureStds)
}

// explanatoryFactors returns the top-3 features by importance with a
// human-readable impact interpretation
func (s *Service) explanatoryFactors(features map[string]float64) []models.ExplanatoryFactor {
	type ranked struct {
		name       string
		importance float64
	}

	total := 0.0
	rankings := make([]ranked, len(s.weights))
	for j, w := range s.weights {
		rankings[j] = ranked{name: s.featureNames[j], importance: math.Abs(w)}
		total += math.Abs(w)
	}
	sort.Slice(rankings, func(i, j int) bool { return rankings[i].importance > rankings[j].importance })

	factors := make([]models.ExplanatoryFactor, 0, 3)
	for _, r := range rankings {
		if len(factors) == 3 {
			break
		}
		importance := 0.0
		if total > 0 {
			importance = r.importance / total
		}
		value := featureValue(features, r.name)
		factors = append(factors, models.ExplanatoryFactor{
			Feature:    r.name,
			Value:      value,
			Importance: importance,
			Impact:     interpretImpact(r.name, value),
		})
	}
	return factors
}

// topImportances ranks features by normalized absolute weight
func (s *Service) topImportances(limit int) []models.FeatureImportance {
	total := 0.0
	for _, w := range s.weights {
		total += math.Abs(w)
	}

	ranked := make([]models.FeatureImportance, len(s.weights))
	for j, w := range s.weights {
		importance := 0.0
		if total > 0 {
			importance = math.Abs(w) / total
		}
		ranked[j] = models.FeatureImportance{Feature: s.featureNames[j], Importance: importance}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Importance > ranked[j].Importance })

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// fitRidge solves the regularized normal equations on standardized features.
// The intercept absorbs the label mean.
func fitRidge(x *mat.Dense, y []float64, trainIdx []int, means, stds []float64) ([]float64, float64, error) {
	_, d := x.Dims()
	n := len(trainIdx)

	yMean := 0.0
	for _, i := range trainIdx {
		yMean += y[i]
	}
	yMean /= float64(n)

	z := mat.NewDense(n, d, nil)
	yc := mat.NewVecDense(n, nil)
	for k, i := range trainIdx {
		for j := 0; j < d; j++ {
			z.Set(k, j, (x.At(i, j)-means[j])/stds[j])
		}
		yc.SetVec(k, y[i]-yMean)
	}

	var ztz mat.Dense
	ztz.Mul(z.T(), z)
	for j := 0; j < d; j++ {
		ztz.Set(j, j, ztz.At(j, j)+ridgeLambda)
	}

	var zty mat.VecDense
	zty.MulVec(z.T(), yc)

	var w mat.VecDense
	if err := w.SolveVec(&ztz, &zty); err != nil {
		return nil, 0, err
	}

	weights := make([]float64, d)
	copy(weights, w.RawVector().Data)
	return weights, yMean, nil
}

func predictRow(row, weights []float64, intercept float64, means, stds []float64) float64 {
	pred := intercept
	for j, w := range weights {
		pred += w * (row[j] - means[j]) / stds[j]
	}
	return pred
}

// columnStats computes per-feature mean and standard deviation over the
// training rows; zero-variance columns get std 1 so standardization is a
// no-op for them.
func columnStats(x *mat.Dense, trainIdx []int) (means, stds []float64) {
	_, d := x.Dims()
	means = make([]float64, d)
	stds = make([]float64, d)

	col := make([]float64, len(trainIdx))
	for j := 0; j < d; j++ {
		for k, i := range trainIdx {
			col[k] = x.At(i, j)
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		means[j] = mean
		stds[j] = std
	}
	return means, stds
}

// splitIndices holds out ~20% of samples for testing when the dataset is
// large enough; tiny datasets train and test on everything.
func splitIndices(n int, rng *rand.Rand) (trainIdx, testIdx []int) {
	if n < 5 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, all
	}

	perm := rng.Perm(n)
	testSize := n / 5
	if testSize < 2 {
		testSize = 2
	}
	testIdx = perm[:testSize]
	trainIdx = perm[testSize:]
	return trainIdx, testIdx
}

func featureValue(features map[string]float64, name string) float64 {
	if v, ok := features[name]; ok {
		return v
	}
	if def, ok := constants.FeatureDefaults[name]; ok {
		return def
	}
	return 0
}

// riskLevel maps a 0-1 normalized health score onto a risk band
func riskLevel(normalized float64) string {
	switch {
	case normalized <= 0.25:
		return models.RiskCritical
	case normalized <= 0.50:
		return models.RiskHigh
	case normalized <= 0.75:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func interpretImpact(name string, value float64) string {
	switch {
	case strings.Contains(name, "battery"):
		switch {
		case value < 50:
			return "Low battery level - critical"
		case value < 80:
			return "Moderate battery drain"
		default:
			return "Good battery health"
		}
	case strings.Contains(name, "temperature"):
		switch {
		case value > 60:
			return "High temperature - concerning"
		case value > 40:
			return "Elevated temperature"
		default:
			return "Normal temperature"
		}
	case strings.Contains(name, "vibration"):
		switch {
		case value > 1.0:
			return "High vibration - mechanical issue"
		case value > 0.5:
			return "Elevated vibration"
		default:
			return "Normal vibration levels"
		}
	case strings.Contains(name, "current"):
		switch {
		case value > 15:
			return "High current draw"
		case value > 10:
			return "Moderate current consumption"
		default:
			return "Normal current levels"
		}
	case strings.Contains(name, "efficiency"):
		switch {
		case value < 0.6:
			return "Low operational efficiency"
		case value < 0.8:
			return "Moderate efficiency"
		default:
			return "High efficiency"
		}
	default:
		return fmt.Sprintf("Value: %.2f", value)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func writeJSON(path string, v interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			fmt.Sprintf("failed to create file: %s", path))
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			fmt.Sprintf("failed to encode JSON: %s", path))
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return json.NewDecoder(file).Decode(v)
}
