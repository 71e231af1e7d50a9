package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insight/internal/features"
	"github.com/yourusername/stock-insight/internal/models"
	"github.com/yourusername/stock-insight/internal/repository"
)

// Artifact file names inside each version directory.
const (
	modelFileName    = "model.json"
	scalerFileName   = "scaler.json"
	metadataFileName = "metadata.json"
	currentDirName   = "current"
)

// VersionStore manages immutable model artifacts on disk plus their catalog
// rows in the database. Each version owns a directory under the artifact
// root; a "current" directory mirrors whichever version is active so a cold
// process can load the serving model without a catalog lookup.
type VersionStore struct {
	repo        repository.VersionRepository
	artifactDir string
	logger      *logrus.Logger
}

// NewVersionStore creates a version store rooted at artifactDir.
func NewVersionStore(repo repository.VersionRepository, artifactDir string, logger *logrus.Logger) *VersionStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &VersionStore{repo: repo, artifactDir: artifactDir, logger: logger}
}

// NewVersionID generates a sortable version identifier, timestamp first so
// lexical order matches creation order.
func NewVersionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("v%s-%s", now.UTC().Format("20060102150405"), suffix)
}

func (vs *VersionStore) versionDir(versionID string) string {
	return filepath.Join(vs.artifactDir, versionID)
}

// versionMetadata is the metadata.json payload: the catalog row plus the
// exact feature-name list the model was trained on, so a load can detect a
// reordered or renamed schema even under an unchanged schema tag.
type versionMetadata struct {
	models.ModelVersion
	FeatureNames []string `json:"feature_names"`
}

// Save persists model, scaler and metadata as a new immutable version, and
// optionally activates it. The artifact directory is written before the
// catalog row, so a crash between the two leaves only an orphan directory,
// never a dangling row.
func (vs *VersionStore) Save(ctx context.Context, model *GBDT, scaler *StandardScaler, version *models.ModelVersion, setCurrent bool) error {
	if version.VersionID == "" {
		return fmt.Errorf("version id is required")
	}
	dir := vs.versionDir(version.VersionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	modelData, err := model.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize model: %w", err)
	}
	scalerData, err := scaler.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize scaler: %w", err)
	}
	metadata, err := json.MarshalIndent(versionMetadata{
		ModelVersion: *version,
		FeatureNames: features.Names(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize version metadata: %w", err)
	}

	files := map[string][]byte{
		modelFileName:    modelData,
		scalerFileName:   scalerData,
		metadataFileName: metadata,
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	version.ArtifactPath = dir
	if err := vs.repo.Insert(ctx, version); err != nil {
		return fmt.Errorf("failed to register model version: %w", err)
	}

	if setCurrent {
		if err := vs.repo.SetCurrent(ctx, version.VersionID); err != nil {
			return fmt.Errorf("failed to activate new version: %w", err)
		}
		version.IsCurrent = true
		if err := vs.mirrorCurrent(version); err != nil {
			vs.logger.WithError(err).WithField("version", version.VersionID).
				Warn("Failed to refresh current artifact mirror")
		}
	}

	vs.logger.WithFields(logrus.Fields{
		"version":       version.VersionID,
		"method":        version.TrainingMethod,
		"samples":       version.SampleCount,
		"test_accuracy": version.Metrics.TestAccuracy,
	}).Info("Model version saved")
	return nil
}

// Load restores a version's model and scaler from disk. A version trained
// under a different feature schema than the running extractor produces is
// rejected with ErrSchemaMismatch.
func (vs *VersionStore) Load(ctx context.Context, versionID string) (*GBDT, *StandardScaler, *models.ModelVersion, error) {
	version, err := vs.repo.GetByID(ctx, versionID)
	if err != nil {
		return nil, nil, nil, err
	}
	model, scaler, err := vs.loadArtifacts(version)
	if err != nil {
		return nil, nil, nil, err
	}
	return model, scaler, version, nil
}

// LoadCurrent restores the active version. Returns ErrNoModel when no version
// has ever been trained.
func (vs *VersionStore) LoadCurrent(ctx context.Context) (*GBDT, *StandardScaler, *models.ModelVersion, error) {
	version, err := vs.repo.GetCurrent(ctx)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil, nil, ErrNoModel
	}
	if err != nil {
		return nil, nil, nil, err
	}
	model, scaler, err := vs.loadArtifacts(version)
	if err != nil {
		return nil, nil, nil, err
	}
	return model, scaler, version, nil
}

func (vs *VersionStore) loadArtifacts(version *models.ModelVersion) (*GBDT, *StandardScaler, error) {
	if version.SchemaVersion != features.SchemaVersion {
		return nil, nil, fmt.Errorf("version %s was trained under schema %s, extractor produces %s: %w",
			version.VersionID, version.SchemaVersion, features.SchemaVersion, ErrSchemaMismatch)
	}

	dir := version.ArtifactPath
	if dir == "" {
		dir = vs.versionDir(version.VersionID)
	}

	metaData, err := os.ReadFile(filepath.Join(dir, metadataFileName))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read version metadata: %w", err)
	}
	var meta versionMetadata
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, nil, fmt.Errorf("failed to decode version metadata: %w", err)
	}
	if !sameFeatureNames(meta.FeatureNames, features.Names()) {
		return nil, nil, fmt.Errorf("version %s was trained on a different feature list than the extractor produces: %w",
			version.VersionID, ErrSchemaMismatch)
	}

	modelData, err := os.ReadFile(filepath.Join(dir, modelFileName))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read model artifact: %w", err)
	}
	model := &GBDT{}
	if err := model.UnmarshalBinary(modelData); err != nil {
		return nil, nil, err
	}

	scalerData, err := os.ReadFile(filepath.Join(dir, scalerFileName))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read scaler artifact: %w", err)
	}
	scaler := &StandardScaler{}
	if err := scaler.UnmarshalBinary(scalerData); err != nil {
		return nil, nil, err
	}
	return model, scaler, nil
}

func sameFeatureNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SetCurrent activates a version and refreshes the current-directory mirror.
func (vs *VersionStore) SetCurrent(ctx context.Context, versionID string) error {
	version, err := vs.repo.GetByID(ctx, versionID)
	if err != nil {
		return err
	}
	if err := vs.repo.SetCurrent(ctx, versionID); err != nil {
		return err
	}
	if err := vs.mirrorCurrent(version); err != nil {
		// The catalog is authoritative; a stale mirror only costs a
		// catalog lookup on cold start.
		vs.logger.WithError(err).WithField("version", versionID).
			Warn("Failed to refresh current artifact mirror")
	}
	vs.logger.WithField("version", versionID).Info("Model version activated")
	return nil
}

func (vs *VersionStore) mirrorCurrent(version *models.ModelVersion) error {
	src := version.ArtifactPath
	if src == "" {
		src = vs.versionDir(version.VersionID)
	}
	dst := filepath.Join(vs.artifactDir, currentDirName)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	for _, name := range []string{modelFileName, scalerFileName, metadataFileName} {
		data, err := os.ReadFile(filepath.Join(src, name))
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dst, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Get returns one version's catalog row.
func (vs *VersionStore) Get(ctx context.Context, versionID string) (*models.ModelVersion, error) {
	return vs.repo.GetByID(ctx, versionID)
}

// Current returns the active version's catalog row.
func (vs *VersionStore) Current(ctx context.Context) (*models.ModelVersion, error) {
	return vs.repo.GetCurrent(ctx)
}

// CurrentVersionID returns the active version id, for health reporting.
func (vs *VersionStore) CurrentVersionID(ctx context.Context) (string, error) {
	version, err := vs.repo.GetCurrent(ctx)
	if err != nil {
		return "", err
	}
	return version.VersionID, nil
}

// List returns version catalog rows, newest first.
func (vs *VersionStore) List(ctx context.Context, limit int) ([]*models.ModelVersion, error) {
	if limit <= 0 {
		limit = 50
	}
	return vs.repo.List(ctx, limit)
}

// Delete removes a version and its artifacts. The current version cannot be
// deleted; activate another version first.
func (vs *VersionStore) Delete(ctx context.Context, versionID string) error {
	version, err := vs.repo.GetByID(ctx, versionID)
	if err != nil {
		return err
	}
	if version.IsCurrent {
		return fmt.Errorf("cannot delete the current model version %s: %w", versionID, models.ErrForbidden)
	}
	if err := vs.repo.Delete(ctx, versionID); err != nil {
		return err
	}
	dir := version.ArtifactPath
	if dir == "" {
		dir = vs.versionDir(versionID)
	}
	if err := os.RemoveAll(dir); err != nil {
		vs.logger.WithError(err).WithField("version", versionID).
			Warn("Failed to remove artifact directory")
	}
	vs.logger.WithField("version", versionID).Info("Model version deleted")
	return nil
}

// Compare returns metric deltas of version b relative to version a.
func (vs *VersionStore) Compare(ctx context.Context, versionA, versionB string) (*models.VersionComparison, error) {
	a, err := vs.repo.GetByID(ctx, versionA)
	if err != nil {
		return nil, fmt.Errorf("version %s: %w", versionA, err)
	}
	b, err := vs.repo.GetByID(ctx, versionB)
	if err != nil {
		return nil, fmt.Errorf("version %s: %w", versionB, err)
	}
	return &models.VersionComparison{
		VersionA:      a.VersionID,
		VersionB:      b.VersionID,
		CVAccuracy:    b.Metrics.CVAccuracy - a.Metrics.CVAccuracy,
		TestAccuracy:  b.Metrics.TestAccuracy - a.Metrics.TestAccuracy,
		TestF1:        b.Metrics.TestF1 - a.Metrics.TestF1,
		TestPrecision: b.Metrics.TestPrecision - a.Metrics.TestPrecision,
		TestRecall:    b.Metrics.TestRecall - a.Metrics.TestRecall,
		SampleCount:   b.SampleCount - a.SampleCount,
	}, nil
}
