package ml

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/stock-insight/internal/features"
	"github.com/yourusername/stock-insight/internal/models"
)

// fakeVersionRepo is an in-memory VersionRepository.
type fakeVersionRepo struct {
	mu       sync.Mutex
	versions map[string]*models.ModelVersion
	inserted []string
}

func newFakeVersionRepo() *fakeVersionRepo {
	return &fakeVersionRepo{versions: make(map[string]*models.ModelVersion)}
}

func (r *fakeVersionRepo) Insert(ctx context.Context, version *models.ModelVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions[version.VersionID] = version
	r.inserted = append(r.inserted, version.VersionID)
	return nil
}

func (r *fakeVersionRepo) GetByID(ctx context.Context, versionID string) (*models.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	version, ok := r.versions[versionID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return version, nil
}

func (r *fakeVersionRepo) GetCurrent(ctx context.Context) (*models.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, version := range r.versions {
		if version.IsCurrent {
			return version, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *fakeVersionRepo) List(ctx context.Context, limit int) ([]*models.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ModelVersion
	for _, version := range r.versions {
		out = append(out, version)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionID > out[j].VersionID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeVersionRepo) SetCurrent(ctx context.Context, versionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.versions[versionID]
	if !ok {
		return models.ErrNotFound
	}
	for _, version := range r.versions {
		version.IsCurrent = false
	}
	target.IsCurrent = true
	return nil
}

func (r *fakeVersionRepo) Delete(ctx context.Context, versionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.versions[versionID]; !ok {
		return models.ErrNotFound
	}
	delete(r.versions, versionID)
	return nil
}

// trainedArtifacts builds a small trained model and fitted scaler over the
// full feature schema.
func trainedArtifacts(t *testing.T) (*GBDT, *StandardScaler) {
	t.Helper()
	n := features.Count()
	X := make([][]float64, 40)
	y := make([]int, 40)
	for i := range X {
		row := make([]float64, n)
		for j := range row {
			row[j] = float64((i+j)%7) * 0.1
		}
		if i%2 == 0 {
			row[0] = 2
			y[i] = 1
		} else {
			row[0] = -2
		}
		X[i] = row
	}

	scaler := NewStandardScaler()
	scaled, err := scaler.FitTransform(X)
	require.NoError(t, err)

	model := NewGBDT(GBDTParams{Rounds: 5, MaxDepth: 3, MinSamplesLeaf: 2, Seed: 1})
	require.NoError(t, model.Train(scaled, y, nil))
	return model, scaler
}

func testVersion(id string) *models.ModelVersion {
	now := time.Now().UTC()
	return &models.ModelVersion{
		VersionID:      id,
		TrainingMethod: models.TrainingMethodFull,
		SampleCount:    40,
		FeatureCount:   features.Count(),
		PredictDays:    5,
		SchemaVersion:  features.SchemaVersion,
		Metrics:        models.ModelMetrics{TestAccuracy: 0.8, CVAccuracy: 0.75},
		TrainedAt:      now,
		CreatedAt:      now,
	}
}

func TestNewVersionID(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	id := NewVersionID(now)

	assert.True(t, strings.HasPrefix(id, "v20250314093000-"))
	assert.Len(t, id, len("v20250314093000-")+8)
	// Two ids minted the same instant must still differ.
	assert.NotEqual(t, id, NewVersionID(now))
}

func TestVersionStoreSaveAndLoad(t *testing.T) {
	repo := newFakeVersionRepo()
	store := NewVersionStore(repo, t.TempDir(), nil)
	model, scaler := trainedArtifacts(t)
	ctx := context.Background()

	version := testVersion("v20250314093000-aaaaaaaa")
	require.NoError(t, store.Save(ctx, model, scaler, version, true))

	for _, name := range []string{"model.json", "scaler.json", "metadata.json"} {
		_, err := os.Stat(filepath.Join(version.ArtifactPath, name))
		assert.NoError(t, err, name)
	}
	assert.True(t, version.IsCurrent)

	loadedModel, loadedScaler, loadedVersion, err := store.LoadCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, version.VersionID, loadedVersion.VersionID)
	assert.Len(t, loadedModel.Trees, len(model.Trees))
	assert.Equal(t, scaler.Means, loadedScaler.Means)
}

// TestVersionStoreCurrentMirror tests that activation refreshes the current
// artifact directory
func TestVersionStoreCurrentMirror(t *testing.T) {
	repo := newFakeVersionRepo()
	dir := t.TempDir()
	store := NewVersionStore(repo, dir, nil)
	model, scaler := trainedArtifacts(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, model, scaler, testVersion("v20250314093000-aaaaaaaa"), true))

	for _, name := range []string{"model.json", "scaler.json", "metadata.json"} {
		_, err := os.Stat(filepath.Join(dir, "current", name))
		assert.NoError(t, err, name)
	}
}

func TestVersionStoreLoadNoModel(t *testing.T) {
	store := NewVersionStore(newFakeVersionRepo(), t.TempDir(), nil)

	_, _, _, err := store.LoadCurrent(context.Background())
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestVersionStoreSchemaMismatch(t *testing.T) {
	repo := newFakeVersionRepo()
	store := NewVersionStore(repo, t.TempDir(), nil)
	model, scaler := trainedArtifacts(t)
	ctx := context.Background()

	version := testVersion("v20250314093000-aaaaaaaa")
	require.NoError(t, store.Save(ctx, model, scaler, version, true))

	// Simulate an artifact trained under an older schema.
	version.SchemaVersion = "v54"

	_, _, _, err := store.Load(ctx, version.VersionID)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	_, _, _, err = store.LoadCurrent(ctx)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

// TestVersionStoreMetadataRecordsFeatureNames tests that the artifact
// metadata carries the exact feature list the model was trained on
func TestVersionStoreMetadataRecordsFeatureNames(t *testing.T) {
	repo := newFakeVersionRepo()
	store := NewVersionStore(repo, t.TempDir(), nil)
	model, scaler := trainedArtifacts(t)
	ctx := context.Background()

	version := testVersion("v20250314093000-aaaaaaaa")
	require.NoError(t, store.Save(ctx, model, scaler, version, true))

	data, err := os.ReadFile(filepath.Join(version.ArtifactPath, "metadata.json"))
	require.NoError(t, err)

	var meta struct {
		VersionID    string   `json:"version_id"`
		FeatureNames []string `json:"feature_names"`
	}
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, version.VersionID, meta.VersionID)
	assert.Equal(t, features.Names(), meta.FeatureNames)
}

// TestVersionStoreFeatureListMismatch tests that a reordered feature list is
// rejected on load even when the schema tag still matches
func TestVersionStoreFeatureListMismatch(t *testing.T) {
	repo := newFakeVersionRepo()
	store := NewVersionStore(repo, t.TempDir(), nil)
	model, scaler := trainedArtifacts(t)
	ctx := context.Background()

	version := testVersion("v20250314093000-aaaaaaaa")
	require.NoError(t, store.Save(ctx, model, scaler, version, true))

	metaPath := filepath.Join(version.ArtifactPath, "metadata.json")
	data, err := os.ReadFile(metaPath)
	require.NoError(t, err)
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &meta))

	names := append([]string{}, features.Names()...)
	names[0], names[1] = names[1], names[0]
	meta["feature_names"] = names
	data, err = json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(metaPath, data, 0o644))

	_, _, _, err = store.Load(ctx, version.VersionID)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestVersionStoreDeleteCurrentForbidden(t *testing.T) {
	repo := newFakeVersionRepo()
	store := NewVersionStore(repo, t.TempDir(), nil)
	model, scaler := trainedArtifacts(t)
	ctx := context.Background()

	version := testVersion("v20250314093000-aaaaaaaa")
	require.NoError(t, store.Save(ctx, model, scaler, version, true))

	err := store.Delete(ctx, version.VersionID)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestVersionStoreActivateAndDelete(t *testing.T) {
	repo := newFakeVersionRepo()
	store := NewVersionStore(repo, t.TempDir(), nil)
	model, scaler := trainedArtifacts(t)
	ctx := context.Background()

	first := testVersion("v20250314093000-aaaaaaaa")
	second := testVersion("v20250315093000-bbbbbbbb")
	require.NoError(t, store.Save(ctx, model, scaler, first, true))
	require.NoError(t, store.Save(ctx, model, scaler, second, true))

	// Exactly one version is current after the second activation.
	current, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.VersionID, current.VersionID)
	assert.False(t, first.IsCurrent)

	// Roll back to the first version, then the second becomes deletable.
	require.NoError(t, store.SetCurrent(ctx, first.VersionID))
	require.NoError(t, store.Delete(ctx, second.VersionID))

	_, err = store.Get(ctx, second.VersionID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = os.Stat(second.ArtifactPath)
	assert.True(t, os.IsNotExist(err))
}

func TestVersionStoreCompare(t *testing.T) {
	repo := newFakeVersionRepo()
	store := NewVersionStore(repo, t.TempDir(), nil)
	model, scaler := trainedArtifacts(t)
	ctx := context.Background()

	a := testVersion("v20250314093000-aaaaaaaa")
	a.Metrics.TestAccuracy = 0.70
	a.SampleCount = 100
	b := testVersion("v20250315093000-bbbbbbbb")
	b.Metrics.TestAccuracy = 0.78
	b.SampleCount = 150
	require.NoError(t, store.Save(ctx, model, scaler, a, true))
	require.NoError(t, store.Save(ctx, model, scaler, b, true))

	comparison, err := store.Compare(ctx, a.VersionID, b.VersionID)
	require.NoError(t, err)
	assert.InDelta(t, 0.08, comparison.TestAccuracy, 1e-9)
	assert.Equal(t, 50, comparison.SampleCount)
}
