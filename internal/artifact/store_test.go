package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := NewStore(t.TempDir(), logger)
	require.NoError(t, err)
	return store
}

func TestNewStoreCreatesLayout(t *testing.T) {
	store := newTestStore(t)

	for _, dir := range []string{
		filepath.Join(store.Root(), "models"),
		filepath.Join(store.Root(), "metadata"),
		filepath.Join(store.Root(), "performance"),
		filepath.Join(store.Root(), "backups"),
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestNewStoreRequiresRoot(t *testing.T) {
	_, err := NewStore("", nil)
	assert.Error(t, err)
}

func TestChecksumDeterministic(t *testing.T) {
	store := newTestStore(t)

	dir, err := store.CreateArtifactDir("health_scoring_1.0.0_1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), []byte(`{"weights":[1,2]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature_names.json"), []byte(`["a","b"]`), 0o644))

	first, err := store.Checksum(dir)
	require.NoError(t, err)
	second, err := store.Checksum(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64) // hex sha-256
}

func TestChecksumDetectsChanges(t *testing.T) {
	store := newTestStore(t)

	dir, err := store.CreateArtifactDir("health_scoring_1.0.0_2")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), []byte("original"), 0o644))

	before, err := store.Checksum(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), []byte("modified"), 0o644))
	afterEdit, err := store.Checksum(dir)
	require.NoError(t, err)
	assert.NotEqual(t, before, afterEdit)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.json"), []byte("{}"), 0o644))
	afterAdd, err := store.Checksum(dir)
	require.NoError(t, err)
	assert.NotEqual(t, afterEdit, afterAdd)
}

func TestSize(t *testing.T) {
	store := newTestStore(t)

	dir, err := store.CreateArtifactDir("health_scoring_1.0.0_3")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), make([]byte, 28), 0o644))

	size, err := store.Size(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(128), size)
}

func TestBackupCopiesArtifact(t *testing.T) {
	store := newTestStore(t)

	const id = "health_scoring_1.0.0_4"
	dir, err := store.CreateArtifactDir(id)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), []byte("payload"), 0o644))

	backup, err := store.Backup(id)
	require.NoError(t, err)
	assert.Contains(t, backup, "backup_"+id)

	data, err := os.ReadFile(filepath.Join(backup, "model.json"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// the original artifact is untouched
	original, err := store.Checksum(dir)
	require.NoError(t, err)
	copied, err := store.Checksum(backup)
	require.NoError(t, err)
	assert.Equal(t, original, copied)
}

func TestExists(t *testing.T) {
	store := newTestStore(t)

	assert.False(t, store.Exists("nope"))
	_, err := store.CreateArtifactDir("yes")
	require.NoError(t, err)
	assert.True(t, store.Exists("yes"))
}
