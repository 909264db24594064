package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/equipwatch/equipwatch/pkg/constants"
	"github.com/equipwatch/equipwatch/pkg/errors"
)

// Store persists model binaries and metadata files under one directory per
// model id, with a parallel backups directory mirroring artifact directories
// under timestamped names.
type Store struct {
	logger     *logrus.Logger
	root       string
	modelsDir  string
	backupsDir string
}

// NewStore creates an artifact store rooted at root, creating the storage
// layout if needed
func NewStore(root string, logger *logrus.Logger) (*Store, error) {
	if root == "" {
		return nil, errors.NewConfigError(errors.CodeInvalidInput, "storage root is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	s := &Store{
		logger:     logger,
		root:       root,
		modelsDir:  filepath.Join(root, constants.ModelsDir),
		backupsDir: filepath.Join(root, constants.BackupsDir),
	}

	for _, dir := range []string{s.modelsDir, s.backupsDir,
		filepath.Join(root, constants.MetadataDir),
		filepath.Join(root, constants.PerformanceDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
				fmt.Sprintf("failed to create directory: %s", dir))
		}
	}

	return s, nil
}

// Root returns the storage root directory
func (s *Store) Root() string { return s.root }

// MetadataDir returns the directory holding the registry document
func (s *Store) MetadataDir() string { return filepath.Join(s.root, constants.MetadataDir) }

// PerformanceDir returns the directory holding monitoring observations
func (s *Store) PerformanceDir() string { return filepath.Join(s.root, constants.PerformanceDir) }

// ArtifactDir returns the directory for the given model id
func (s *Store) ArtifactDir(modelID string) string {
	return filepath.Join(s.modelsDir, modelID)
}

// CreateArtifactDir creates a fresh directory for the given model id
func (s *Store) CreateArtifactDir(modelID string) (string, error) {
	dir := s.ArtifactDir(modelID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			fmt.Sprintf("failed to create artifact directory: %s", dir))
	}
	return dir, nil
}

// Checksum computes a deterministic SHA-256 over every file under dir,
// visited in sorted relative-path order. Identical content yields identical
// checksums; adding, removing or changing any file changes the result.
func (s *Store) Checksum(dir string) (string, error) {
	paths, err := sortedFiles(dir)
	if err != nil {
		return "", err
	}

	hasher := sha256.New()
	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
				fmt.Sprintf("failed to open file for checksum: %s", path))
		}
		_, err = io.Copy(hasher, file)
		file.Close()
		if err != nil {
			return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
				fmt.Sprintf("failed to hash file: %s", path))
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Size returns the total size in bytes of all files under dir
func (s *Store) Size(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			fmt.Sprintf("failed to size directory: %s", dir))
	}
	return total, nil
}

// Exists reports whether the artifact directory for modelID is present
func (s *Store) Exists(modelID string) bool {
	info, err := os.Stat(s.ArtifactDir(modelID))
	return err == nil && info.IsDir()
}

// Backup copies the artifact directory for modelID into a timestamped
// location under the backups directory and returns the backup path
func (s *Store) Backup(modelID string) (string, error) {
	src := s.ArtifactDir(modelID)
	dst := filepath.Join(s.backupsDir, fmt.Sprintf("backup_%s_%d", modelID, time.Now().Unix()))

	if err := copyTree(src, dst); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			fmt.Sprintf("failed to back up %s", modelID))
	}

	s.logger.WithFields(logrus.Fields{
		"model_id": modelID,
		"backup":   dst,
	}).Info("Backed up model artifact")

	return dst, nil
}

// sortedFiles walks dir and returns every regular file path sorted by
// relative path, for deterministic hashing
func sortedFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			fmt.Sprintf("failed to walk directory: %s", dir))
	}
	sort.Strings(paths)
	return paths, nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
