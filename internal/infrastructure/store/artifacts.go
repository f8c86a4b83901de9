package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/cartmatch/reconciler/internal/domain"
)

// ArtifactStore persists the run's three JSON artifacts next to the
// configured output path: <output>_no_cleanup.json for the unfiltered match
// list, <output>.json for the final ranked list, and <output>_error.json for
// partial results flushed on a failed run.
type ArtifactStore struct {
	outputPath string
	logger     *zap.Logger
}

// NewArtifactStore creates an artifact store rooted at outputPath.
func NewArtifactStore(outputPath string, logger *zap.Logger) *ArtifactStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactStore{outputPath: outputPath, logger: logger}
}

// WriteRaw persists the complete match list before validation.
func (s *ArtifactStore) WriteRaw(matches []domain.MatchRecord) error {
	return s.write(s.derivedPath("_no_cleanup"), matches)
}

// WriteFinal persists the validated, ranked match list.
func (s *ArtifactStore) WriteFinal(matches []domain.MatchRecord) error {
	return s.write(s.outputPath, matches)
}

// WriteRecovery persists accumulated matches when a run fails mid-way.
func (s *ArtifactStore) WriteRecovery(matches []domain.MatchRecord) error {
	return s.write(s.derivedPath("_error"), matches)
}

// derivedPath inserts a suffix before the .json extension, e.g.
// "matches.json" -> "matches_no_cleanup.json".
func (s *ArtifactStore) derivedPath(suffix string) string {
	base := strings.TrimSuffix(s.outputPath, ".json")
	return base + suffix + ".json"
}

func (s *ArtifactStore) write(path string, matches []domain.MatchRecord) error {
	// Marshal an empty slice as [] rather than null.
	if matches == nil {
		matches = []domain.MatchRecord{}
	}

	data, err := json.MarshalIndent(matches, "", "  ")
	if err != nil {
		return err
	}

	if err := writeFileAtomic(path, data); err != nil {
		return err
	}

	s.logger.Info("wrote artifact",
		zap.String("path", path),
		zap.Int("matches", len(matches)),
	)
	return nil
}

// WriteJSON persists any value as indented JSON at path, atomically. The
// extract commands use it for normalized catalog output.
func WriteJSON(path string, v any, logger *zap.Logger) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}
	if logger != nil {
		logger.Info("wrote file", zap.String("path", path), zap.Int("bytes", len(data)))
	}
	return nil
}

// writeFileAtomic writes via a same-directory temp file and rename, so a
// crash mid-write never leaves a truncated artifact behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
