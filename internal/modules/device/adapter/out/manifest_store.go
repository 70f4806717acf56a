package out

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"breathkit/internal/modules/device/domain"
	deviceout "breathkit/internal/modules/device/port/out"
)

type FileManifestStore struct {
	basePath string
	path     string
}

// NewFileManifestStore reads drivers/drivers.json under basePath. Relative
// binaries resolve against basePath.
func NewFileManifestStore(basePath string) deviceout.ManifestStore {
	return &FileManifestStore{basePath: basePath, path: filepath.Join(basePath, "drivers", "drivers.json")}
}

func (s *FileManifestStore) Load(_ context.Context) ([]domain.Manifest, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Manifest{}, nil
		}
		return nil, fmt.Errorf("read driver manifests: %w", err)
	}
	var manifests []domain.Manifest
	decoder := json.NewDecoder(bytes.NewReader(b))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&manifests); err != nil {
		return nil, fmt.Errorf("decode driver manifests: %w", err)
	}
	for i := range manifests {
		if manifests[i].Binary != "" && !filepath.IsAbs(manifests[i].Binary) {
			manifests[i].Binary = filepath.Clean(filepath.Join(s.basePath, manifests[i].Binary))
		}
	}
	return manifests, nil
}
