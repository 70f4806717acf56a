package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"breathkit/internal/modules/breath/domain"
	breathout "breathkit/internal/modules/breath/port/out"
	apperrors "breathkit/internal/platform/errors"

	"gopkg.in/yaml.v3"
)

type targetsRecord struct {
	Sets          uint `yaml:"sets"`
	BreathsPerSet uint `yaml:"breaths_per_set"`
}

type YAMLTargetStore struct {
	path string
}

func NewYAMLTargetStore(stateDir string) breathout.TargetStore {
	return &YAMLTargetStore{path: filepath.Join(stateDir, "targets.yaml")}
}

func (s *YAMLTargetStore) Save(_ context.Context, targets domain.Targets) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create targets dir: %w", err)
	}
	payload, err := yaml.Marshal(targetsRecord{Sets: targets.Sets, BreathsPerSet: targets.BreathsPerSet})
	if err != nil {
		return fmt.Errorf("marshal targets: %w", err)
	}
	if err := os.WriteFile(s.path, payload, 0o644); err != nil {
		return fmt.Errorf("write targets: %w", err)
	}
	return nil
}

func (s *YAMLTargetStore) Load(_ context.Context) (domain.Targets, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Targets{}, apperrors.ErrNotFound
		}
		return domain.Targets{}, fmt.Errorf("read targets: %w", err)
	}
	record := targetsRecord{}
	if err := yaml.Unmarshal(payload, &record); err != nil {
		return domain.Targets{}, fmt.Errorf("decode targets: %w", err)
	}
	targets := domain.Targets{Sets: record.Sets, BreathsPerSet: record.BreathsPerSet}
	if err := targets.Validate(); err != nil {
		return domain.Targets{}, fmt.Errorf("stored targets: %w", err)
	}
	return targets, nil
}
