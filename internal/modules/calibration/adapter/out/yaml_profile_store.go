package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"breathkit/internal/modules/calibration/domain"
	calibrationout "breathkit/internal/modules/calibration/port/out"
	apperrors "breathkit/internal/platform/errors"

	"gopkg.in/yaml.v3"
)

const profileFileName = "calibration.yaml"

type profileRecord struct {
	MaxPressure     float64   `yaml:"max_pressure"`
	MaxBreathLength float64   `yaml:"max_breath_length"`
	CalibratedOn    time.Time `yaml:"calibrated_on"`
}

type YAMLProfileStore struct {
	path string
}

func NewYAMLProfileStore(stateDir string) calibrationout.ProfileStore {
	return &YAMLProfileStore{path: filepath.Join(stateDir, profileFileName)}
}

func (s *YAMLProfileStore) Save(_ context.Context, profile domain.Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create calibration dir: %w", err)
	}
	payload, err := yaml.Marshal(profileRecord{
		MaxPressure:     profile.MaxPressure,
		MaxBreathLength: profile.MaxBreathLength,
		CalibratedOn:    profile.CalibratedOn.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}
	if err := os.WriteFile(s.path, payload, 0o644); err != nil {
		return fmt.Errorf("write calibration: %w", err)
	}
	return nil
}

func (s *YAMLProfileStore) Load(_ context.Context) (domain.Profile, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Profile{}, apperrors.ErrUncalibrated
		}
		return domain.Profile{}, fmt.Errorf("read calibration: %w", err)
	}
	record := profileRecord{}
	if err := yaml.Unmarshal(payload, &record); err != nil {
		return domain.Profile{}, fmt.Errorf("decode calibration: %w", err)
	}
	profile := domain.Profile{
		MaxPressure:     record.MaxPressure,
		MaxBreathLength: record.MaxBreathLength,
		CalibratedOn:    record.CalibratedOn,
	}
	if err := profile.Validate(); err != nil {
		return domain.Profile{}, fmt.Errorf("stored calibration: %w", err)
	}
	return profile, nil
}
