package out_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	calibrationout "breathkit/internal/modules/calibration/adapter/out"
	"breathkit/internal/modules/calibration/domain"
	apperrors "breathkit/internal/platform/errors"
)

func TestYAMLProfileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := calibrationout.NewYAMLProfileStore(dir)
	when := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := store.Save(context.Background(), domain.Profile{MaxPressure: 0.72, MaxBreathLength: 2.4, CalibratedOn: when}); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "calibration.yaml"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if want := "calibrated_on: 2026-03-01T09:30:00Z"; !strings.Contains(string(raw), want) {
		t.Fatalf("expected %q in file, got:\n%s", want, raw)
	}

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.MaxPressure != 0.72 || got.MaxBreathLength != 2.4 || !got.CalibratedOn.Equal(when) {
		t.Fatalf("unexpected profile: %+v", got)
	}
}

func TestYAMLProfileStoreMissingIsUncalibrated(t *testing.T) {
	t.Parallel()
	_, err := calibrationout.NewYAMLProfileStore(t.TempDir()).Load(context.Background())
	if !errors.Is(err, apperrors.ErrUncalibrated) {
		t.Fatalf("expected uncalibrated, got %v", err)
	}
}

func TestYAMLProfileStoreRejectsInvalidProfiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := calibrationout.NewYAMLProfileStore(dir)
	if err := store.Save(context.Background(), domain.Profile{MaxPressure: 0, MaxBreathLength: 1}); !errors.Is(err, apperrors.ErrInvalidCalibration) {
		t.Fatalf("expected save to reject invalid profile, got %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "calibration.yaml"), []byte("max_pressure: -1\nmax_breath_length: 2\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, apperrors.ErrInvalidCalibration) {
		t.Fatalf("expected load to reject invalid profile, got %v", err)
	}
}
