package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"breathkit/internal/modules/device/domain"
	"breathkit/internal/modules/device/dto"
	devicein "breathkit/internal/modules/device/port/in"
	deviceout "breathkit/internal/modules/device/port/out"
	apperrors "breathkit/internal/platform/errors"
)

type DeviceService struct {
	store      deviceout.ManifestStore
	host       deviceout.DriverHost
	recordings deviceout.RecordingOpener
}

func NewDeviceService(store deviceout.ManifestStore, host deviceout.DriverHost, recordings deviceout.RecordingOpener) *DeviceService {
	return &DeviceService{store: store, host: host, recordings: recordings}
}

func (s *DeviceService) Open(ctx context.Context, input dto.OpenInput) (devicein.Stream, error) {
	kind := domain.SourceKind(strings.TrimSpace(input.Kind))
	if err := kind.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	switch kind {
	case domain.SourceRecording:
		if input.Path == "" {
			return nil, fmt.Errorf("%w: recording path is required", apperrors.ErrInvalidInput)
		}
		if s.recordings == nil {
			return nil, fmt.Errorf("recording playback is not configured")
		}
		sampler, err := s.recordings.Open(ctx, input.Path, input.Loop)
		if err != nil {
			return nil, err
		}
		return &stream{sampler: sampler}, nil
	case domain.SourceDriver:
		manifest, err := s.getRunnableManifest(ctx, input.Driver)
		if err != nil {
			return nil, err
		}
		sampler, err := s.host.Connect(ctx, manifest)
		if err != nil {
			return nil, err
		}
		return &stream{sampler: sampler, rawHID: manifest.RawHID}, nil
	case domain.SourceScript:
		if len(input.Values) == 0 {
			return nil, fmt.Errorf("%w: script values are required", apperrors.ErrInvalidInput)
		}
		return &stream{sampler: newScriptSampler(input.Values, input.Loop)}, nil
	default:
		value := 0.0
		if len(input.Values) > 0 {
			value = input.Values[0]
		}
		return &stream{sampler: newScriptSampler([]float64{value}, true)}, nil
	}
}

func (s *DeviceService) ListDrivers(ctx context.Context) ([]dto.DriverOutput, error) {
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.DriverOutput, 0, len(manifests))
	for _, m := range manifests {
		out = append(out, dto.DriverOutput{Name: m.Name, Version: m.Version, Binary: m.Binary, Enabled: m.Enabled, RawHID: m.RawHID})
	}
	return out, nil
}

func (s *DeviceService) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	manifests, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]dto.DoctorResult, 0, len(manifests))
	for _, m := range manifests {
		result := dto.DoctorResult{Name: m.Name}
		if err := m.Validate(); err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}
		binaryOK := fileExists(m.Binary)
		result.BinaryReachable = binaryOK
		checksumOK := false
		if binaryOK {
			checksumOK = checksumMatches(m.Binary, m.SHA256) == nil
		}
		result.ChecksumValid = checksumOK
		if binaryOK && checksumOK && m.Enabled && s.host != nil {
			info, err := s.host.GetInfo(ctx, m)
			if err != nil {
				result.Error = err.Error()
			} else {
				result.LifecycleOK = true
				result.Model = info.Model
				result.SampleRateHz = info.SampleRateHz
			}
		}
		if !binaryOK {
			result.Error = fmt.Sprintf("binary does not exist: %s", m.Binary)
		}
		if binaryOK && !checksumOK {
			result.Error = "checksum mismatch"
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *DeviceService) loadValidated(ctx context.Context) ([]domain.Manifest, error) {
	manifests, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	seenNames := map[string]struct{}{}
	for _, manifest := range manifests {
		if err := manifest.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seenNames[manifest.Name]; ok {
			return nil, fmt.Errorf("duplicate driver name: %s", manifest.Name)
		}
		seenNames[manifest.Name] = struct{}{}
	}
	return manifests, nil
}

func (s *DeviceService) getRunnableManifest(ctx context.Context, name string) (domain.Manifest, error) {
	if s.host == nil {
		return domain.Manifest{}, fmt.Errorf("driver host is not configured")
	}
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return domain.Manifest{}, err
	}
	for _, item := range manifests {
		if item.Name != name {
			continue
		}
		if !item.Enabled {
			return domain.Manifest{}, fmt.Errorf("%w: %s", domain.ErrDriverDisabled, name)
		}
		if err := checksumMatches(item.Binary, item.SHA256); err != nil {
			return domain.Manifest{}, err
		}
		if err := s.host.CheckLifecycle(ctx, item); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return domain.Manifest{}, fmt.Errorf("%w: %s", domain.ErrDriverTimeout, name)
			}
			return domain.Manifest{}, err
		}
		return item, nil
	}
	return domain.Manifest{}, fmt.Errorf("%w: %q", domain.ErrDriverNotFound, name)
}

type stream struct {
	sampler deviceout.Sampler
	rawHID  bool
}

func (s *stream) Pressure(ctx context.Context) (float64, error) {
	value, err := s.sampler.Next(ctx)
	if err != nil {
		return 0, err
	}
	if s.rawHID {
		return domain.Normalize(value), nil
	}
	return value, nil
}

func (s *stream) Close() error {
	return s.sampler.Close()
}

// ErrScriptEnded is returned once a non-looping script is exhausted. It
// matches io.EOF.
var ErrScriptEnded = fmt.Errorf("script ended: %w", io.EOF)

// scriptSampler replays a fixed slice, optionally looping.
type scriptSampler struct {
	values []float64
	loop   bool
	idx    int
}

func newScriptSampler(values []float64, loop bool) *scriptSampler {
	copied := make([]float64, len(values))
	copy(copied, values)
	return &scriptSampler{values: copied, loop: loop}
}

func (s *scriptSampler) Next(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.idx >= len(s.values) {
		if !s.loop {
			return 0, ErrScriptEnded
		}
		s.idx = 0
	}
	v := s.values[s.idx]
	s.idx++
	return v, nil
}

func (s *scriptSampler) Close() error { return nil }

func checksumMatches(path string, expected string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read driver binary: %w", err)
	}
	hash := sha256.Sum256(payload)
	actual := hex.EncodeToString(hash[:])
	if actual != expected {
		return fmt.Errorf("%w: %s", domain.ErrChecksumMismatch, filepath.Base(path))
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
