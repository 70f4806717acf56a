package service

import (
	"context"
	"fmt"
	"time"

	"breathkit/internal/modules/calibration/domain"
	"breathkit/internal/modules/calibration/dto"
	calibrationout "breathkit/internal/modules/calibration/port/out"
	devicein "breathkit/internal/modules/device/port/in"
	"breathkit/internal/platform/clock"

	hclog "github.com/hashicorp/go-hclog"
)

const defaultFrameInterval = 33 * time.Millisecond

type CalibrationService struct {
	clock   clock.Clock
	store   calibrationout.ProfileStore
	devices devicein.Usecase
	logger  hclog.Logger
}

func NewCalibrationService(clock clock.Clock, store calibrationout.ProfileStore, devices devicein.Usecase, logger hclog.Logger) *CalibrationService {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &CalibrationService{clock: clock, store: store, devices: devices, logger: logger.Named("calibration")}
}

// Capture drives a capture from a device stream until every step is done,
// the stream fails or ctx ends. The resulting profile is not saved.
func (s *CalibrationService) Capture(ctx context.Context, input dto.CalibrateInput) (domain.Profile, error) {
	if s.devices == nil {
		return domain.Profile{}, fmt.Errorf("device usecase is not configured")
	}
	interval := input.FrameInterval
	if interval <= 0 {
		interval = defaultFrameInterval
	}
	if input.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, input.Timeout)
		defer cancel()
	}

	stream, err := s.devices.Open(ctx, input.Device)
	if err != nil {
		return domain.Profile{}, err
	}
	defer stream.Close()

	var ticks <-chan time.Time
	if input.Realtime {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	capture := domain.NewCapture(input.Steps, input.MinPressure)
	dt := interval.Seconds()
	last := capture.Status()
	for !capture.Finished() {
		if ticks != nil {
			select {
			case <-ctx.Done():
				return domain.Profile{}, fmt.Errorf("calibration step %d: %w", capture.Step(), ctx.Err())
			case <-ticks:
			}
		}
		pressure, err := stream.Pressure(ctx)
		if err != nil {
			return domain.Profile{}, fmt.Errorf("calibration step %d: %w", capture.Step(), err)
		}
		status := capture.AddSample(dt, pressure)
		if status != last {
			s.logger.Debug("calibration status", "step", capture.Step(), "status", string(status))
			last = status
		}
		if input.OnProgress != nil {
			input.OnProgress(dto.Progress{
				Step:          capture.Step(),
				RequiredSteps: capture.RequiredSteps(),
				Status:        string(status),
				BreathLength:  capture.BreathLength(),
			})
		}
	}

	profile, err := capture.Result()
	if err != nil {
		return domain.Profile{}, err
	}
	profile.CalibratedOn = s.clock.Now()
	s.logger.Info("calibration captured", "max_pressure", profile.MaxPressure, "max_breath_length", profile.MaxBreathLength)
	return profile, nil
}

func (s *CalibrationService) Save(ctx context.Context, profile domain.Profile) error {
	if profile.CalibratedOn.IsZero() {
		profile.CalibratedOn = s.clock.Now()
	}
	return s.store.Save(ctx, profile)
}

func (s *CalibrationService) Load(ctx context.Context) (domain.Profile, error) {
	return s.store.Load(ctx)
}

// Manual builds a profile from explicit values, stamped now.
func (s *CalibrationService) Manual(maxPressure, maxBreathLength float64) (domain.Profile, error) {
	profile := domain.Profile{MaxPressure: maxPressure, MaxBreathLength: maxBreathLength, CalibratedOn: s.clock.Now()}
	if err := profile.Validate(); err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}
