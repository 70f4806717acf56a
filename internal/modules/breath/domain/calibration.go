package domain

import (
	"fmt"

	apperrors "breathkit/internal/platform/errors"
)

// Calibration is either uncalibrated (the zero value) or a calibrated pair of
// strictly positive maxima. It can only be built through NewCalibration.
type Calibration struct {
	maxPressure     float64
	maxBreathLength float64
	calibrated      bool
}

func Uncalibrated() Calibration {
	return Calibration{}
}

func NewCalibration(maxPressure, maxBreathLength float64) (Calibration, error) {
	if !(maxPressure > 0) {
		return Calibration{}, fmt.Errorf("%w: max pressure must be positive, got %v", apperrors.ErrInvalidCalibration, maxPressure)
	}
	if !(maxBreathLength > 0) {
		return Calibration{}, fmt.Errorf("%w: max breath length must be positive, got %v", apperrors.ErrInvalidCalibration, maxBreathLength)
	}
	return Calibration{maxPressure: maxPressure, maxBreathLength: maxBreathLength, calibrated: true}, nil
}

func (c Calibration) Calibrated() bool { return c.calibrated }

// MaxPressure is the calibrated reference pressure, 0 when uncalibrated.
func (c Calibration) MaxPressure() float64 { return c.maxPressure }

// MaxBreathLength is the calibrated reference duration in seconds, 0 when uncalibrated.
func (c Calibration) MaxBreathLength() float64 { return c.maxBreathLength }

func (c Calibration) String() string {
	if !c.calibrated {
		return "uncalibrated"
	}
	return fmt.Sprintf("calibrated(pressure=%.3f, length=%.2fs)", c.maxPressure, c.maxBreathLength)
}
