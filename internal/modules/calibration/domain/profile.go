package domain

import (
	"fmt"
	"time"

	apperrors "breathkit/internal/platform/errors"
)

// Profile is the user's breathing baseline as measured by a capture.
type Profile struct {
	MaxPressure     float64
	MaxBreathLength float64
	CalibratedOn    time.Time
}

func (p Profile) Validate() error {
	if !(p.MaxPressure > 0) {
		return fmt.Errorf("%w: max pressure must be positive", apperrors.ErrInvalidCalibration)
	}
	if !(p.MaxBreathLength > 0) {
		return fmt.Errorf("%w: max breath length must be positive", apperrors.ErrInvalidCalibration)
	}
	return nil
}
