package dto

import (
	"time"

	devicedto "breathkit/internal/modules/device/dto"
)

type CalibrateInput struct {
	Device devicedto.OpenInput
	// FrameInterval is both the simulated dt and, when Realtime, the pacing.
	FrameInterval time.Duration
	Realtime      bool
	Timeout       time.Duration
	Steps         int
	MinPressure   float64
	OnProgress    func(Progress)
}

type Progress struct {
	Step          int
	RequiredSteps int
	Status        string
	BreathLength  float64
}

type SetInput struct {
	MaxPressure     float64
	MaxBreathLength float64
}

type ProfileOutput struct {
	MaxPressure     float64
	MaxBreathLength float64
	CalibratedOn    time.Time
}
