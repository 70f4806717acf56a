package dto

import (
	"time"

	devicedto "breathkit/internal/modules/device/dto"
)

type BeginInput struct {
	Device devicedto.OpenInput
	// Sets and BreathsPerSet override the saved targets when non-zero.
	Sets          uint
	BreathsPerSet uint
	AutoStart     bool
}

type RunInput struct {
	Begin         BeginInput
	FrameInterval time.Duration
	// Realtime paces frames with a ticker; otherwise frames run back to back
	// with a fixed dt of FrameInterval.
	Realtime bool
	// MaxDuration bounds the run in frame time; zero means until the
	// session completes or the source ends.
	MaxDuration time.Duration
	OnFrame     func(FrameOutput)
}

type BreathOutput struct {
	Length     float64
	Count      uint
	Volume     float64
	Full       bool
	Percentage float64
	Quality    int
}

type EventOutput struct {
	Kind         string
	Set          uint
	Breath       uint
	BreathLength float64
	MaxPressure  float64
	Quality      int
}

type FrameOutput struct {
	Pressure         float64
	Exhaling         bool
	BreathLength     float64
	BreathPercentage float64
	BreathCount      uint
	GoodBreaths      uint
	BadBreaths       uint

	SessionStarted bool
	SetStarted     bool
	Paused         bool
	CurrentSet     uint
	CurrentBreath  uint
	Sets           uint
	BreathsPerSet  uint
	IdleSeconds    float64

	Breaths []BreathOutput
	Events  []EventOutput
	// Summary is set on the frame that finished the training.
	Summary *SummaryOutput
}

type SummaryOutput struct {
	ID              string
	StartedAt       time.Time
	EndedAt         time.Time
	DurationSeconds float64
	Sets            uint
	BreathsPerSet   uint
	MaxPressure     float64
	MaxBreathLength float64
	SetsCompleted   uint
	BreathCount     uint
	GoodBreaths     uint
	BadBreaths      uint
	Pauses          uint
	LongestBreath   float64
	BestQuality     int
	TotalVolume     float64
	Completed       bool
	NotePath        string
}

type NoteOutput struct {
	ID       string
	Markdown string
}

type TargetsInput struct {
	Sets          uint
	BreathsPerSet uint
}

type TargetsOutput struct {
	Sets          uint
	BreathsPerSet uint
}
