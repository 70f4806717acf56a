package domain

import "fmt"

const (
	DefaultRequiredSteps = 3
	DefaultMinPressure   = 0.1
	// MinStepLength is how many seconds a calibration breath must last.
	MinStepLength = 1.0
)

type Status string

const (
	StatusWaiting      Status = "waiting"
	StatusInProgress   Status = "in_progress"
	StatusStepComplete Status = "step_complete"
	StatusRetry        Status = "retry"
	StatusFinished     Status = "finished"
)

// Capture measures RequiredSteps sustained breaths and averages them into a
// Profile. Feed it one sample per frame with AddSample.
type Capture struct {
	requiredSteps int
	minPressure   float64

	step     int
	status   Status
	length   float64
	sum      float64
	readings int

	avgPressures []float64
	lengths      []float64
}

// NewCapture returns a capture at step 1. Non-positive arguments select the
// defaults.
func NewCapture(requiredSteps int, minPressure float64) *Capture {
	if requiredSteps < 1 {
		requiredSteps = DefaultRequiredSteps
	}
	if !(minPressure > 0) {
		minPressure = DefaultMinPressure
	}
	return &Capture{requiredSteps: requiredSteps, minPressure: minPressure, step: 1, status: StatusWaiting}
}

func (c *Capture) Step() int { return c.step }

func (c *Capture) RequiredSteps() int { return c.requiredSteps }

func (c *Capture) Status() Status { return c.status }

func (c *Capture) Finished() bool { return c.status == StatusFinished }

func (c *Capture) BreathLength() float64 { return c.length }

func (c *Capture) AddSample(dt, pressure float64) Status {
	if c.status == StatusFinished {
		return c.status
	}
	if pressure > c.minPressure {
		if dt > 0 {
			c.length += dt
		}
		c.sum += pressure
		c.readings++
		c.status = StatusInProgress
		return c.status
	}
	if c.readings == 0 {
		// Silence between attempts keeps the last status on screen.
		return c.status
	}
	if c.length > MinStepLength {
		c.avgPressures = append(c.avgPressures, c.sum/float64(c.readings))
		c.lengths = append(c.lengths, c.length)
		c.resetBreath()
		if c.step == c.requiredSteps {
			c.status = StatusFinished
			return c.status
		}
		c.step++
		c.status = StatusStepComplete
		return c.status
	}
	c.resetBreath()
	c.status = StatusRetry
	return c.status
}

// Result averages the captured steps. It fails until the capture finished.
func (c *Capture) Result() (Profile, error) {
	if c.status != StatusFinished {
		return Profile{}, fmt.Errorf("calibration incomplete: step %d of %d", c.step, c.requiredSteps)
	}
	profile := Profile{MaxPressure: mean(c.avgPressures), MaxBreathLength: mean(c.lengths)}
	if err := profile.Validate(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func (c *Capture) resetBreath() {
	c.length = 0
	c.sum = 0
	c.readings = 0
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
