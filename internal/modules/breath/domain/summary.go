package domain

import "time"

const SchemaVersion = 1

// Summary is the analytics record of one training run.
type Summary struct {
	ID            string
	StartedAt     time.Time
	EndedAt       time.Time
	Targets       Targets
	Calibration   Calibration
	SetsCompleted uint
	BreathCount   uint
	GoodBreaths   uint
	BadBreaths    uint
	Pauses        uint
	LongestBreath float64
	BestQuality   int
	TotalVolume   float64
	Completed     bool
}

// Duration is the wall time between start and end, never negative.
func (s Summary) Duration() time.Duration {
	d := s.EndedAt.Sub(s.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Tally folds recognizer and manager events into a Summary.
type Tally struct {
	summary Summary
}

func NewTally(id string, startedAt time.Time, targets Targets, cal Calibration) *Tally {
	return &Tally{summary: Summary{ID: id, StartedAt: startedAt, Targets: targets, Calibration: cal}}
}

func (t *Tally) Breath(e ExhalationComplete) {
	t.summary.BreathCount++
	if e.IsBreathFull {
		t.summary.GoodBreaths++
	} else {
		t.summary.BadBreaths++
	}
	if e.BreathLength > t.summary.LongestBreath {
		t.summary.LongestBreath = e.BreathLength
	}
	if e.BreathQuality > t.summary.BestQuality {
		t.summary.BestQuality = e.BreathQuality
	}
	t.summary.TotalVolume += e.ExhaledVolume
}

func (t *Tally) Session(e Event) {
	switch e.Kind {
	case EventSetComplete:
		t.summary.SetsCompleted++
	case EventSessionPaused:
		t.summary.Pauses++
	case EventSessionComplete:
		t.summary.Completed = true
	}
}

// Close stamps the end time and returns the finished summary.
func (t *Tally) Close(endedAt time.Time) Summary {
	t.summary.EndedAt = endedAt
	return t.summary
}

func (t *Tally) Current() Summary { return t.summary }
