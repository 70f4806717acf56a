package service_test

import (
	"errors"
	"sync"
	"testing"

	"breathkit/internal/modules/breath/domain"
	"breathkit/internal/modules/breath/service"
	apperrors "breathkit/internal/platform/errors"
)

func newEngine(t *testing.T, targets domain.Targets) *service.Engine {
	t.Helper()
	cal, err := domain.NewCalibration(1.0, 1.0)
	if err != nil {
		t.Fatalf("calibration: %v", err)
	}
	engine, err := service.NewEngine(service.EngineConfig{Calibration: cal, Targets: targets, PauseAfter: 5}, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func breathe(engine *service.Engine) []service.Frame {
	frames := make([]service.Frame, 0, 13)
	for i := 0; i < 12; i++ {
		frames = append(frames, engine.Tick(0.1, 1.0))
	}
	return append(frames, engine.Tick(0.1, 0))
}

func TestEngineCollectsEventsPerFrame(t *testing.T) {
	t.Parallel()
	engine := newEngine(t, domain.Targets{Sets: 1, BreathsPerSet: 2})

	frame, err := engine.StartSession(true)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if len(frame.Events) != 2 || frame.Events[0].Kind != domain.EventSessionStarted || frame.Events[1].Kind != domain.EventSetStarted {
		t.Fatalf("expected session then set started, got %+v", frame.Events)
	}

	first := breathe(engine)
	last := first[len(first)-1]
	if len(last.Breaths) != 1 || !last.Breaths[0].IsBreathFull {
		t.Fatalf("expected one full breath in the closing frame, got %+v", last.Breaths)
	}
	if len(last.Events) != 0 || last.Session.CurrentBreath != 1 {
		t.Fatalf("expected breath 1 without events, got %+v", last)
	}
	for _, f := range first[:len(first)-1] {
		if len(f.Breaths) != 0 {
			t.Fatalf("breath reported before it ended")
		}
	}

	second := breathe(engine)
	closing := second[len(second)-1]
	if !closing.Has(domain.EventSetComplete) || !closing.Has(domain.EventSessionComplete) {
		t.Fatalf("expected set and session complete, got %+v", closing.Events)
	}
	if closing.Session.SessionStarted || closing.Session.SetStarted {
		t.Fatalf("expected session closed, got %+v", closing.Session)
	}
	if closing.Recognizer.GoodBreaths != 2 {
		t.Fatalf("expected two good breaths, got %+v", closing.Recognizer)
	}
}

func TestEngineCommandErrorsLeaveStateUntouched(t *testing.T) {
	t.Parallel()
	engine := newEngine(t, domain.DefaultTargets)
	before := engine.Stats()
	frame, err := engine.StartSet(0)
	if !errors.Is(err, apperrors.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if len(frame.Events) != 0 || frame.Session != before.Session {
		t.Fatalf("failed command changed state: %+v", frame)
	}
	if _, err := engine.Resume(); !errors.Is(err, apperrors.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition on resume, got %v", err)
	}
}

func TestEngineManualPauseResume(t *testing.T) {
	t.Parallel()
	engine := newEngine(t, domain.DefaultTargets)
	if _, err := engine.StartSession(true); err != nil {
		t.Fatalf("start: %v", err)
	}
	frame, err := engine.Pause()
	if err != nil || !frame.Has(domain.EventSessionPaused) || !frame.Session.Paused {
		t.Fatalf("pause: %v %+v", err, frame)
	}
	if err := engine.SetTargets(domain.Targets{Sets: 1, BreathsPerSet: 1}); !errors.Is(err, apperrors.ErrSessionInProgress) {
		t.Fatalf("expected targets locked, got %v", err)
	}
	frame = engine.Tick(0.1, 0.5)
	if !frame.Has(domain.EventSessionResumed) || frame.Session.Paused {
		t.Fatalf("expected pressure to resume, got %+v", frame)
	}
}

func TestEngineStatsDoesNotConsumeEvents(t *testing.T) {
	t.Parallel()
	engine := newEngine(t, domain.DefaultTargets)
	if _, err := engine.StartSession(false); err != nil {
		t.Fatalf("start: %v", err)
	}
	engine.Tick(0.1, 1.0)
	stats := engine.Stats()
	if !stats.Recognizer.IsExhaling || len(stats.Events) != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	frame := engine.Tick(0.1, 0)
	if len(frame.Breaths) != 1 {
		t.Fatalf("expected breath in the next tick, got %+v", frame.Breaths)
	}
}

func TestEngineResetAndRecalibrate(t *testing.T) {
	t.Parallel()
	engine := newEngine(t, domain.DefaultTargets)
	breathe(engine)
	frame := engine.ResetSession()
	if frame.Recognizer != (domain.RecognizerState{}) {
		t.Fatalf("expected zero recognizer state, got %+v", frame.Recognizer)
	}
	engine.Calibrate(domain.Uncalibrated())
	if engine.Calibration().Calibrated() {
		t.Fatalf("expected calibration replaced")
	}
	frames := breathe(engine)
	if frames[len(frames)-1].Breaths[0].IsBreathFull {
		t.Fatalf("uncalibrated breaths are never full")
	}
}

func TestEngineSerializesConcurrentTicks(t *testing.T) {
	t.Parallel()
	engine := newEngine(t, domain.Targets{Sets: 100, BreathsPerSet: 100})
	if _, err := engine.StartSession(true); err != nil {
		t.Fatalf("start: %v", err)
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	breaths := 0
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				f := engine.Tick(0.01, 1.0)
				mu.Lock()
				breaths += len(f.Breaths)
				mu.Unlock()
				engine.Stats()
			}
		}()
	}
	wg.Wait()
	final := engine.Tick(0.01, 0)
	breaths += len(final.Breaths)
	if breaths != 1 {
		t.Fatalf("expected one continuous breath, got %d", breaths)
	}
	if s := final.Recognizer; s.GoodBreaths+s.BadBreaths != s.BreathCount {
		t.Fatalf("counter invariant broken: %+v", s)
	}
}
