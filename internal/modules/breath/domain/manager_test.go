package domain_test

import (
	"errors"
	"testing"
	"time"

	"breathkit/internal/modules/breath/domain"
	apperrors "breathkit/internal/platform/errors"
)

var zeroTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	rec    *domain.Recognizer
	mgr    *domain.Manager
	events []domain.Event
}

func newHarness(t *testing.T, targets domain.Targets) *harness {
	t.Helper()
	rec := domain.NewRecognizer(mustCalibration(t, 1.0, 1.0), 0.1)
	mgr, err := domain.NewManager(rec, domain.ManagerConfig{Targets: targets, PauseAfter: 5})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	h := &harness{rec: rec, mgr: mgr}
	mgr.Subscribe(func(e domain.Event) { h.events = append(h.events, e) })
	return h
}

// tick mirrors the host frame order: recognizer first, then the manager.
func (h *harness) tick(dt, pressure float64) {
	h.rec.AddSample(dt, pressure)
	h.mgr.Update(dt, pressure, h.rec.MinBreathThreshold())
}

func (h *harness) fullBreath() {
	for i := 0; i < 12; i++ {
		h.tick(0.1, 1.0)
	}
	h.tick(0.1, 0)
}

func (h *harness) weakBreath() {
	for i := 0; i < 3; i++ {
		h.tick(0.1, 1.0)
	}
	h.tick(0.1, 0)
}

func (h *harness) count(kind domain.EventKind) int {
	n := 0
	for _, e := range h.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (h *harness) kinds() []domain.EventKind {
	out := make([]domain.EventKind, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.Kind)
	}
	return out
}

func TestAutoStartFiresSessionThenSet(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Targets{Sets: 2, BreathsPerSet: 2})
	if err := h.mgr.StartSession(true); err != nil {
		t.Fatalf("start session: %v", err)
	}
	got := h.kinds()
	if len(got) != 2 || got[0] != domain.EventSessionStarted || got[1] != domain.EventSetStarted {
		t.Fatalf("expected session_started then set_started, got %v", got)
	}
	s := h.mgr.State()
	if !s.SessionStarted || !s.SetStarted || s.CurrentSet != 1 {
		t.Fatalf("unexpected state after auto start: %+v", s)
	}
}

func TestFullBreathsCompleteSetAndSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Targets{Sets: 2, BreathsPerSet: 3})
	if err := h.mgr.StartSession(true); err != nil {
		t.Fatalf("start session: %v", err)
	}
	h.fullBreath()
	h.weakBreath()
	h.fullBreath()
	if h.mgr.State().CurrentBreath != 2 {
		t.Fatalf("weak breath must not advance the set, got %+v", h.mgr.State())
	}
	h.fullBreath()
	if n := h.count(domain.EventSetComplete); n != 1 {
		t.Fatalf("expected one set_complete, got %d", n)
	}
	if h.count(domain.EventSessionComplete) != 0 {
		t.Fatalf("session must not complete after the first set")
	}

	// breaths between sets are ignored
	h.fullBreath()
	if err := h.mgr.StartSet(0); err != nil {
		t.Fatalf("start second set: %v", err)
	}
	if h.mgr.State().CurrentSet != 2 || h.mgr.State().CurrentBreath != 0 {
		t.Fatalf("unexpected second set state: %+v", h.mgr.State())
	}
	for i := 0; i < 3; i++ {
		h.fullBreath()
	}
	if n := h.count(domain.EventSetComplete); n != 2 {
		t.Fatalf("expected two set_complete, got %d", n)
	}
	if n := h.count(domain.EventSessionComplete); n != 1 {
		t.Fatalf("expected one session_complete, got %d", n)
	}
	last := h.events[len(h.events)-1]
	if last.Kind != domain.EventSessionComplete || last.Result.Set != 2 || last.Result.Quality != 4 {
		t.Fatalf("unexpected final event %+v", last)
	}
	if s := h.mgr.State(); s.SessionStarted || s.SetStarted || s.Paused {
		t.Fatalf("expected idle manager after session, got %+v", s)
	}
}

func TestInactivityPausesAndBreathResumes(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Targets{Sets: 1, BreathsPerSet: 5})
	if err := h.mgr.StartSession(true); err != nil {
		t.Fatalf("start session: %v", err)
	}
	for i := 0; i < 45; i++ {
		h.tick(0.1, 0)
	}
	if h.count(domain.EventSessionPaused) != 0 {
		t.Fatalf("4.5s of silence must not pause yet")
	}
	for i := 0; i < 20; i++ {
		h.tick(0.1, 0)
	}
	if n := h.count(domain.EventSessionPaused); n != 1 {
		t.Fatalf("expected exactly one pause, got %d", n)
	}
	if !h.mgr.State().Paused {
		t.Fatalf("manager should be paused")
	}

	h.tick(0.1, 0.5)
	if n := h.count(domain.EventSessionResumed); n != 1 {
		t.Fatalf("expected exactly one resume, got %d", n)
	}
	s := h.mgr.State()
	if s.Paused || s.TimeBreathPaused != 0 {
		t.Fatalf("expected resumed state with cleared timer, got %+v", s)
	}
}

func TestPressureResetsInactivityTimer(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Targets{Sets: 1, BreathsPerSet: 5})
	_ = h.mgr.StartSession(true)
	for round := 0; round < 3; round++ {
		for i := 0; i < 40; i++ {
			h.tick(0.1, 0)
		}
		h.tick(0.1, 0.5)
		if h.mgr.State().TimeBreathPaused != 0 {
			t.Fatalf("pressure above threshold must reset the timer")
		}
	}
	if h.count(domain.EventSessionPaused) != 0 {
		t.Fatalf("no pause expected while breathing every 4s")
	}
}

func TestBreathsWhilePausedAreIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Targets{Sets: 1, BreathsPerSet: 1})
	_ = h.mgr.StartSession(true)
	if err := h.mgr.PauseSession(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	// feed the recognizer directly so Update cannot resume first
	for i := 0; i < 12; i++ {
		h.rec.AddSample(0.1, 1)
	}
	h.rec.AddSample(0.1, 0)
	if h.count(domain.EventSetComplete) != 0 {
		t.Fatalf("breath while paused must not count")
	}
	if err := h.mgr.ResumeSession(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	h.fullBreath()
	if h.count(domain.EventSessionComplete) != 1 {
		t.Fatalf("expected session to complete after resume, got %v", h.kinds())
	}
}

func TestUpdateIsNoopOutsideSet(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Targets{Sets: 1, BreathsPerSet: 1})
	for i := 0; i < 100; i++ {
		h.tick(0.1, 0)
	}
	_ = h.mgr.StartSession(false)
	for i := 0; i < 100; i++ {
		h.tick(0.1, 0)
	}
	if len(h.events) != 1 || h.mgr.State().TimeBreathPaused != 0 {
		t.Fatalf("expected only session_started and no timer, got %v %+v", h.kinds(), h.mgr.State())
	}
}

func TestStartSetWithExplicitNumber(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Targets{Sets: 3, BreathsPerSet: 1})
	_ = h.mgr.StartSession(false)
	if err := h.mgr.StartSet(3); err != nil {
		t.Fatalf("start set 3: %v", err)
	}
	h.fullBreath()
	if h.count(domain.EventSessionComplete) != 1 {
		t.Fatalf("finishing set 3 of 3 must complete the session")
	}
}

func TestOutOfOrderTransitionsAreRejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Targets{Sets: 2, BreathsPerSet: 2})
	checks := []struct {
		name string
		fn   func() error
	}{
		{name: "start set without session", fn: func() error { return h.mgr.StartSet(0) }},
		{name: "finish set without set", fn: h.mgr.FinishSet},
		{name: "finish session without session", fn: h.mgr.FinishSession},
		{name: "pause without set", fn: h.mgr.PauseSession},
		{name: "resume without pause", fn: h.mgr.ResumeSession},
	}
	for _, c := range checks {
		if err := c.fn(); !errors.Is(err, apperrors.ErrInvalidStateTransition) {
			t.Fatalf("%s: expected invalid transition, got %v", c.name, err)
		}
	}
	if len(h.events) != 0 {
		t.Fatalf("rejected transitions must not emit, got %v", h.kinds())
	}

	_ = h.mgr.StartSession(true)
	if err := h.mgr.StartSession(false); !errors.Is(err, apperrors.ErrInvalidStateTransition) {
		t.Fatalf("expected double start rejected, got %v", err)
	}
	if err := h.mgr.StartSet(0); !errors.Is(err, apperrors.ErrInvalidStateTransition) {
		t.Fatalf("expected start set during set rejected, got %v", err)
	}
	_ = h.mgr.PauseSession()
	if err := h.mgr.PauseSession(); !errors.Is(err, apperrors.ErrInvalidStateTransition) {
		t.Fatalf("expected double pause rejected, got %v", err)
	}
}

func TestTargetsAreFrozenDuringSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Targets{Sets: 1, BreathsPerSet: 1})
	if err := h.mgr.SetTargets(domain.Targets{Sets: 0, BreathsPerSet: 1}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid targets rejected, got %v", err)
	}
	_ = h.mgr.StartSession(true)
	if err := h.mgr.SetTargets(domain.Targets{Sets: 4, BreathsPerSet: 4}); !errors.Is(err, apperrors.ErrSessionInProgress) {
		t.Fatalf("expected session in progress, got %v", err)
	}
	h.fullBreath()
	if err := h.mgr.SetTargets(domain.Targets{Sets: 4, BreathsPerSet: 4}); err != nil {
		t.Fatalf("targets should be editable after session: %v", err)
	}
	if h.mgr.Targets().Sets != 4 {
		t.Fatalf("targets not applied: %+v", h.mgr.Targets())
	}
}

func TestFinishSessionKeepsInvariants(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Targets{Sets: 3, BreathsPerSet: 3})
	_ = h.mgr.StartSession(true)
	_ = h.mgr.PauseSession()
	if err := h.mgr.FinishSession(); err != nil {
		t.Fatalf("finish session: %v", err)
	}
	s := h.mgr.State()
	if s.SessionStarted || s.SetStarted || s.Paused {
		t.Fatalf("expected all flags cleared, got %+v", s)
	}
	h.tick(0.1, 1)
	if h.count(domain.EventSessionResumed) != 0 {
		t.Fatalf("finished session must not resume")
	}
}

func TestDetachStopsCounting(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Targets{Sets: 1, BreathsPerSet: 1})
	_ = h.mgr.StartSession(true)
	h.mgr.Detach()
	h.fullBreath()
	if h.count(domain.EventSetComplete) != 0 {
		t.Fatalf("detached manager must not observe breaths")
	}
}

func TestTallySummarisesEvents(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.Targets{Sets: 1, BreathsPerSet: 2})
	tally := domain.NewTally("sess-1", zeroTime, h.mgr.Targets(), h.rec.Calibration())
	h.rec.Subscribe(domain.ListenerFuncs{OnComplete: tally.Breath})
	h.mgr.Subscribe(tally.Session)

	_ = h.mgr.StartSession(true)
	h.fullBreath()
	h.weakBreath()
	for i := 0; i < 60; i++ {
		h.tick(0.1, 0)
	}
	h.fullBreath()

	s := tally.Close(zeroTime.Add(90 * time.Second))
	if !s.Completed || s.SetsCompleted != 1 || s.Pauses != 1 {
		t.Fatalf("unexpected lifecycle tally: %+v", s)
	}
	if s.BreathCount != 3 || s.GoodBreaths != 2 || s.BadBreaths != 1 {
		t.Fatalf("unexpected breath tally: %+v", s)
	}
	if s.BestQuality != 4 || s.Duration().Seconds() != 90 {
		t.Fatalf("unexpected quality/duration: %+v", s)
	}
}
