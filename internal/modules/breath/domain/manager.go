package domain

import (
	"fmt"

	apperrors "breathkit/internal/platform/errors"
)

// DefaultPauseAfter is how many seconds without breathing pause an active set.
const DefaultPauseAfter = 5.0

type EventKind string

const (
	EventSessionStarted  EventKind = "session_started"
	EventSetStarted      EventKind = "set_started"
	EventSetComplete     EventKind = "set_complete"
	EventSessionComplete EventKind = "session_complete"
	EventSessionPaused   EventKind = "session_paused"
	EventSessionResumed  EventKind = "session_resumed"
)

// SetResult describes the session at the moment an event fired. MaxPressure
// holds the exhaled volume of the last full breath.
type SetResult struct {
	Set          uint
	Breath       uint
	BreathLength float64
	MaxPressure  float64
	Quality      int
}

type Event struct {
	Kind   EventKind
	Result SetResult
}

// Targets is the shape of a session: Sets sets of BreathsPerSet full breaths.
type Targets struct {
	Sets          uint
	BreathsPerSet uint
}

var DefaultTargets = Targets{Sets: 3, BreathsPerSet: 8}

func (t Targets) Validate() error {
	if t.Sets < 1 {
		return fmt.Errorf("%w: sets must be at least 1", apperrors.ErrInvalidInput)
	}
	if t.BreathsPerSet < 1 {
		return fmt.Errorf("%w: breaths per set must be at least 1", apperrors.ErrInvalidInput)
	}
	return nil
}

type SessionState struct {
	SessionStarted   bool
	SetStarted       bool
	Paused           bool
	CurrentSet       uint
	CurrentBreath    uint
	Targets          Targets
	TimeBreathPaused float64
}

type ManagerConfig struct {
	Targets Targets
	// PauseAfter in seconds; non-positive selects DefaultPauseAfter.
	PauseAfter float64
}

// Manager sequences full breaths into sets and sets into a session. It
// subscribes to its recognizer once and only counts breaths while a set is
// running and not paused.
type Manager struct {
	targets    Targets
	pauseAfter float64

	sessionStarted   bool
	setStarted       bool
	paused           bool
	currentSet       uint
	currentBreath    uint
	timeBreathPaused float64

	lastBreathLength float64
	lastVolume       float64
	lastQuality      int

	listeners   []func(Event)
	unsubscribe func()
}

func NewManager(rec *Recognizer, cfg ManagerConfig) (*Manager, error) {
	if err := cfg.Targets.Validate(); err != nil {
		return nil, err
	}
	pauseAfter := cfg.PauseAfter
	if !(pauseAfter > 0) {
		pauseAfter = DefaultPauseAfter
	}
	m := &Manager{targets: cfg.Targets, pauseAfter: pauseAfter}
	m.unsubscribe = rec.Subscribe(ListenerFuncs{OnComplete: m.onBreathComplete})
	return m, nil
}

// Detach stops observing the recognizer.
func (m *Manager) Detach() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Subscribe registers fn for every session event. Dispatch is synchronous.
func (m *Manager) Subscribe(fn func(Event)) {
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) State() SessionState {
	return SessionState{
		SessionStarted:   m.sessionStarted,
		SetStarted:       m.setStarted,
		Paused:           m.paused,
		CurrentSet:       m.currentSet,
		CurrentBreath:    m.currentBreath,
		Targets:          m.targets,
		TimeBreathPaused: m.timeBreathPaused,
	}
}

func (m *Manager) Targets() Targets { return m.targets }

// SetTargets is only allowed between sessions.
func (m *Manager) SetTargets(t Targets) error {
	if m.sessionStarted {
		return fmt.Errorf("change targets: %w", apperrors.ErrSessionInProgress)
	}
	if err := t.Validate(); err != nil {
		return err
	}
	m.targets = t
	return nil
}

func (m *Manager) StartSession(autoStart bool) error {
	if m.sessionStarted {
		return transitionError("start session", "a session is already running")
	}
	m.currentSet = 0
	m.currentBreath = 0
	m.timeBreathPaused = 0
	m.sessionStarted = true
	m.emit(EventSessionStarted)

	if autoStart {
		return m.StartSet(0)
	}
	return nil
}

// StartSet begins set n, or the next set when n is 0.
func (m *Manager) StartSet(n uint) error {
	if !m.sessionStarted {
		return transitionError("start set", "no session is running")
	}
	if m.setStarted {
		return transitionError("start set", "a set is already running")
	}
	if n > 0 {
		m.currentSet = n
	} else {
		m.currentSet++
	}
	m.currentBreath = 0
	m.timeBreathPaused = 0
	m.setStarted = true
	m.emit(EventSetStarted)
	return nil
}

func (m *Manager) FinishSet() error {
	if !m.setStarted {
		return transitionError("finish set", "no set is running")
	}
	m.currentBreath = 0
	m.setStarted = false
	m.paused = false
	m.emit(EventSetComplete)
	if m.currentSet >= m.targets.Sets {
		return m.FinishSession()
	}
	return nil
}

func (m *Manager) FinishSession() error {
	if !m.sessionStarted {
		return transitionError("finish session", "no session is running")
	}
	m.setStarted = false
	m.paused = false
	m.sessionStarted = false
	m.emit(EventSessionComplete)
	return nil
}

func (m *Manager) PauseSession() error {
	if !m.setStarted {
		return transitionError("pause session", "no set is running")
	}
	if m.paused {
		return transitionError("pause session", "already paused")
	}
	m.paused = true
	m.emit(EventSessionPaused)
	return nil
}

func (m *Manager) ResumeSession() error {
	if !m.paused {
		return transitionError("resume session", "not paused")
	}
	m.timeBreathPaused = 0
	m.paused = false
	m.emit(EventSessionResumed)
	return nil
}

// Update runs the inactivity timer. It is called every frame whatever the state.
func (m *Manager) Update(dt, pressure, minBreathThreshold float64) {
	switch {
	case m.sessionStarted && m.setStarted && !m.paused:
		if pressure > minBreathThreshold {
			m.timeBreathPaused = 0
		} else if dt > 0 {
			m.timeBreathPaused += dt
		}
		if m.timeBreathPaused > m.pauseAfter {
			_ = m.PauseSession()
		}
	case m.paused:
		if pressure > minBreathThreshold {
			_ = m.ResumeSession()
		}
	}
}

func (m *Manager) onBreathComplete(e ExhalationComplete) {
	if !m.setStarted || m.paused || !e.IsBreathFull {
		return
	}
	m.currentBreath++
	m.lastBreathLength = e.BreathLength
	m.lastVolume = e.ExhaledVolume
	m.lastQuality = e.BreathQuality
	if m.currentBreath >= m.targets.BreathsPerSet {
		_ = m.FinishSet()
	}
}

func (m *Manager) result() SetResult {
	return SetResult{
		Set:          m.currentSet,
		Breath:       m.currentBreath,
		BreathLength: m.lastBreathLength,
		MaxPressure:  m.lastVolume,
		Quality:      m.lastQuality,
	}
}

func (m *Manager) emit(kind EventKind) {
	event := Event{Kind: kind, Result: m.result()}
	for _, fn := range m.listeners {
		fn(event)
	}
}

func transitionError(op, reason string) error {
	return fmt.Errorf("%s: %w: %s", op, apperrors.ErrInvalidStateTransition, reason)
}
