package service

import (
	"sync"

	"breathkit/internal/modules/breath/domain"

	hclog "github.com/hashicorp/go-hclog"
)

type EngineConfig struct {
	Calibration        domain.Calibration
	Targets            domain.Targets
	MinBreathThreshold float64
	// PauseAfter in seconds.
	PauseAfter float64
}

// Frame is what one engine call produced: the state after the call and the
// breaths and session events emitted during it, in emission order.
type Frame struct {
	Pressure   float64
	Recognizer domain.RecognizerState
	Session    domain.SessionState
	Breaths    []domain.ExhalationComplete
	Events     []domain.Event
}

// Has reports whether kind was emitted during the frame.
func (f Frame) Has(kind domain.EventKind) bool {
	for _, e := range f.Events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// Engine owns one recognizer and the manager observing it. Every method
// takes the same lock, so a host may call it from several goroutines.
// Listeners run under that lock and must not call back into the engine.
type Engine struct {
	mu     sync.Mutex
	rec    *domain.Recognizer
	mgr    *domain.Manager
	logger hclog.Logger

	breaths []domain.ExhalationComplete
	events  []domain.Event
}

func NewEngine(cfg EngineConfig, logger hclog.Logger) (*Engine, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	rec := domain.NewRecognizer(cfg.Calibration, cfg.MinBreathThreshold)
	mgr, err := domain.NewManager(rec, domain.ManagerConfig{Targets: cfg.Targets, PauseAfter: cfg.PauseAfter})
	if err != nil {
		return nil, err
	}
	e := &Engine{rec: rec, mgr: mgr, logger: logger.Named("engine")}
	rec.Subscribe(domain.ListenerFuncs{OnComplete: e.collectBreath})
	mgr.Subscribe(e.collectEvent)
	return e, nil
}

func (e *Engine) collectBreath(b domain.ExhalationComplete) {
	e.logger.Debug("breath", "count", b.BreathCount, "length", b.BreathLength, "full", b.IsBreathFull, "quality", b.BreathQuality)
	e.breaths = append(e.breaths, b)
}

func (e *Engine) collectEvent(ev domain.Event) {
	e.logger.Info(string(ev.Kind), "set", ev.Result.Set, "breath", ev.Result.Breath)
	e.events = append(e.events, ev)
}

// Tick feeds one frame: the recognizer sees the sample first, then the
// manager's inactivity timer runs.
func (e *Engine) Tick(dt, pressure float64) Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rec.AddSample(dt, pressure)
	e.mgr.Update(dt, pressure, e.rec.MinBreathThreshold())
	return e.flush(pressure)
}

func (e *Engine) StartSession(autoStart bool) (Frame, error) {
	return e.command(func() error { return e.mgr.StartSession(autoStart) })
}

// StartSet starts set n, or the next one when n is 0.
func (e *Engine) StartSet(n uint) (Frame, error) {
	return e.command(func() error { return e.mgr.StartSet(n) })
}

func (e *Engine) FinishSet() (Frame, error) {
	return e.command(e.mgr.FinishSet)
}

func (e *Engine) FinishSession() (Frame, error) {
	return e.command(e.mgr.FinishSession)
}

func (e *Engine) Pause() (Frame, error) {
	return e.command(e.mgr.PauseSession)
}

func (e *Engine) Resume() (Frame, error) {
	return e.command(e.mgr.ResumeSession)
}

func (e *Engine) SetTargets(t domain.Targets) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mgr.SetTargets(t)
}

func (e *Engine) Calibrate(cal domain.Calibration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger.Info("calibration replaced", "calibration", cal.String())
	e.rec.Calibrate(cal)
}

func (e *Engine) ResetSession() Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rec.ResetSession()
	return e.flush(0)
}

// Stats returns the current state without consuming pending events.
func (e *Engine) Stats() Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Frame{Recognizer: e.rec.State(), Session: e.mgr.State()}
}

func (e *Engine) Calibration() domain.Calibration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Calibration()
}

// Close detaches the manager from the recognizer.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mgr.Detach()
}

func (e *Engine) command(fn func() error) (Frame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(); err != nil {
		return e.flush(0), err
	}
	return e.flush(0), nil
}

func (e *Engine) flush(pressure float64) Frame {
	frame := Frame{
		Pressure:   pressure,
		Recognizer: e.rec.State(),
		Session:    e.mgr.State(),
		Breaths:    e.breaths,
		Events:     e.events,
	}
	e.breaths = nil
	e.events = nil
	return frame
}
