package domain

// DefaultMinBreathThreshold is the pressure below which the user is not exhaling.
const DefaultMinBreathThreshold = 0.1

// ExhalationComplete is the immutable snapshot handed to listeners when a
// breath ends. BreathCount already includes the breath it describes.
type ExhalationComplete struct {
	BreathLength     float64
	BreathCount      uint
	ExhaledVolume    float64
	IsBreathFull     bool
	BreathPercentage float64
	BreathQuality    int
}

// RecognizerState is a read-only copy of the recognizer's accumulators.
type RecognizerState struct {
	IsExhaling       bool
	BreathLength     float64
	ExhaledVolume    float64
	BreathPercentage float64
	BreathCount      uint
	GoodBreaths      uint
	BadBreaths       uint
}

type Listener interface {
	ExhalationStarted()
	ExhalationComplete(ExhalationComplete)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnStarted  func()
	OnComplete func(ExhalationComplete)
}

func (f ListenerFuncs) ExhalationStarted() {
	if f.OnStarted != nil {
		f.OnStarted()
	}
}

func (f ListenerFuncs) ExhalationComplete(e ExhalationComplete) {
	if f.OnComplete != nil {
		f.OnComplete(e)
	}
}

type listenerEntry struct {
	id       int
	listener Listener
}

// Recognizer turns a stream of (dt, pressure) samples into discrete
// exhalations. It is not safe for concurrent use; callers serialize access.
type Recognizer struct {
	calibration Calibration
	minBreath   float64
	state       RecognizerState

	listeners []listenerEntry
	nextID    int
}

// NewRecognizer builds a recognizer. A non-positive threshold selects
// DefaultMinBreathThreshold.
func NewRecognizer(cal Calibration, minBreathThreshold float64) *Recognizer {
	if !(minBreathThreshold > 0) {
		minBreathThreshold = DefaultMinBreathThreshold
	}
	return &Recognizer{calibration: cal, minBreath: minBreathThreshold}
}

// Calibrate replaces the calibration profile as a whole.
func (r *Recognizer) Calibrate(cal Calibration) {
	r.calibration = cal
}

func (r *Recognizer) Calibration() Calibration { return r.calibration }

func (r *Recognizer) MinBreathThreshold() float64 { return r.minBreath }

func (r *Recognizer) State() RecognizerState { return r.state }

// Subscribe registers l and returns a func that removes it again.
func (r *Recognizer) Subscribe(l Listener) func() {
	r.nextID++
	id := r.nextID
	r.listeners = append(r.listeners, listenerEntry{id: id, listener: l})
	return func() {
		for i, entry := range r.listeners {
			if entry.id == id {
				r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
				return
			}
		}
	}
}

// AddSample feeds one frame of pressure into the recognizer.
func (r *Recognizer) AddSample(dt, pressure float64) {
	switch {
	case r.state.IsExhaling && pressure < r.minBreath:
		r.completeBreath()
	case pressure >= r.minBreath:
		if !r.state.IsExhaling {
			r.state.IsExhaling = true
			r.emitStarted()
		}
		if dt > 0 {
			r.state.ExhaledVolume += dt * pressure
			r.state.BreathLength += dt
		}
		r.state.BreathPercentage = Percentage(r.state.BreathLength, r.calibration)
	}
}

func (r *Recognizer) completeBreath() {
	full := IsBreathFull(r.state.BreathLength, r.state.ExhaledVolume, r.calibration)
	if full {
		r.state.GoodBreaths++
	} else {
		r.state.BadBreaths++
	}
	r.state.BreathCount++

	event := ExhalationComplete{
		BreathLength:     r.state.BreathLength,
		BreathCount:      r.state.BreathCount,
		ExhaledVolume:    r.state.ExhaledVolume,
		IsBreathFull:     full,
		BreathPercentage: r.state.BreathPercentage,
		BreathQuality:    Quality(r.state.BreathPercentage),
	}

	for _, entry := range r.snapshotListeners() {
		entry.listener.ExhalationComplete(event)
	}

	r.state.BreathLength = 0
	r.state.ExhaledVolume = 0
	r.state.IsExhaling = false
	r.state.BreathPercentage = 0
}

func (r *Recognizer) emitStarted() {
	for _, entry := range r.snapshotListeners() {
		entry.listener.ExhalationStarted()
	}
}

// snapshotListeners lets a listener unsubscribe while being dispatched to.
func (r *Recognizer) snapshotListeners() []listenerEntry {
	out := make([]listenerEntry, len(r.listeners))
	copy(out, r.listeners)
	return out
}

// ResetSession zeroes the current breath and every counter, including the
// good/bad tallies so that GoodBreaths+BadBreaths == BreathCount keeps holding.
func (r *Recognizer) ResetSession() {
	r.state = RecognizerState{}
}
