package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"breathkit/internal/modules/breath/domain"
	"breathkit/internal/modules/breath/dto"
	breathin "breathkit/internal/modules/breath/port/in"
	"breathkit/internal/modules/breath/service"
	calibrationin "breathkit/internal/modules/calibration/port/in"
	devicein "breathkit/internal/modules/device/port/in"
	apperrors "breathkit/internal/platform/errors"

	hclog "github.com/hashicorp/go-hclog"
)

const defaultFrameInterval = 33 * time.Millisecond

type Settings struct {
	MinBreathThreshold float64
	PauseAfter         time.Duration
	FrameInterval      time.Duration
}

type training struct {
	engine *service.Engine
	stream devicein.Stream
	tally  *domain.Tally
}

func (t *training) fold(frame service.Frame) {
	for _, b := range frame.Breaths {
		t.tally.Breath(b)
	}
	for _, e := range frame.Events {
		t.tally.Session(e)
	}
}

type Interactor struct {
	mu          sync.Mutex
	svc         *service.TrainingService
	calibration calibrationin.Usecase
	devices     devicein.Usecase
	settings    Settings
	logger      hclog.Logger
	active      *training
}

func NewInteractor(svc *service.TrainingService, calibration calibrationin.Usecase, devices devicein.Usecase, settings Settings, logger hclog.Logger) breathin.Usecase {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if settings.FrameInterval <= 0 {
		settings.FrameInterval = defaultFrameInterval
	}
	return &Interactor{svc: svc, calibration: calibration, devices: devices, settings: settings, logger: logger.Named("training")}
}

func (i *Interactor) Begin(ctx context.Context, input dto.BeginInput) (dto.FrameOutput, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.active != nil {
		return dto.FrameOutput{}, apperrors.ErrTrainingInProgress
	}
	if i.calibration == nil || i.devices == nil {
		return dto.FrameOutput{}, fmt.Errorf("training dependencies are not configured")
	}

	profile, err := i.calibration.Load(ctx)
	if err != nil {
		return dto.FrameOutput{}, err
	}
	cal, err := domain.NewCalibration(profile.MaxPressure, profile.MaxBreathLength)
	if err != nil {
		return dto.FrameOutput{}, err
	}
	targets, err := i.svc.Targets(ctx)
	if err != nil {
		return dto.FrameOutput{}, err
	}
	if input.Sets > 0 {
		targets.Sets = input.Sets
	}
	if input.BreathsPerSet > 0 {
		targets.BreathsPerSet = input.BreathsPerSet
	}
	if err := targets.Validate(); err != nil {
		return dto.FrameOutput{}, err
	}

	stream, err := i.devices.Open(ctx, input.Device)
	if err != nil {
		return dto.FrameOutput{}, err
	}
	engine, err := service.NewEngine(service.EngineConfig{
		Calibration:        cal,
		Targets:            targets,
		MinBreathThreshold: i.settings.MinBreathThreshold,
		PauseAfter:         i.settings.PauseAfter.Seconds(),
	}, i.logger)
	if err != nil {
		_ = stream.Close()
		return dto.FrameOutput{}, err
	}

	t := &training{engine: engine, stream: stream, tally: i.svc.Open(targets, cal)}
	frame, err := engine.StartSession(input.AutoStart)
	if err != nil {
		engine.Close()
		_ = stream.Close()
		return dto.FrameOutput{}, err
	}
	t.fold(frame)
	i.active = t
	i.logger.Info("training started", "id", t.tally.Current().ID, "sets", targets.Sets, "breaths_per_set", targets.BreathsPerSet, "source", input.Device.Kind)
	return toFrameOutput(frame), nil
}

// Step reads one sample and advances the engine by dt seconds. The frame
// that completes the session also carries the persisted summary.
func (i *Interactor) Step(ctx context.Context, dt float64) (dto.FrameOutput, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.active == nil {
		return dto.FrameOutput{}, apperrors.ErrNoActiveTraining
	}
	pressure, err := i.active.stream.Pressure(ctx)
	if err != nil {
		return dto.FrameOutput{}, err
	}
	frame := i.active.engine.Tick(dt, pressure)
	i.active.fold(frame)
	out := toFrameOutput(frame)
	if frame.Has(domain.EventSessionComplete) {
		summary, err := i.finishLocked(ctx)
		if err != nil {
			return out, err
		}
		out.Summary = &summary
	}
	return out, nil
}

func (i *Interactor) StartSet(_ context.Context) (dto.FrameOutput, error) {
	return i.command(func(e *service.Engine) (service.Frame, error) { return e.StartSet(0) })
}

func (i *Interactor) Pause(_ context.Context) (dto.FrameOutput, error) {
	return i.command((*service.Engine).Pause)
}

func (i *Interactor) Resume(_ context.Context) (dto.FrameOutput, error) {
	return i.command((*service.Engine).Resume)
}

// End stops the training and records it as it stands. A session that did
// not reach its targets is saved with Completed=false.
func (i *Interactor) End(ctx context.Context) (dto.SummaryOutput, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.active == nil {
		return dto.SummaryOutput{}, apperrors.ErrNoActiveTraining
	}
	return i.finishLocked(ctx)
}

func (i *Interactor) Current(_ context.Context) (dto.FrameOutput, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.active == nil {
		return dto.FrameOutput{}, apperrors.ErrNoActiveTraining
	}
	return toFrameOutput(i.active.engine.Stats()), nil
}

// Run begins a training and steps it until the session completes, the
// source runs out, MaxDuration of frame time passes or ctx is cancelled.
// Stopping early is not an error; the summary then has Completed=false.
// With AutoStart every following set starts as soon as the previous one
// completes.
func (i *Interactor) Run(ctx context.Context, input dto.RunInput) (dto.SummaryOutput, error) {
	interval := input.FrameInterval
	if interval <= 0 {
		interval = i.settings.FrameInterval
	}
	first, err := i.Begin(ctx, input.Begin)
	if err != nil {
		return dto.SummaryOutput{}, err
	}
	if input.OnFrame != nil {
		input.OnFrame(first)
	}

	var ticks <-chan time.Time
	prev := time.Now()
	if input.Realtime {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	// Stores must still be written after the caller's ctx is done.
	endCtx := context.WithoutCancel(ctx)
	elapsed := 0.0
	for {
		dt := interval.Seconds()
		if ticks != nil {
			select {
			case <-ctx.Done():
				return i.End(endCtx)
			case now := <-ticks:
				dt = now.Sub(prev).Seconds()
				prev = now
			}
		} else if ctx.Err() != nil {
			return i.End(endCtx)
		}

		frame, err := i.Step(ctx, dt)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				i.logger.Info("pressure source stopped", "reason", err)
				return i.End(endCtx)
			}
			summary, endErr := i.End(endCtx)
			if endErr != nil {
				return summary, errors.Join(err, endErr)
			}
			return summary, err
		}
		if input.OnFrame != nil {
			input.OnFrame(frame)
		}
		if frame.Summary != nil {
			return *frame.Summary, nil
		}
		if input.Begin.AutoStart && hasEvent(frame, domain.EventSetComplete) {
			next, err := i.StartSet(ctx)
			if err != nil {
				return dto.SummaryOutput{}, err
			}
			if input.OnFrame != nil {
				input.OnFrame(next)
			}
		}
		elapsed += dt
		if input.MaxDuration > 0 && elapsed >= input.MaxDuration.Seconds() {
			return i.End(endCtx)
		}
	}
}

func (i *Interactor) History(ctx context.Context, limit int) ([]dto.SummaryOutput, error) {
	summaries, err := i.svc.History(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SummaryOutput, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, toSummaryOutput(s, ""))
	}
	return out, nil
}

func (i *Interactor) GetNote(ctx context.Context, id string) (dto.NoteOutput, error) {
	if id == "" {
		return dto.NoteOutput{}, fmt.Errorf("%w: session id is required", apperrors.ErrInvalidInput)
	}
	body, err := i.svc.Note(ctx, id)
	if err != nil {
		return dto.NoteOutput{}, err
	}
	return dto.NoteOutput{ID: id, Markdown: body}, nil
}

func (i *Interactor) GetTargets(ctx context.Context) (dto.TargetsOutput, error) {
	t, err := i.svc.Targets(ctx)
	if err != nil {
		return dto.TargetsOutput{}, err
	}
	return dto.TargetsOutput{Sets: t.Sets, BreathsPerSet: t.BreathsPerSet}, nil
}

func (i *Interactor) SetTargets(ctx context.Context, input dto.TargetsInput) (dto.TargetsOutput, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.active != nil {
		return dto.TargetsOutput{}, fmt.Errorf("change targets: %w", apperrors.ErrSessionInProgress)
	}
	t := domain.Targets{Sets: input.Sets, BreathsPerSet: input.BreathsPerSet}
	if err := i.svc.SaveTargets(ctx, t); err != nil {
		return dto.TargetsOutput{}, err
	}
	return dto.TargetsOutput{Sets: t.Sets, BreathsPerSet: t.BreathsPerSet}, nil
}

func (i *Interactor) command(fn func(*service.Engine) (service.Frame, error)) (dto.FrameOutput, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.active == nil {
		return dto.FrameOutput{}, apperrors.ErrNoActiveTraining
	}
	frame, err := fn(i.active.engine)
	i.active.fold(frame)
	if err != nil {
		return dto.FrameOutput{}, err
	}
	return toFrameOutput(frame), nil
}

func (i *Interactor) finishLocked(ctx context.Context) (dto.SummaryOutput, error) {
	t := i.active
	i.active = nil
	t.engine.Close()
	if err := t.stream.Close(); err != nil {
		i.logger.Warn("close pressure source", "error", err)
	}
	summary, path, err := i.svc.Finish(ctx, t.tally)
	if err != nil {
		return dto.SummaryOutput{}, err
	}
	i.logger.Info("training recorded", "id", summary.ID, "completed", summary.Completed, "breaths", summary.BreathCount)
	return toSummaryOutput(summary, path), nil
}

func hasEvent(frame dto.FrameOutput, kind domain.EventKind) bool {
	for _, e := range frame.Events {
		if e.Kind == string(kind) {
			return true
		}
	}
	return false
}

func toFrameOutput(f service.Frame) dto.FrameOutput {
	out := dto.FrameOutput{
		Pressure:         f.Pressure,
		Exhaling:         f.Recognizer.IsExhaling,
		BreathLength:     f.Recognizer.BreathLength,
		BreathPercentage: f.Recognizer.BreathPercentage,
		BreathCount:      f.Recognizer.BreathCount,
		GoodBreaths:      f.Recognizer.GoodBreaths,
		BadBreaths:       f.Recognizer.BadBreaths,
		SessionStarted:   f.Session.SessionStarted,
		SetStarted:       f.Session.SetStarted,
		Paused:           f.Session.Paused,
		CurrentSet:       f.Session.CurrentSet,
		CurrentBreath:    f.Session.CurrentBreath,
		Sets:             f.Session.Targets.Sets,
		BreathsPerSet:    f.Session.Targets.BreathsPerSet,
		IdleSeconds:      f.Session.TimeBreathPaused,
	}
	for _, b := range f.Breaths {
		out.Breaths = append(out.Breaths, dto.BreathOutput{
			Length:     b.BreathLength,
			Count:      b.BreathCount,
			Volume:     b.ExhaledVolume,
			Full:       b.IsBreathFull,
			Percentage: b.BreathPercentage,
			Quality:    b.BreathQuality,
		})
	}
	for _, e := range f.Events {
		out.Events = append(out.Events, dto.EventOutput{
			Kind:         string(e.Kind),
			Set:          e.Result.Set,
			Breath:       e.Result.Breath,
			BreathLength: e.Result.BreathLength,
			MaxPressure:  e.Result.MaxPressure,
			Quality:      e.Result.Quality,
		})
	}
	return out
}

func toSummaryOutput(s domain.Summary, notePath string) dto.SummaryOutput {
	return dto.SummaryOutput{
		ID:              s.ID,
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
		DurationSeconds: s.Duration().Seconds(),
		Sets:            s.Targets.Sets,
		BreathsPerSet:   s.Targets.BreathsPerSet,
		MaxPressure:     s.Calibration.MaxPressure(),
		MaxBreathLength: s.Calibration.MaxBreathLength(),
		SetsCompleted:   s.SetsCompleted,
		BreathCount:     s.BreathCount,
		GoodBreaths:     s.GoodBreaths,
		BadBreaths:      s.BadBreaths,
		Pauses:          s.Pauses,
		LongestBreath:   s.LongestBreath,
		BestQuality:     s.BestQuality,
		TotalVolume:     s.TotalVolume,
		Completed:       s.Completed,
		NotePath:        notePath,
	}
}
