package usecase_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	breathout "breathkit/internal/modules/breath/adapter/out"
	"breathkit/internal/modules/breath/dto"
	breathin "breathkit/internal/modules/breath/port/in"
	"breathkit/internal/modules/breath/service"
	"breathkit/internal/modules/breath/usecase"
	calibrationdto "breathkit/internal/modules/calibration/dto"
	devicedto "breathkit/internal/modules/device/dto"
	deviceservice "breathkit/internal/modules/device/service"
	deviceusecase "breathkit/internal/modules/device/usecase"
	apperrors "breathkit/internal/platform/errors"
)

type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (f *fakeClock) Now() time.Time {
	v := f.now
	f.now = f.now.Add(f.step)
	return v
}

type fakeID struct{}

func (fakeID) New() string { return "sess-1" }

type fakeCalibration struct {
	profile calibrationdto.ProfileOutput
	err     error
}

func (f fakeCalibration) Calibrate(context.Context, calibrationdto.CalibrateInput) (calibrationdto.ProfileOutput, error) {
	return f.profile, f.err
}

func (f fakeCalibration) Load(context.Context) (calibrationdto.ProfileOutput, error) {
	return f.profile, f.err
}

func (f fakeCalibration) Set(context.Context, calibrationdto.SetInput) (calibrationdto.ProfileOutput, error) {
	return f.profile, f.err
}

type fixture struct {
	uc      breathin.Usecase
	history *breathout.SQLiteHistoryStore
	dir     string
}

func newFixture(t *testing.T, cal fakeCalibration) fixture {
	t.Helper()
	dir := t.TempDir()
	history, err := breathout.NewSQLiteHistoryStore(filepath.Join(dir, "breathkit.db"))
	if err != nil {
		t.Fatalf("history store: %v", err)
	}
	t.Cleanup(func() { _ = history.Close() })
	clk := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), step: time.Minute}
	svc := service.NewTrainingService(clk, fakeID{}, breathout.NewYAMLTargetStore(dir), history, breathout.NewMarkdownNoteStore(dir))
	devices := deviceusecase.NewInteractor(deviceservice.NewDeviceService(nil, nil, nil))
	uc := usecase.NewInteractor(svc, cal, devices, usecase.Settings{MinBreathThreshold: 0.1, PauseAfter: 5 * time.Second, FrameInterval: 100 * time.Millisecond}, nil)
	return fixture{uc: uc, history: history, dir: dir}
}

func calibrated() fakeCalibration {
	return fakeCalibration{profile: calibrationdto.ProfileOutput{MaxPressure: 1.0, MaxBreathLength: 1.0}}
}

// breaths builds n full breaths of 12 frames at pressure 1 followed by a
// silent frame.
func breaths(n int) []float64 {
	out := []float64{}
	for i := 0; i < n; i++ {
		for j := 0; j < 12; j++ {
			out = append(out, 1.0)
		}
		out = append(out, 0)
	}
	return out
}

func TestRunCompletesSessionAndPersistsSummary(t *testing.T) {
	t.Parallel()
	f := newFixture(t, calibrated())
	ctx := context.Background()

	var kinds []string
	summary, err := f.uc.Run(ctx, dto.RunInput{
		Begin: dto.BeginInput{
			Device:        devicedto.OpenInput{Kind: "script", Values: breaths(4)},
			Sets:          2,
			BreathsPerSet: 2,
			AutoStart:     true,
		},
		OnFrame: func(frame dto.FrameOutput) {
			for _, e := range frame.Events {
				kinds = append(kinds, e.Kind)
			}
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !summary.Completed || summary.SetsCompleted != 2 || summary.GoodBreaths != 4 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.NotePath == "" {
		t.Fatalf("expected a session note path")
	}
	want := []string{"session_started", "set_started", "set_complete", "set_started", "set_complete", "session_complete"}
	if len(kinds) != len(want) {
		t.Fatalf("expected events %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, kinds)
		}
	}

	history, err := f.uc.History(ctx, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ID != "sess-1" || !history[0].Completed {
		t.Fatalf("unexpected history: %+v", history)
	}
	note, err := f.uc.GetNote(ctx, "sess-1")
	if err != nil || note.Markdown == "" {
		t.Fatalf("expected note, got %+v err=%v", note, err)
	}
	if _, err := f.uc.Step(ctx, 0.1); !errors.Is(err, apperrors.ErrNoActiveTraining) {
		t.Fatalf("expected no active training after completion, got %v", err)
	}
}

func TestRunWithoutAutoStartNeedsManualSet(t *testing.T) {
	t.Parallel()
	f := newFixture(t, calibrated())
	summary, err := f.uc.Run(context.Background(), dto.RunInput{
		Begin: dto.BeginInput{Device: devicedto.OpenInput{Kind: "script", Values: breaths(3)}, Sets: 1, BreathsPerSet: 1},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Completed || summary.SetsCompleted != 0 {
		t.Fatalf("breaths outside a set must not count, got %+v", summary)
	}
	if summary.BreathCount != 3 {
		t.Fatalf("expected the breaths to be observed, got %+v", summary)
	}
}

func TestBeginRequiresCalibration(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fakeCalibration{err: apperrors.ErrUncalibrated})
	_, err := f.uc.Begin(context.Background(), dto.BeginInput{Device: devicedto.OpenInput{Kind: "constant"}})
	if !errors.Is(err, apperrors.ErrUncalibrated) {
		t.Fatalf("expected uncalibrated, got %v", err)
	}
}

func TestStepAndCommandsDuringTraining(t *testing.T) {
	t.Parallel()
	f := newFixture(t, calibrated())
	ctx := context.Background()

	frame, err := f.uc.Begin(ctx, dto.BeginInput{Device: devicedto.OpenInput{Kind: "constant", Values: []float64{0}}, Sets: 2, BreathsPerSet: 3})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !frame.SessionStarted || frame.SetStarted || frame.Sets != 2 {
		t.Fatalf("unexpected begin frame: %+v", frame)
	}
	if _, err := f.uc.Begin(ctx, dto.BeginInput{Device: devicedto.OpenInput{Kind: "constant"}}); !errors.Is(err, apperrors.ErrTrainingInProgress) {
		t.Fatalf("expected training in progress, got %v", err)
	}
	if _, err := f.uc.SetTargets(ctx, dto.TargetsInput{Sets: 1, BreathsPerSet: 1}); !errors.Is(err, apperrors.ErrSessionInProgress) {
		t.Fatalf("expected targets locked, got %v", err)
	}
	if _, err := f.uc.Pause(ctx); !errors.Is(err, apperrors.ErrInvalidStateTransition) {
		t.Fatalf("pause without a set must fail, got %v", err)
	}

	frame, err = f.uc.StartSet(ctx)
	if err != nil || !frame.SetStarted || frame.CurrentSet != 1 {
		t.Fatalf("start set: %v %+v", err, frame)
	}
	for i := 0; i < 45; i++ {
		frame, err = f.uc.Step(ctx, 0.1)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if frame.Paused {
		t.Fatalf("paused too early: idle=%v", frame.IdleSeconds)
	}
	paused := false
	for i := 0; i < 10 && !paused; i++ {
		frame, err = f.uc.Step(ctx, 0.1)
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		paused = frame.Paused
	}
	if !paused {
		t.Fatalf("expected auto pause after 5s of silence")
	}
	frame, err = f.uc.Resume(ctx)
	if err != nil || frame.Paused {
		t.Fatalf("resume: %v %+v", err, frame)
	}
	current, err := f.uc.Current(ctx)
	if err != nil || current.IdleSeconds != 0 {
		t.Fatalf("current: %v %+v", err, current)
	}

	summary, err := f.uc.End(ctx)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if summary.Completed || summary.Pauses != 1 {
		t.Fatalf("expected an incomplete summary with one pause, got %+v", summary)
	}
	if _, err := f.uc.End(ctx); !errors.Is(err, apperrors.ErrNoActiveTraining) {
		t.Fatalf("expected no active training, got %v", err)
	}
}

func TestRunStopsWhenContextIsCancelled(t *testing.T) {
	t.Parallel()
	f := newFixture(t, calibrated())
	ctx, cancel := context.WithCancel(context.Background())
	frames := 0
	summary, err := f.uc.Run(ctx, dto.RunInput{
		Begin: dto.BeginInput{Device: devicedto.OpenInput{Kind: "constant", Values: []float64{0.5}}, AutoStart: true},
		OnFrame: func(dto.FrameOutput) {
			frames++
			if frames == 10 {
				cancel()
			}
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Completed {
		t.Fatalf("cancelled run must not be completed")
	}
	history, err := f.uc.History(context.Background(), 0)
	if err != nil || len(history) != 1 {
		t.Fatalf("expected the partial run recorded, got %+v err=%v", history, err)
	}
}

func TestRunStopsAfterMaxDuration(t *testing.T) {
	t.Parallel()
	f := newFixture(t, calibrated())
	frames := 0
	summary, err := f.uc.Run(context.Background(), dto.RunInput{
		Begin:         dto.BeginInput{Device: devicedto.OpenInput{Kind: "constant"}, AutoStart: true},
		FrameInterval: 250 * time.Millisecond,
		MaxDuration:   2 * time.Second,
		OnFrame:       func(dto.FrameOutput) { frames++ },
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// The begin frame plus eight frames of a quarter second.
	if frames != 9 {
		t.Fatalf("expected 9 frames, got %d", frames)
	}
	if summary.Completed {
		t.Fatalf("expected an incomplete summary")
	}
}

func TestTargetsPersist(t *testing.T) {
	t.Parallel()
	f := newFixture(t, calibrated())
	ctx := context.Background()
	got, err := f.uc.GetTargets(ctx)
	if err != nil || got.Sets != 3 || got.BreathsPerSet != 8 {
		t.Fatalf("expected default targets, got %+v err=%v", got, err)
	}
	if _, err := f.uc.SetTargets(ctx, dto.TargetsInput{Sets: 0, BreathsPerSet: 4}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := f.uc.SetTargets(ctx, dto.TargetsInput{Sets: 4, BreathsPerSet: 6}); err != nil {
		t.Fatalf("set targets: %v", err)
	}
	got, err = f.uc.GetTargets(ctx)
	if err != nil || got.Sets != 4 || got.BreathsPerSet != 6 {
		t.Fatalf("expected saved targets, got %+v err=%v", got, err)
	}
	frame, err := f.uc.Begin(ctx, dto.BeginInput{Device: devicedto.OpenInput{Kind: "constant"}})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if frame.Sets != 4 || frame.BreathsPerSet != 6 {
		t.Fatalf("begin must use saved targets, got %+v", frame)
	}
	if _, err := f.uc.End(ctx); err != nil {
		t.Fatalf("end: %v", err)
	}
}
