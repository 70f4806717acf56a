package bootstrap_test

import (
	"context"
	"testing"
	"time"

	"breathkit/internal/bootstrap"
	breathdto "breathkit/internal/modules/breath/dto"
	devicedto "breathkit/internal/modules/device/dto"
	"breathkit/internal/platform/config"
)

func scriptedBreaths() []float64 {
	var values []float64
	for i := 0; i < 12; i++ {
		values = append(values, 0.6)
	}
	return append(values, 0, 0, 0)
}

func TestAppTrainsFromScriptAndRecordsHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	app, err := bootstrap.New(config.Default(t.TempDir()), nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer app.Close()

	if _, err := app.CalibrationCLI.Set(ctx, 0.5, 1.0); err != nil {
		t.Fatalf("set calibration: %v", err)
	}

	summary, err := app.TrainingCLI.Train(ctx, breathdto.RunInput{
		Begin: breathdto.BeginInput{
			Device:        devicedto.OpenInput{Kind: "script", Values: scriptedBreaths(), Loop: true},
			Sets:          1,
			BreathsPerSet: 2,
			AutoStart:     true,
		},
		FrameInterval: 100 * time.Millisecond,
		MaxDuration:   time.Minute,
	})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if !summary.Completed {
		t.Fatalf("expected completed session, got %+v", summary)
	}
	if summary.GoodBreaths != 2 {
		t.Fatalf("expected two good breaths, got %d", summary.GoodBreaths)
	}
	if summary.NotePath == "" {
		t.Fatalf("expected a session note")
	}

	history, err := app.TrainingCLI.History(ctx, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ID != summary.ID {
		t.Fatalf("expected the session in history, got %+v", history)
	}
	note, err := app.TrainingCLI.Note(ctx, summary.ID)
	if err != nil {
		t.Fatalf("note: %v", err)
	}
	if note.Markdown == "" {
		t.Fatalf("expected note body")
	}
}

func TestAppRejectsTrainingWithoutCalibration(t *testing.T) {
	t.Parallel()
	app, err := bootstrap.New(config.Default(t.TempDir()), nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer app.Close()

	_, err = app.TrainingCLI.Train(context.Background(), breathdto.RunInput{
		Begin: breathdto.BeginInput{Device: devicedto.OpenInput{Kind: "constant"}},
	})
	if err == nil {
		t.Fatalf("expected training to require a calibration profile")
	}
}

func TestAppCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	app, err := bootstrap.New(config.Default(t.TempDir()), nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if err := app.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := app.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
