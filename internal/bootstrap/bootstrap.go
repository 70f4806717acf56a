package bootstrap

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	hclog "github.com/hashicorp/go-hclog"

	breathinadapter "breathkit/internal/modules/breath/adapter/in"
	breathoutadapter "breathkit/internal/modules/breath/adapter/out"
	breathin "breathkit/internal/modules/breath/port/in"
	breathservice "breathkit/internal/modules/breath/service"
	breathusecase "breathkit/internal/modules/breath/usecase"
	calibrationinadapter "breathkit/internal/modules/calibration/adapter/in"
	calibrationoutadapter "breathkit/internal/modules/calibration/adapter/out"
	calibrationservice "breathkit/internal/modules/calibration/service"
	calibrationusecase "breathkit/internal/modules/calibration/usecase"
	deviceinadapter "breathkit/internal/modules/device/adapter/in"
	deviceoutadapter "breathkit/internal/modules/device/adapter/out"
	deviceservice "breathkit/internal/modules/device/service"
	deviceusecase "breathkit/internal/modules/device/usecase"
	"breathkit/internal/platform/clock"
	"breathkit/internal/platform/config"
	"breathkit/internal/platform/id"
	uiapp "breathkit/internal/ui/app"
)

type App struct {
	Config         config.Config
	Logger         hclog.Logger
	TrainingCLI    breathinadapter.CLIHandler
	CalibrationCLI calibrationinadapter.CLIHandler
	DeviceCLI      deviceinadapter.CLIHandler

	training breathin.Usecase
	closers  []func() error
}

func New(cfg config.Config, logger hclog.Logger) (*App, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	clk := clock.SystemClock{}
	ids := id.UUID{}
	stateDir := cfg.StateDir()

	deviceUC := deviceusecase.NewInteractor(deviceservice.NewDeviceService(
		deviceoutadapter.NewFileManifestStore(cfg.DataDir),
		deviceoutadapter.NewGRPCHost(logger, cfg.DeviceCallTimeout),
		deviceoutadapter.NewFileRecordingOpener(),
	))

	calibrationUC := calibrationusecase.NewInteractor(calibrationservice.NewCalibrationService(
		clk,
		calibrationoutadapter.NewYAMLProfileStore(stateDir),
		deviceUC,
		logger,
	))

	history, err := breathoutadapter.NewSQLiteHistoryStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("new history store: %w", err)
	}
	trainingSvc := breathservice.NewTrainingService(
		clk,
		ids,
		breathoutadapter.NewYAMLTargetStore(stateDir),
		history,
		breathoutadapter.NewMarkdownNoteStore(stateDir),
	)
	trainingUC := breathusecase.NewInteractor(trainingSvc, calibrationUC, deviceUC, breathusecase.Settings{
		MinBreathThreshold: cfg.MinBreathThreshold,
		PauseAfter:         cfg.PauseAfter,
		FrameInterval:      cfg.FrameInterval,
	}, logger)

	return &App{
		Config:         cfg,
		Logger:         logger,
		TrainingCLI:    breathinadapter.NewCLIHandler(trainingUC),
		CalibrationCLI: calibrationinadapter.NewCLIHandler(calibrationUC),
		DeviceCLI:      deviceinadapter.NewCLIHandler(deviceUC),
		training:       trainingUC,
		closers:        []func() error{history.Close},
	}, nil
}

// Close releases the history database. It is safe to call more than once.
func (a *App) Close() error {
	var first error
	for _, fn := range a.closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// RunTUI blocks until the dashboard exits.
func RunTUI(app *App, input uiapp.Options) error {
	if input.FrameInterval <= 0 {
		input.FrameInterval = app.Config.FrameInterval
	}
	if input.FrameInterval <= 0 {
		input.FrameInterval = 33 * time.Millisecond
	}
	model := uiapp.NewModel(app.training, input)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
