package in

import (
	"context"

	"breathkit/internal/modules/calibration/dto"
	calibrationin "breathkit/internal/modules/calibration/port/in"
)

type CLIHandler struct {
	usecase calibrationin.Usecase
}

func NewCLIHandler(usecase calibrationin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Run(ctx context.Context, input dto.CalibrateInput) (dto.ProfileOutput, error) {
	return h.usecase.Calibrate(ctx, input)
}

func (h CLIHandler) Show(ctx context.Context) (dto.ProfileOutput, error) {
	return h.usecase.Load(ctx)
}

func (h CLIHandler) Set(ctx context.Context, maxPressure, maxBreathLength float64) (dto.ProfileOutput, error) {
	return h.usecase.Set(ctx, dto.SetInput{MaxPressure: maxPressure, MaxBreathLength: maxBreathLength})
}
