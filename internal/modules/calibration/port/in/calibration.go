package in

import (
	"context"

	"breathkit/internal/modules/calibration/dto"
)

type Usecase interface {
	Calibrate(ctx context.Context, input dto.CalibrateInput) (dto.ProfileOutput, error)
	Load(ctx context.Context) (dto.ProfileOutput, error)
	Set(ctx context.Context, input dto.SetInput) (dto.ProfileOutput, error)
}
