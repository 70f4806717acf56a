package usecase

import (
	"context"

	"breathkit/internal/modules/calibration/domain"
	"breathkit/internal/modules/calibration/dto"
	calibrationin "breathkit/internal/modules/calibration/port/in"
	"breathkit/internal/modules/calibration/service"
)

type Interactor struct {
	svc *service.CalibrationService
}

func NewInteractor(svc *service.CalibrationService) calibrationin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Calibrate(ctx context.Context, input dto.CalibrateInput) (dto.ProfileOutput, error) {
	profile, err := i.svc.Capture(ctx, input)
	if err != nil {
		return dto.ProfileOutput{}, err
	}
	if err := i.svc.Save(ctx, profile); err != nil {
		return dto.ProfileOutput{}, err
	}
	return toOutput(profile), nil
}

func (i *Interactor) Load(ctx context.Context) (dto.ProfileOutput, error) {
	profile, err := i.svc.Load(ctx)
	if err != nil {
		return dto.ProfileOutput{}, err
	}
	return toOutput(profile), nil
}

func (i *Interactor) Set(ctx context.Context, input dto.SetInput) (dto.ProfileOutput, error) {
	profile, err := i.svc.Manual(input.MaxPressure, input.MaxBreathLength)
	if err != nil {
		return dto.ProfileOutput{}, err
	}
	if err := i.svc.Save(ctx, profile); err != nil {
		return dto.ProfileOutput{}, err
	}
	return toOutput(profile), nil
}

func toOutput(profile domain.Profile) dto.ProfileOutput {
	return dto.ProfileOutput{
		MaxPressure:     profile.MaxPressure,
		MaxBreathLength: profile.MaxBreathLength,
		CalibratedOn:    profile.CalibratedOn,
	}
}
