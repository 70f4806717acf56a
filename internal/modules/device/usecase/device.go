package usecase

import (
	"context"

	"breathkit/internal/modules/device/dto"
	devicein "breathkit/internal/modules/device/port/in"
	"breathkit/internal/modules/device/service"
)

type Interactor struct {
	svc *service.DeviceService
}

func NewInteractor(svc *service.DeviceService) devicein.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Open(ctx context.Context, input dto.OpenInput) (devicein.Stream, error) {
	return i.svc.Open(ctx, input)
}

func (i *Interactor) ListDrivers(ctx context.Context) ([]dto.DriverOutput, error) {
	return i.svc.ListDrivers(ctx)
}

func (i *Interactor) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	return i.svc.Doctor(ctx)
}
