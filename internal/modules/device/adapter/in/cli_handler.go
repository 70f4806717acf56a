package in

import (
	"context"

	"breathkit/internal/modules/device/dto"
	devicein "breathkit/internal/modules/device/port/in"
)

type CLIHandler struct {
	usecase devicein.Usecase
}

func NewCLIHandler(usecase devicein.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) List(ctx context.Context) ([]dto.DriverOutput, error) {
	return h.usecase.ListDrivers(ctx)
}

func (h CLIHandler) Check(ctx context.Context) ([]dto.DoctorResult, error) {
	return h.usecase.Doctor(ctx)
}
