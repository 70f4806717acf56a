package in

import (
	"context"

	"breathkit/internal/modules/device/dto"
)

// Stream is an open pressure source, read once per frame.
type Stream interface {
	Pressure(ctx context.Context) (float64, error)
	Close() error
}

type Usecase interface {
	Open(ctx context.Context, input dto.OpenInput) (Stream, error)
	ListDrivers(ctx context.Context) ([]dto.DriverOutput, error)
	Doctor(ctx context.Context) ([]dto.DoctorResult, error)
}
