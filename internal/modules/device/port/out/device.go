package out

import (
	"context"

	"breathkit/internal/modules/device/domain"
)

// Sampler yields one pressure reading per call.
type Sampler interface {
	Next(ctx context.Context) (float64, error)
	Close() error
}

type ManifestStore interface {
	Load(ctx context.Context) ([]domain.Manifest, error)
}

type RecordingOpener interface {
	Open(ctx context.Context, path string, loop bool) (Sampler, error)
}

type DriverHost interface {
	CheckLifecycle(ctx context.Context, manifest domain.Manifest) error
	GetInfo(ctx context.Context, manifest domain.Manifest) (domain.DriverInfo, error)
	Connect(ctx context.Context, manifest domain.Manifest) (Sampler, error)
}
