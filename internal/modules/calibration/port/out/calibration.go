package out

import (
	"context"

	"breathkit/internal/modules/calibration/domain"
)

// ProfileStore persists the single active profile. Load returns
// apperrors.ErrUncalibrated when none was saved yet.
type ProfileStore interface {
	Load(ctx context.Context) (domain.Profile, error)
	Save(ctx context.Context, profile domain.Profile) error
}
