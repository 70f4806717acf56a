package in

import (
	"context"

	"breathkit/internal/modules/breath/dto"
)

// Usecase drives one training at a time. Step, StartSet, Pause, Resume and
// End return apperrors.ErrNoActiveTraining when nothing is running.
type Usecase interface {
	Begin(ctx context.Context, input dto.BeginInput) (dto.FrameOutput, error)
	Step(ctx context.Context, dt float64) (dto.FrameOutput, error)
	StartSet(ctx context.Context) (dto.FrameOutput, error)
	Pause(ctx context.Context) (dto.FrameOutput, error)
	Resume(ctx context.Context) (dto.FrameOutput, error)
	End(ctx context.Context) (dto.SummaryOutput, error)
	Run(ctx context.Context, input dto.RunInput) (dto.SummaryOutput, error)
	Current(ctx context.Context) (dto.FrameOutput, error)

	History(ctx context.Context, limit int) ([]dto.SummaryOutput, error)
	GetNote(ctx context.Context, id string) (dto.NoteOutput, error)
	GetTargets(ctx context.Context) (dto.TargetsOutput, error)
	SetTargets(ctx context.Context, input dto.TargetsInput) (dto.TargetsOutput, error)
}
