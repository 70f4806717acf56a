package in

import (
	"context"

	"breathkit/internal/modules/breath/dto"
	breathin "breathkit/internal/modules/breath/port/in"
)

type CLIHandler struct {
	usecase breathin.Usecase
}

func NewCLIHandler(usecase breathin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Train(ctx context.Context, input dto.RunInput) (dto.SummaryOutput, error) {
	return h.usecase.Run(ctx, input)
}

func (h CLIHandler) History(ctx context.Context, limit int) ([]dto.SummaryOutput, error) {
	return h.usecase.History(ctx, limit)
}

func (h CLIHandler) Note(ctx context.Context, id string) (dto.NoteOutput, error) {
	return h.usecase.GetNote(ctx, id)
}

func (h CLIHandler) Targets(ctx context.Context) (dto.TargetsOutput, error) {
	return h.usecase.GetTargets(ctx)
}

func (h CLIHandler) SetTargets(ctx context.Context, sets, breathsPerSet uint) (dto.TargetsOutput, error) {
	return h.usecase.SetTargets(ctx, dto.TargetsInput{Sets: sets, BreathsPerSet: breathsPerSet})
}
