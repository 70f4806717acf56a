package service

import (
	"context"
	"errors"
	"fmt"

	"breathkit/internal/modules/breath/domain"
	breathout "breathkit/internal/modules/breath/port/out"
	"breathkit/internal/platform/clock"
	apperrors "breathkit/internal/platform/errors"
	"breathkit/internal/platform/id"
)

type TrainingService struct {
	clock   clock.Clock
	idGen   id.Generator
	targets breathout.TargetStore
	history breathout.HistoryStore
	notes   breathout.NoteStore
}

func NewTrainingService(clock clock.Clock, idGen id.Generator, targets breathout.TargetStore, history breathout.HistoryStore, notes breathout.NoteStore) *TrainingService {
	return &TrainingService{clock: clock, idGen: idGen, targets: targets, history: history, notes: notes}
}

// Open starts the tally of a new training run.
func (s *TrainingService) Open(targets domain.Targets, cal domain.Calibration) *domain.Tally {
	return domain.NewTally(s.idGen.New(), s.clock.Now(), targets, cal)
}

// Finish closes the tally and records it. The note path is empty when no
// note store is configured.
func (s *TrainingService) Finish(ctx context.Context, tally *domain.Tally) (domain.Summary, string, error) {
	summary := tally.Close(s.clock.Now())
	if s.history != nil {
		if err := s.history.Save(ctx, summary); err != nil {
			return domain.Summary{}, "", err
		}
	}
	path := ""
	if s.notes != nil {
		var err error
		path, err = s.notes.Save(ctx, summary)
		if err != nil {
			return domain.Summary{}, "", err
		}
	}
	return summary, path, nil
}

func (s *TrainingService) History(ctx context.Context, limit int) ([]domain.Summary, error) {
	if s.history == nil {
		return []domain.Summary{}, nil
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be non-negative", apperrors.ErrInvalidInput)
	}
	return s.history.List(ctx, limit)
}

func (s *TrainingService) Summary(ctx context.Context, id string) (domain.Summary, error) {
	if s.history == nil {
		return domain.Summary{}, apperrors.ErrNotFound
	}
	return s.history.Get(ctx, id)
}

func (s *TrainingService) Note(ctx context.Context, id string) (string, error) {
	if s.notes == nil {
		return "", apperrors.ErrNotFound
	}
	return s.notes.Load(ctx, id)
}

// Targets falls back to domain.DefaultTargets when none were saved.
func (s *TrainingService) Targets(ctx context.Context) (domain.Targets, error) {
	if s.targets == nil {
		return domain.DefaultTargets, nil
	}
	t, err := s.targets.Load(ctx)
	if errors.Is(err, apperrors.ErrNotFound) {
		return domain.DefaultTargets, nil
	}
	if err != nil {
		return domain.Targets{}, err
	}
	return t, nil
}

func (s *TrainingService) SaveTargets(ctx context.Context, t domain.Targets) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if s.targets == nil {
		return fmt.Errorf("target store is not configured")
	}
	return s.targets.Save(ctx, t)
}
