package out

import (
	"context"

	"breathkit/internal/modules/breath/domain"
)

// TargetStore keeps the user's preferred session shape. Load returns
// apperrors.ErrNotFound when nothing was saved yet.
type TargetStore interface {
	Load(ctx context.Context) (domain.Targets, error)
	Save(ctx context.Context, targets domain.Targets) error
}

// HistoryStore lists summaries newest first.
type HistoryStore interface {
	Save(ctx context.Context, summary domain.Summary) error
	List(ctx context.Context, limit int) ([]domain.Summary, error)
	Get(ctx context.Context, id string) (domain.Summary, error)
}

// NoteStore renders a summary as a markdown note and returns its path.
type NoteStore interface {
	Save(ctx context.Context, summary domain.Summary) (string, error)
	Load(ctx context.Context, id string) (string, error)
}
