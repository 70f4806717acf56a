package out

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"breathkit/internal/modules/breath/domain"
	breathout "breathkit/internal/modules/breath/port/out"
	apperrors "breathkit/internal/platform/errors"
	"breathkit/internal/platform/markdown"
	"breathkit/internal/platform/slug"
)

const (
	indexStart = "<!-- breathkit:sessions:start -->"
	indexEnd   = "<!-- breathkit:sessions:end -->"
	// indexLimit bounds the managed list in sessions/index.md.
	indexLimit = 20
)

type MarkdownNoteStore struct {
	root string
}

func NewMarkdownNoteStore(stateDir string) breathout.NoteStore {
	return &MarkdownNoteStore{root: filepath.Join(stateDir, "sessions")}
}

func (s *MarkdownNoteStore) Save(_ context.Context, summary domain.Summary) (string, error) {
	date := summary.StartedAt.UTC()
	dir := filepath.Join(s.root, date.Format("2006"), date.Format("01"), date.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session note dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.md", date.Format("150405"), slug.Make(summary.ID)))

	meta := map[string]any{
		"schema_version":    domain.SchemaVersion,
		"id":                summary.ID,
		"started_at":        summary.StartedAt.UTC().Format(time.RFC3339),
		"ended_at":          summary.EndedAt.UTC().Format(time.RFC3339),
		"duration_seconds":  int(summary.Duration().Seconds()),
		"sets":              summary.Targets.Sets,
		"breaths_per_set":   summary.Targets.BreathsPerSet,
		"sets_completed":    summary.SetsCompleted,
		"good_breaths":      summary.GoodBreaths,
		"bad_breaths":       summary.BadBreaths,
		"completed":         summary.Completed,
		"max_pressure":      summary.Calibration.MaxPressure(),
		"max_breath_length": summary.Calibration.MaxBreathLength(),
	}
	rendered, err := markdown.RenderFrontmatter(meta, noteBody(summary))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write session note: %w", err)
	}
	if err := s.refreshIndex(); err != nil {
		return "", err
	}
	return path, nil
}

// Load returns the note body, without frontmatter, of session id.
func (s *MarkdownNoteStore) Load(_ context.Context, id string) (string, error) {
	notes, err := s.scan()
	if err != nil {
		return "", err
	}
	for _, n := range notes {
		if n.id == id {
			return n.body, nil
		}
	}
	return "", fmt.Errorf("session note %s: %w", id, apperrors.ErrNotFound)
}

func noteBody(s domain.Summary) string {
	status := "stopped early"
	if s.Completed {
		status = "completed"
	}
	b := strings.Builder{}
	fmt.Fprintf(&b, "# Breathing session %s\n\n", s.StartedAt.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Session **%s**, %s after %s.\n\n", s.ID, status, s.Duration().Round(time.Second))
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Sets | %d of %d |\n", s.SetsCompleted, s.Targets.Sets)
	fmt.Fprintf(&b, "| Breaths per set | %d |\n", s.Targets.BreathsPerSet)
	fmt.Fprintf(&b, "| Breaths | %d (%d good, %d short or weak) |\n", s.BreathCount, s.GoodBreaths, s.BadBreaths)
	fmt.Fprintf(&b, "| Pauses | %d |\n", s.Pauses)
	fmt.Fprintf(&b, "| Longest breath | %.1fs |\n", s.LongestBreath)
	fmt.Fprintf(&b, "| Best quality | %d / 4 |\n", s.BestQuality)
	fmt.Fprintf(&b, "| Exhaled volume | %.2f |\n", s.TotalVolume)
	b.WriteString("\n## Calibration\n\n")
	if s.Calibration.Calibrated() {
		fmt.Fprintf(&b, "- Max pressure: %.3f\n- Max breath length: %.2fs\n", s.Calibration.MaxPressure(), s.Calibration.MaxBreathLength())
	} else {
		b.WriteString("- Uncalibrated\n")
	}
	return b.String()
}

type noteEntry struct {
	id        string
	startedAt string
	completed bool
	relPath   string
	body      string
}

func (s *MarkdownNoteStore) scan() ([]noteEntry, error) {
	notes := []noteEntry{}
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.root {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") || filepath.Dir(path) == s.root {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read session note: %w", err)
		}
		meta, body, err := markdown.SplitFrontmatter(string(raw))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		id, _ := meta["id"].(string)
		if id == "" {
			return nil
		}
		startedAt, _ := meta["started_at"].(string)
		completed, _ := meta["completed"].(bool)
		rel, _ := filepath.Rel(s.root, path)
		notes = append(notes, noteEntry{id: id, startedAt: startedAt, completed: completed, relPath: filepath.ToSlash(rel), body: body})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan session notes: %w", err)
	}
	return notes, nil
}

func (s *MarkdownNoteStore) refreshIndex() error {
	notes, err := s.scan()
	if err != nil {
		return err
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].startedAt > notes[j].startedAt })
	if len(notes) > indexLimit {
		notes = notes[:indexLimit]
	}
	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		mark := " "
		if n.completed {
			mark = "x"
		}
		lines = append(lines, fmt.Sprintf("- [%s] [%s](%s)", mark, n.startedAt, n.relPath))
	}

	indexPath := filepath.Join(s.root, "index.md")
	existing := "# Sessions\n"
	if raw, err := os.ReadFile(indexPath); err == nil {
		existing = string(raw)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read session index: %w", err)
	}
	updated := markdown.ReplaceManagedBlock(existing, indexStart, indexEnd, strings.Join(lines, "\n"))
	if err := os.WriteFile(indexPath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("write session index: %w", err)
	}
	return nil
}
