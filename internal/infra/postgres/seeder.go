package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"trivia-session-service/internal/domain"
)

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID                 int      `bun:"id,pk"`
	Prompt             string   `bun:"prompt,notnull"`
	ImageRef           string   `bun:"image_ref,nullzero"`
	Options            []string `bun:"options,array"`
	CorrectOptionIndex int      `bun:"correct_option_index"`
	Category           string   `bun:"category"`
}

// Seeder upserts question bank content.
type Seeder struct {
	db *bun.DB
}

func NewSeeder(db *bun.DB) *Seeder {
	return &Seeder{db: db}
}

// Seed validates every question and upserts them by id in one statement.
func (s *Seeder) Seed(ctx context.Context, questions []domain.Question) (int, error) {
	rows, err := toRows(questions)
	if err != nil {
		return 0, err
	}
	res, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("prompt = EXCLUDED.prompt").
		Set("image_ref = EXCLUDED.image_ref").
		Set("options = EXCLUDED.options").
		Set("correct_option_index = EXCLUDED.correct_option_index").
		Set("category = EXCLUDED.category").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("upsert questions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func toRows(questions []domain.Question) ([]questionRow, error) {
	if len(questions) == 0 {
		return nil, domain.ErrEmptyQuestionBank
	}
	rows := make([]questionRow, 0, len(questions))
	seen := make(map[int]struct{}, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", q.ID, err)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("question %d repeated: %w", q.ID, domain.ErrInvalidQuestion)
		}
		seen[q.ID] = struct{}{}
		rows = append(rows, questionRow{
			ID:                 q.ID,
			Prompt:             q.Prompt,
			ImageRef:           q.ImageRef,
			Options:            q.Options,
			CorrectOptionIndex: q.CorrectOptionIndex,
			Category:           q.Category,
		})
	}
	return rows, nil
}
