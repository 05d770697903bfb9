package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"livequiz/internal/domain"
)

// QuestionRow maps the questions table for bun.
type QuestionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID        int64           `bun:"id,pk,autoincrement"`
	Topic     string          `bun:"topic,notnull"`
	Data      domain.Question `bun:"data,type:jsonb,notnull"`
	CreatedAt time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// BankWriter loads question sets into the bank.
type BankWriter struct {
	db *bun.DB
}

func NewBankWriter(db *bun.DB) *BankWriter {
	return &BankWriter{db: db}
}

// Import validates every question and inserts them in one transaction. It returns the number
// of rows written.
func (w *BankWriter) Import(ctx context.Context, topic string, questions []domain.Question) (int, error) {
	if topic == "" {
		return 0, fmt.Errorf("import: topic is required")
	}
	rows := make([]QuestionRow, 0, len(questions))
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return 0, fmt.Errorf("import question %d: %w", i, err)
		}
		rows = append(rows, QuestionRow{Topic: topic, Data: q})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	err := w.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert questions: %w", err)
	}
	return len(rows), nil
}
