package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"clip-tracker/internal/models"
)

const createSubmissionsTable = `
	CREATE TABLE IF NOT EXISTS clip_submissions (
		submission_id UUID        PRIMARY KEY DEFAULT gen_random_uuid(),
		video_id      TEXT        NOT NULL,
		clips         JSONB       NOT NULL,
		clip_count    INTEGER     NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// PostgresSink stores each submission as one row in clip_submissions.
type PostgresSink struct {
	DB *sql.DB
}

func (s *PostgresSink) Name() string { return "postgres" }

// EnsureSchema creates the submissions table if it does not exist.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.DB.ExecContext(ctx, createSubmissionsTable); err != nil {
		return fmt.Errorf("create clip_submissions: %w", err)
	}
	return nil
}

func (s *PostgresSink) Submit(ctx context.Context, sub models.Submission) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	clipsJSON, err := json.Marshal(sub.Clips)
	if err != nil {
		return Receipt{}, err
	}

	query := `
		INSERT INTO clip_submissions (video_id, clips, clip_count)
		VALUES ($1, $2, $3)
		RETURNING submission_id
	`

	var id string
	err = s.DB.QueryRowContext(ctx, query, sub.VideoID, clipsJSON, len(sub.Clips)).Scan(&id)
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{Sink: s.Name(), Reference: id}, nil
}
