package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/romshelf/romshelf"
)

// GetCheckpoint returns the resumable checkpoint for (jobType, source), if
// one exists.
func (s *Store) GetCheckpoint(ctx context.Context, jobType, source string) (romshelf.Checkpoint, bool, error) {
	var (
		token string
		upd   int64
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT last_token, updated_at FROM checkpoints WHERE job_type = ? AND source = ?`, jobType, source)
	switch err := row.Scan(&token, &upd); {
	case errors.Is(err, sql.ErrNoRows):
		return romshelf.Checkpoint{}, false, nil
	case err != nil:
		return romshelf.Checkpoint{}, false, dbErr("catalog.GetCheckpoint", err)
	}
	return romshelf.Checkpoint{
		JobType:   jobType,
		Source:    source,
		LastToken: token,
		UpdatedAt: time.Unix(upd, 0).UTC(),
	}, true, nil
}

// PutCheckpoint upserts the checkpoint for (jobType, source), per
// interrupted-job resume semantics.
func (s *Store) PutCheckpoint(ctx context.Context, cp romshelf.Checkpoint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (job_type, source, last_token, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(job_type, source) DO UPDATE SET last_token = excluded.last_token, updated_at = excluded.updated_at`,
		cp.JobType, cp.Source, cp.LastToken, cp.UpdatedAt.Unix(),
	)
	if err != nil {
		return dbErr("catalog.PutCheckpoint", err)
	}
	return nil
}

// ClearCheckpoint removes the checkpoint for (jobType, source), once a job
// completes successfully and no longer needs to be resumed.
func (s *Store) ClearCheckpoint(ctx context.Context, jobType, source string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE job_type = ? AND source = ?`, jobType, source); err != nil {
		return dbErr("catalog.ClearCheckpoint", err)
	}
	return nil
}
