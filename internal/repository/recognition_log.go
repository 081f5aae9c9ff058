package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/visage-id/visage/internal/domain"
)

type RecognitionLogRepository struct {
	pool PgxPool
	obs  QueryObserver
}

func NewRecognitionLogRepository(pool PgxPool, obs QueryObserver) *RecognitionLogRepository {
	return &RecognitionLogRepository{pool: pool, obs: obs}
}

func (r *RecognitionLogRepository) observe(op string, start time.Time) {
	if r.obs != nil {
		r.obs(op, time.Since(start))
	}
}

// Append inserts an audit row for an identify call. Callers treat failures
// as non-fatal; the row is best-effort.
func (r *RecognitionLogRepository) Append(ctx context.Context, log *domain.RecognitionLog) error {
	defer r.observe("append_log", time.Now())

	query := `
		INSERT INTO recognition_logs (user_id, external_id, matched, distance, similarity, backend, processing_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		log.UserID,
		log.ExternalID,
		log.Matched,
		log.Distance,
		log.Similarity,
		log.Backend,
		log.ProcessingMs,
	).Scan(&log.ID, &log.CreatedAt)

	if err != nil {
		return fmt.Errorf("append recognition log: %w", err)
	}

	return nil
}

func (r *RecognitionLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.RecognitionLog, error) {
	defer r.observe("list_logs", time.Now())

	query := `
		SELECT id, user_id, external_id, matched, distance, similarity, backend, processing_ms, created_at
		FROM recognition_logs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recognition logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.RecognitionLog
	for rows.Next() {
		var log domain.RecognitionLog
		err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.ExternalID,
			&log.Matched,
			&log.Distance,
			&log.Similarity,
			&log.Backend,
			&log.ProcessingMs,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan recognition log: %w", err)
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}
