package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/visage-id/visage/internal/domain"
)

// QueryObserver records query durations per named operation. Satisfied by
// metrics.Metrics.ObserveQuery; nil disables observation.
type QueryObserver func(operation string, d time.Duration)

type UserRepository struct {
	pool PgxPool
	obs  QueryObserver
}

func NewUserRepository(pool PgxPool, obs QueryObserver) *UserRepository {
	return &UserRepository{pool: pool, obs: obs}
}

func (r *UserRepository) observe(op string, start time.Time) {
	if r.obs != nil {
		r.obs(op, time.Since(start))
	}
}

const userColumns = `id, external_id, display_name, client_ref, descriptor, confidence, active, recognition_count, last_recognition_at, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	defer r.observe("create", time.Now())

	query := `
		INSERT INTO users (external_id, display_name, client_ref, descriptor, embedding, confidence, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	raw, err := encodeDescriptor(user.Descriptor)
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	embedding := pgvector.NewVector(user.Descriptor)

	err = r.pool.QueryRow(ctx, query,
		user.ExternalID,
		user.DisplayName,
		user.ClientRef,
		raw,
		embedding,
		user.Confidence,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	user.Active = true
	return nil
}

func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	defer r.observe("get_by_external_id", time.Now())

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE external_id = $1 AND active = true
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, externalID))
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	defer r.observe("get_by_id", time.Now())

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND active = true
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	var raw []byte

	err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&user.DisplayName,
		&user.ClientRef,
		&raw,
		&user.Confidence,
		&user.Active,
		&user.RecognitionCount,
		&user.LastRecognitionAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	user.Descriptor, err = decodeDescriptor(raw)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

// ListActive returns every active user. Rows with an unparseable descriptor
// come back with Descriptor nil; the index rebuild skips and reports them.
func (r *UserRepository) ListActive(ctx context.Context) ([]domain.User, error) {
	defer r.observe("list_active", time.Now())

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE active = true
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		var raw []byte

		err := rows.Scan(
			&user.ID,
			&user.ExternalID,
			&user.DisplayName,
			&user.ClientRef,
			&raw,
			&user.Confidence,
			&user.Active,
			&user.RecognitionCount,
			&user.LastRecognitionAt,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}

		if desc, derr := decodeDescriptor(raw); derr == nil {
			user.Descriptor = desc
		}

		users = append(users, user)
	}

	return users, rows.Err()
}

func (r *UserRepository) UpdateDescriptor(ctx context.Context, id int64, descriptor []float32, confidence float64) error {
	defer r.observe("update_descriptor", time.Now())

	query := `
		UPDATE users
		SET descriptor = $2, embedding = $3, confidence = $4, updated_at = NOW()
		WHERE id = $1 AND active = true
	`

	raw, err := encodeDescriptor(descriptor)
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	embedding := pgvector.NewVector(descriptor)

	result, err := r.pool.Exec(ctx, query, id, raw, embedding, confidence)
	if err != nil {
		return fmt.Errorf("update descriptor: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) SoftDelete(ctx context.Context, id int64) error {
	defer r.observe("soft_delete", time.Now())

	query := `
		UPDATE users
		SET active = false, updated_at = NOW()
		WHERE id = $1 AND active = true
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) CountActive(ctx context.Context) (int, error) {
	defer r.observe("count_active", time.Now())

	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE active = true`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}

	return count, nil
}

// TouchRecognition bumps the recognition counters after a match. Called
// fire-and-forget; callers swallow the error.
func (r *UserRepository) TouchRecognition(ctx context.Context, id int64) error {
	defer r.observe("touch_recognition", time.Now())

	query := `
		UPDATE users
		SET recognition_count = recognition_count + 1, last_recognition_at = NOW()
		WHERE id = $1 AND active = true
	`

	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("touch recognition: %w", err)
	}

	return nil
}

// SearchByDescriptor runs the store-side nearest-neighbor query. Distances
// are Euclidean (pgvector `<->`), ascending.
func (r *UserRepository) SearchByDescriptor(ctx context.Context, descriptor []float32, limit int) ([]UserDistance, error) {
	defer r.observe("search_by_descriptor", time.Now())

	if len(descriptor) != domain.DescriptorDim {
		return nil, domain.ErrBadRequest.WithError(fmt.Errorf("descriptor must have %d elements", domain.DescriptorDim))
	}

	query := `
		SELECT id, external_id, display_name, client_ref, embedding <-> $1 AS distance
		FROM users
		WHERE active = true AND embedding IS NOT NULL
		ORDER BY embedding <-> $1
		LIMIT $2
	`

	vec := pgvector.NewVector(descriptor)

	rows, err := r.pool.Query(ctx, query, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("search by descriptor: %w", err)
	}
	defer rows.Close()

	var results []UserDistance
	for rows.Next() {
		var ud UserDistance
		err := rows.Scan(
			&ud.User.ID,
			&ud.User.ExternalID,
			&ud.User.DisplayName,
			&ud.User.ClientRef,
			&ud.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		ud.User.Active = true
		results = append(results, ud)
	}

	return results, rows.Err()
}
