package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/visage-id/visage/internal/domain"
)

// PgxPool is the subset of pgxpool.Pool the repositories use; pgxmock's
// PgxPoolIface satisfies it too.
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserDistance pairs a stored user with its L2 distance to a query
// descriptor, as computed by the database.
type UserDistance struct {
	User     domain.User
	Distance float64
}

// UserRepositoryInterface defines operations for user data access
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *domain.User) error
	GetByExternalID(ctx context.Context, externalID string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ListActive(ctx context.Context) ([]domain.User, error)
	UpdateDescriptor(ctx context.Context, id int64, descriptor []float32, confidence float64) error
	SoftDelete(ctx context.Context, id int64) error
	CountActive(ctx context.Context) (int, error)
	TouchRecognition(ctx context.Context, id int64) error
	SearchByDescriptor(ctx context.Context, descriptor []float32, limit int) ([]UserDistance, error)
}

// RecognitionLogRepositoryInterface defines operations for the audit trail
type RecognitionLogRepositoryInterface interface {
	Append(ctx context.Context, log *domain.RecognitionLog) error
	ListRecent(ctx context.Context, limit int) ([]domain.RecognitionLog, error)
}
