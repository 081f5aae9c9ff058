package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visage-id/visage/internal/domain"
)

func testDescriptor(seed float32) []float32 {
	d := make([]float32, domain.DescriptorDim)
	for i := range d {
		d[i] = seed + float32(i)*0.001
	}
	return d
}

func descriptorJSON(t *testing.T, d []float32) []byte {
	t.Helper()
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	return raw
}

// UserRepository tests

func TestUserRepository_Create(t *testing.T) {
	now := time.Now()
	descriptor := testDescriptor(0.1)

	tests := []struct {
		name      string
		user      *domain.User
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantErr   error
		wantID    int64
	}{
		{
			name: "successful create",
			user: &domain.User{
				ExternalID:  "A1",
				DisplayName: "Ada",
				ClientRef:   "crm-77",
				Descriptor:  descriptor,
				Confidence:  0.93,
			},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
					AddRow(int64(42), now, now)
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("A1", "Ada", "crm-77", pgxmock.AnyArg(), pgxmock.AnyArg(), 0.93).
					WillReturnRows(rows)
			},
			wantErr: nil,
			wantID:  42,
		},
		{
			name: "duplicate external_id",
			user: &domain.User{
				ExternalID: "A1",
				Descriptor: descriptor,
			},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("A1", "", "", pgxmock.AnyArg(), pgxmock.AnyArg(), float64(0)).
					WillReturnError(errors.New(`duplicate key value violates unique constraint "users_external_id_active_idx" (SQLSTATE 23505)`))
			},
			wantErr: domain.ErrUserExists,
		},
		{
			name: "descriptor with wrong dimension",
			user: &domain.User{
				ExternalID: "A1",
				Descriptor: []float32{0.1, 0.2},
			},
			mockSetup: func(mock pgxmock.PgxPoolIface) {},
			wantErr:   domain.ErrBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.mockSetup(mock)

			repo := NewUserRepository(mock, nil)
			err = repo.Create(context.Background(), tt.user)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, tt.user.ID)
				assert.True(t, tt.user.Active)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByExternalID(t *testing.T) {
	now := time.Now()
	descriptor := testDescriptor(0.2)

	tests := []struct {
		name       string
		externalID string
		mockSetup  func(t *testing.T, mock pgxmock.PgxPoolIface)
		wantErr    error
	}{
		{
			name:       "found",
			externalID: "A1",
			mockSetup: func(t *testing.T, mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{
					"id", "external_id", "display_name", "client_ref", "descriptor",
					"confidence", "active", "recognition_count", "last_recognition_at",
					"created_at", "updated_at",
				}).AddRow(
					int64(1), "A1", "Ada", "crm-77", descriptorJSON(t, descriptor),
					0.93, true, int64(7), nil,
					now, now,
				)
				mock.ExpectQuery(`WHERE external_id = \$1 AND active = true`).
					WithArgs("A1").
					WillReturnRows(rows)
			},
			wantErr: nil,
		},
		{
			name:       "not found",
			externalID: "missing",
			mockSetup: func(t *testing.T, mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`WHERE external_id = \$1 AND active = true`).
					WithArgs("missing").
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: domain.ErrUserNotFound,
		},
		{
			name:       "corrupt descriptor",
			externalID: "A1",
			mockSetup: func(t *testing.T, mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{
					"id", "external_id", "display_name", "client_ref", "descriptor",
					"confidence", "active", "recognition_count", "last_recognition_at",
					"created_at", "updated_at",
				}).AddRow(
					int64(1), "A1", "Ada", "", []byte(`[0.1, 0.2]`),
					0.93, true, int64(0), nil,
					now, now,
				)
				mock.ExpectQuery(`WHERE external_id = \$1 AND active = true`).
					WithArgs("A1").
					WillReturnRows(rows)
			},
			wantErr: errors.New("descriptor must have 128 elements"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.mockSetup(t, mock)

			repo := NewUserRepository(mock, nil)
			user, err := repo.GetByExternalID(context.Background(), tt.externalID)

			if tt.wantErr != nil {
				require.Error(t, err)
				if appErr, ok := tt.wantErr.(*domain.AppError); ok {
					assert.ErrorIs(t, err, appErr)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, int64(1), user.ID)
			assert.Equal(t, "A1", user.ExternalID)
			assert.Equal(t, "Ada", user.DisplayName)
			assert.Equal(t, descriptor, user.Descriptor)
			assert.Equal(t, int64(7), user.RecognitionCount)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_ListActive(t *testing.T) {
	now := time.Now()
	d1 := testDescriptor(0.1)
	d2 := testDescriptor(0.5)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{
		"id", "external_id", "display_name", "client_ref", "descriptor",
		"confidence", "active", "recognition_count", "last_recognition_at",
		"created_at", "updated_at",
	}).
		AddRow(int64(1), "A1", "Ada", "", descriptorJSON(t, d1), 0.9, true, int64(0), nil, now, now).
		AddRow(int64(2), "B2", "Bob", "", descriptorJSON(t, d2), 0.8, true, int64(3), nil, now, now).
		AddRow(int64(3), "C3", "Cyd", "", []byte(`"not a descriptor"`), 0.7, true, int64(0), nil, now, now)

	mock.ExpectQuery(`WHERE active = true`).WillReturnRows(rows)

	repo := NewUserRepository(mock, nil)
	users, err := repo.ListActive(context.Background())

	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, d1, users[0].Descriptor)
	assert.Equal(t, d2, users[1].Descriptor)
	assert.Nil(t, users[2].Descriptor, "corrupt descriptor rows keep nil descriptor")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateDescriptor(t *testing.T) {
	descriptor := testDescriptor(0.3)

	tests := []struct {
		name      string
		id        int64
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "successful update",
			id:   1,
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users`).
					WithArgs(int64(1), pgxmock.AnyArg(), pgxmock.AnyArg(), 0.88).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
			wantErr: nil,
		},
		{
			name: "user not found",
			id:   99,
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users`).
					WithArgs(int64(99), pgxmock.AnyArg(), pgxmock.AnyArg(), 0.88).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr: domain.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.mockSetup(mock)

			repo := NewUserRepository(mock, nil)
			err = repo.UpdateDescriptor(context.Background(), tt.id, descriptor, 0.88)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_SoftDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`SET active = false`).
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewUserRepository(mock, nil)
	require.NoError(t, repo.SoftDelete(context.Background(), 5))

	mock.ExpectExec(`SET active = false`).
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.ErrorIs(t, repo.SoftDelete(context.Background(), 5), domain.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CountActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE active = true`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1234))

	repo := NewUserRepository(mock, nil)
	count, err := repo.CountActive(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1234, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_TouchRecognition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`recognition_count = recognition_count \+ 1`).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewUserRepository(mock, nil)
	assert.NoError(t, repo.TouchRecognition(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SearchByDescriptor(t *testing.T) {
	descriptor := testDescriptor(0.4)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "external_id", "display_name", "client_ref", "distance"}).
		AddRow(int64(1), "A1", "Ada", "", 0.12).
		AddRow(int64(2), "B2", "Bob", "", 0.55)

	mock.ExpectQuery(`ORDER BY embedding <-> \$1`).
		WithArgs(pgxmock.AnyArg(), 5).
		WillReturnRows(rows)

	repo := NewUserRepository(mock, nil)
	results, err := repo.SearchByDescriptor(context.Background(), descriptor, 5)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A1", results[0].User.ExternalID)
	assert.InDelta(t, 0.12, results[0].Distance, 1e-9)
	assert.Equal(t, "B2", results[1].User.ExternalID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SearchByDescriptor_BadDimension(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock, nil)
	_, err = repo.SearchByDescriptor(context.Background(), []float32{1, 2, 3}, 5)

	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestUserRepository_ObserverCalled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE active = true`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	var gotOp string
	repo := NewUserRepository(mock, func(op string, d time.Duration) {
		gotOp = op
		assert.GreaterOrEqual(t, d, time.Duration(0))
	})

	_, err = repo.CountActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "count_active", gotOp)
}

// RecognitionLogRepository tests

func TestRecognitionLogRepository_Append(t *testing.T) {
	now := time.Now()
	userID := int64(3)
	distance := 0.21
	similarity := 79

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO recognition_logs`).
		WithArgs(&userID, "A1", true, &distance, &similarity, "hnsw", int64(184)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), now))

	repo := NewRecognitionLogRepository(mock, nil)
	log := &domain.RecognitionLog{
		UserID:       &userID,
		ExternalID:   "A1",
		Matched:      true,
		Distance:     &distance,
		Similarity:   &similarity,
		Backend:      "hnsw",
		ProcessingMs: 184,
	}

	require.NoError(t, repo.Append(context.Background(), log))
	assert.Equal(t, int64(11), log.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecognitionLogRepository_ListRecent(t *testing.T) {
	now := time.Now()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "external_id", "matched", "distance", "similarity",
		"backend", "processing_ms", "created_at",
	}).
		AddRow(int64(2), nil, "", false, nil, nil, "hnsw", int64(92), now).
		AddRow(int64(1), nil, "A1", true, nil, nil, "linear", int64(130), now.Add(-time.Minute))

	mock.ExpectQuery(`FROM recognition_logs`).
		WithArgs(20).
		WillReturnRows(rows)

	repo := NewRecognitionLogRepository(mock, nil)
	logs, err := repo.ListRecent(context.Background(), 20)

	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.False(t, logs[0].Matched)
	assert.True(t, logs[1].Matched)
	assert.Equal(t, "A1", logs[1].ExternalID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
