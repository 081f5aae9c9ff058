package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visage-id/visage/internal/domain"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "numeric id",
			path: "/users/12345",
			want: "/users/:id",
		},
		{
			name: "uuid",
			path: "/recognition/batch/550e8400-e29b-41d4-a716-446655440000",
			want: "/recognition/batch/:uuid",
		},
		{
			name: "alphanumeric identity",
			path: "/users/AB123456",
			want: "/users/:ci",
		},
		{
			name: "static words survive",
			path: "/recognition/register",
			want: "/recognition/register",
		},
		{
			name: "health endpoint untouched",
			path: "/health/detailed",
			want: "/health/detailed",
		},
		{
			name: "mixed segments",
			path: "/v1/users/42/logs",
			want: "/v1/users/:id/logs",
		},
		{
			name: "uuid then static",
			path: "/recognition/batch/550e8400-e29b-41d4-a716-446655440000/results",
			want: "/recognition/batch/:uuid/results",
		},
		{
			name: "short alphanumeric survives",
			path: "/v1/ab1",
			want: "/v1/ab1",
		},
		{
			name: "root",
			path: "/",
			want: "/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRoute(tt.path))
		})
	}
}

func TestMiddleware_RecordsRequests(t *testing.T) {
	m := newTestMetrics()

	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/users/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/users/12345", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	count := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/users/:id", "200"))
	assert.Equal(t, 1.0, count)
	assert.Equal(t, 1, testutil.CollectAndCount(m.httpDuration))
}

func TestMiddleware_RecordsErrorStatus(t *testing.T) {
	m := newTestMetrics()

	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/users/:id", func(c *fiber.Ctx) error {
		return domain.ErrUserNotFound
	})

	_, err := app.Test(httptest.NewRequest("GET", "/users/12345", nil))
	require.NoError(t, err)

	count := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/users/:id", "404"))
	assert.Equal(t, 1.0, count)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "fiber error",
			err:  fiber.ErrMethodNotAllowed,
			want: fiber.StatusMethodNotAllowed,
		},
		{
			name: "app error",
			err:  domain.ErrNoFaceDetected,
			want: domain.ErrNoFaceDetected.StatusCode,
		},
		{
			name: "wrapped app error",
			err:  domain.ErrTimeout.WithError(errors.New("deadline exceeded")),
			want: domain.ErrTimeout.StatusCode,
		},
		{
			name: "unknown error",
			err:  errors.New("boom"),
			want: fiber.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorStatus(tt.err))
		})
	}
}
