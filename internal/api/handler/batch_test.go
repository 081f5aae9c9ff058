package handler

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/visage-id/visage/internal/batch"
	"github.com/visage-id/visage/internal/domain"
)

// MockBatchService is a mock implementation of BatchService
type MockBatchService struct {
	mock.Mock
}

func (m *MockBatchService) CreateJob(items []batch.Item) (*batch.Job, error) {
	args := m.Called(items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batch.Job), args.Error(1)
}

func (m *MockBatchService) GetJob(id uuid.UUID) (*batch.Job, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batch.Job), args.Error(1)
}

func (m *MockBatchService) ListJobs(limit int) []batch.Summary {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]batch.Summary)
}

func TestBatchHandler_Create(t *testing.T) {
	jobID := uuid.New()
	pending := &batch.Job{
		ID:        jobID,
		Status:    batch.JobPending,
		Total:     2,
		Results:   []batch.ItemResult{},
		CreatedAt: time.Now(),
	}

	t.Run("successful submission", func(t *testing.T) {
		mockService := &MockBatchService{}
		mockService.On("CreateJob", []batch.Item{
			{ID: "img-1", Image: rawImage},
			{ID: "img-2", Image: rawImage},
		}).Return(pending, nil)

		handler := NewBatchHandler(mockService, testLogger())
		app := newTestApp()
		app.Post("/recognition/batch", handler.Create)

		req := newJSONRequest(t, "POST", "/recognition/batch", map[string]any{
			"images": []map[string]any{
				{"id": "img-1", "image": b64Image},
				{"id": "img-2", "image": b64Image},
			},
		})

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 202, resp.StatusCode)

		respBody, _ := io.ReadAll(resp.Body)
		var job batch.Job
		require.NoError(t, json.Unmarshal(respBody, &job))
		assert.Equal(t, jobID, job.ID)
		assert.Equal(t, batch.JobPending, job.Status)
		assert.Equal(t, 2, job.Total)

		mockService.AssertExpectations(t)
	})

	t.Run("undecodable image is forwarded raw", func(t *testing.T) {
		// The pipeline rejects junk payloads per item, so the handler must
		// not kill the submission here.
		mockService := &MockBatchService{}
		mockService.On("CreateJob", []batch.Item{
			{ID: "bad", Image: []byte("!!! not base64 !!!")},
		}).Return(pending, nil)

		handler := NewBatchHandler(mockService, testLogger())
		app := newTestApp()
		app.Post("/recognition/batch", handler.Create)

		req := newJSONRequest(t, "POST", "/recognition/batch", map[string]any{
			"images": []map[string]any{
				{"id": "bad", "image": "!!! not base64 !!!"},
			},
		})

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 202, resp.StatusCode)

		mockService.AssertExpectations(t)
	})

	t.Run("empty batch", func(t *testing.T) {
		mockService := &MockBatchService{}
		mockService.On("CreateJob", mock.Anything).Return(nil, domain.ErrBatchEmpty)

		handler := NewBatchHandler(mockService, testLogger())
		app := newTestApp()
		app.Post("/recognition/batch", handler.Create)

		req := newJSONRequest(t, "POST", "/recognition/batch", map[string]any{
			"images": []map[string]any{},
		})

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.StatusCode)

		respBody, _ := io.ReadAll(resp.Body)
		var envelope errorEnvelope
		require.NoError(t, json.Unmarshal(respBody, &envelope))
		assert.Equal(t, domain.ErrBatchEmpty.Code, envelope.Error.Code)
	})

	t.Run("oversized batch", func(t *testing.T) {
		mockService := &MockBatchService{}
		mockService.On("CreateJob", mock.Anything).Return(nil, domain.ErrBatchTooLarge)

		handler := NewBatchHandler(mockService, testLogger())
		app := newTestApp()
		app.Post("/recognition/batch", handler.Create)

		images := make([]map[string]any, 51)
		for i := range images {
			images[i] = map[string]any{"image": b64Image}
		}
		req := newJSONRequest(t, "POST", "/recognition/batch", map[string]any{"images": images})

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.StatusCode)
	})
}

func TestBatchHandler_Get(t *testing.T) {
	jobID := uuid.New()
	completed := &batch.Job{
		ID:        jobID,
		Status:    batch.JobCompleted,
		Total:     1,
		Processed: 1,
		Progress:  100,
		Results: []batch.ItemResult{
			{ItemID: "img-1", Result: &domain.IdentifyResult{
				Match:   &domain.Match{UserID: 42, ExternalID: "user-123"},
				Backend: domain.BackendHNSW,
			}},
		},
		CreatedAt: time.Now(),
	}

	t.Run("job found", func(t *testing.T) {
		mockService := &MockBatchService{}
		mockService.On("GetJob", jobID).Return(completed, nil)

		handler := NewBatchHandler(mockService, testLogger())
		app := newTestApp()
		app.Get("/recognition/batch/:jobId", handler.Get)

		req := newJSONRequest(t, "GET", "/recognition/batch/"+jobID.String(), nil)

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		respBody, _ := io.ReadAll(resp.Body)
		var job batch.Job
		require.NoError(t, json.Unmarshal(respBody, &job))
		assert.Equal(t, batch.JobCompleted, job.Status)
		require.Len(t, job.Results, 1)
		assert.Equal(t, "img-1", job.Results[0].ItemID)

		mockService.AssertExpectations(t)
	})

	t.Run("unknown job", func(t *testing.T) {
		mockService := &MockBatchService{}
		mockService.On("GetJob", mock.Anything).Return(nil, domain.ErrJobNotFound)

		handler := NewBatchHandler(mockService, testLogger())
		app := newTestApp()
		app.Get("/recognition/batch/:jobId", handler.Get)

		req := newJSONRequest(t, "GET", "/recognition/batch/"+uuid.NewString(), nil)

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
	})

	t.Run("malformed job id", func(t *testing.T) {
		mockService := &MockBatchService{}

		handler := NewBatchHandler(mockService, testLogger())
		app := newTestApp()
		app.Get("/recognition/batch/:jobId", handler.Get)

		req := newJSONRequest(t, "GET", "/recognition/batch/not-a-uuid", nil)

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.StatusCode)

		mockService.AssertNotCalled(t, "GetJob", mock.Anything)
	})
}

func TestBatchHandler_List(t *testing.T) {
	summaries := []batch.Summary{
		{ID: uuid.New(), Status: batch.JobProcessing, Total: 10, Processed: 4, Progress: 40, CreatedAt: time.Now()},
		{ID: uuid.New(), Status: batch.JobCompleted, Total: 3, Processed: 3, Progress: 100, CreatedAt: time.Now().Add(-time.Hour)},
	}

	t.Run("default lists everything", func(t *testing.T) {
		mockService := &MockBatchService{}
		mockService.On("ListJobs", 0).Return(summaries)

		handler := NewBatchHandler(mockService, testLogger())
		app := newTestApp()
		app.Get("/recognition/batch", handler.List)

		req := newJSONRequest(t, "GET", "/recognition/batch", nil)

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		respBody, _ := io.ReadAll(resp.Body)
		var envelope struct {
			Jobs  []batch.Summary `json:"jobs"`
			Count int             `json:"count"`
		}
		require.NoError(t, json.Unmarshal(respBody, &envelope))
		assert.Equal(t, 2, envelope.Count)
		require.Len(t, envelope.Jobs, 2)
		assert.Equal(t, batch.JobProcessing, envelope.Jobs[0].Status)

		mockService.AssertExpectations(t)
	})

	t.Run("limit is forwarded", func(t *testing.T) {
		mockService := &MockBatchService{}
		mockService.On("ListJobs", 5).Return(summaries[:1])

		handler := NewBatchHandler(mockService, testLogger())
		app := newTestApp()
		app.Get("/recognition/batch", handler.List)

		req := newJSONRequest(t, "GET", "/recognition/batch?limit=5", nil)

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		mockService.AssertExpectations(t)
	})
}
