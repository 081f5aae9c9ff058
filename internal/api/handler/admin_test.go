package handler

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/visage-id/visage/internal/domain"
	"github.com/visage-id/visage/internal/index"
	"github.com/visage-id/visage/internal/recognizer"
)

// MockAdminService is a mock implementation of AdminService
type MockAdminService struct {
	mock.Mock
}

func (m *MockAdminService) Settings() domain.Settings {
	args := m.Called()
	return args.Get(0).(domain.Settings)
}

func (m *MockAdminService) ApplySettings(ctx context.Context, s domain.Settings) (domain.Settings, error) {
	args := m.Called(ctx, s)
	return args.Get(0).(domain.Settings), args.Error(1)
}

func (m *MockAdminService) ApplyProfile(ctx context.Context, name string) (domain.Settings, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(domain.Settings), args.Error(1)
}

func (m *MockAdminService) RebuildIndex(ctx context.Context) (index.RebuildStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(index.RebuildStats), args.Error(1)
}

func (m *MockAdminService) RecentLogs(ctx context.Context, limit int) ([]domain.RecognitionLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RecognitionLog), args.Error(1)
}

func (m *MockAdminService) Stats() recognizer.Stats {
	args := m.Called()
	return args.Get(0).(recognizer.Stats)
}

// MockIndexInspector is a mock implementation of IndexInspector
type MockIndexInspector struct {
	mock.Mock
}

func (m *MockIndexInspector) Stats() index.Stats {
	args := m.Called()
	return args.Get(0).(index.Stats)
}

var defaultSettings = domain.Settings{
	ConfidenceThreshold: 0.42,
	MinFaceSize:         80,
	MaxFaceSize:         1000,
	DetectionConfidence: 0.8,
}

func TestAdminHandler_RebuildIndex(t *testing.T) {
	mockService := &MockAdminService{}
	mockIndex := &MockIndexInspector{}

	started := make(chan struct{})
	mockService.On("RebuildIndex", mock.Anything).
		Run(func(mock.Arguments) { close(started) }).
		Return(index.RebuildStats{Indexed: 5}, nil)

	handler := NewAdminHandler(mockService, mockIndex, testLogger())
	app := newTestApp()
	app.Post("/recognition/index/rebuild", handler.RebuildIndex)

	req := newJSONRequest(t, "POST", "/recognition/index/rebuild", nil)

	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, 202, resp.StatusCode)

	respBody, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(respBody), "rebuilding")

	// The 202 is sent before the rebuild runs; wait for the detached call.
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("rebuild was never started")
	}
}

func TestAdminHandler_IndexStats(t *testing.T) {
	mockService := &MockAdminService{}
	mockIndex := &MockIndexInspector{}
	mockIndex.On("Stats").Return(index.Stats{
		Size:        15230,
		Capacity:    1100000,
		Tombstones:  12,
		M:           16,
		EfSearch:    100,
		Initialized: true,
	})

	handler := NewAdminHandler(mockService, mockIndex, testLogger())
	app := newTestApp()
	app.Get("/recognition/index/stats", handler.IndexStats)

	req := newJSONRequest(t, "GET", "/recognition/index/stats", nil)

	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	respBody, _ := io.ReadAll(resp.Body)
	var stats index.Stats
	require.NoError(t, json.Unmarshal(respBody, &stats))
	assert.Equal(t, 15230, stats.Size)
	assert.Equal(t, 16, stats.M)
	assert.True(t, stats.Initialized)
}

func TestAdminHandler_Stats(t *testing.T) {
	mockService := &MockAdminService{}
	mockIndex := &MockIndexInspector{}
	mockService.On("Stats").Return(recognizer.Stats{
		TotalRecognitions: 1000,
		SuccessfulMatches: 940,
		SuccessRate:       0.94,
		AvgProcessingMs:   84.3,
		IndexSize:         15230,
		Settings:          defaultSettings,
	})

	handler := NewAdminHandler(mockService, mockIndex, testLogger())
	app := newTestApp()
	app.Get("/recognition/stats", handler.Stats)

	req := newJSONRequest(t, "GET", "/recognition/stats", nil)

	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	respBody, _ := io.ReadAll(resp.Body)
	var stats recognizer.Stats
	require.NoError(t, json.Unmarshal(respBody, &stats))
	assert.Equal(t, int64(1000), stats.TotalRecognitions)
	assert.Equal(t, 0.94, stats.SuccessRate)
	assert.Equal(t, defaultSettings, stats.Settings)
}

func TestAdminHandler_GetSettings(t *testing.T) {
	mockService := &MockAdminService{}
	mockIndex := &MockIndexInspector{}
	mockService.On("Settings").Return(defaultSettings)

	handler := NewAdminHandler(mockService, mockIndex, testLogger())
	app := newTestApp()
	app.Get("/recognition/settings", handler.GetSettings)

	req := newJSONRequest(t, "GET", "/recognition/settings", nil)

	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	respBody, _ := io.ReadAll(resp.Body)
	var envelope struct {
		Settings domain.Settings  `json:"settings"`
		Profiles []domain.Profile `json:"profiles"`
	}
	require.NoError(t, json.Unmarshal(respBody, &envelope))
	assert.Equal(t, defaultSettings, envelope.Settings)
	assert.Len(t, envelope.Profiles, 4)
}

func TestAdminHandler_UpdateSettings(t *testing.T) {
	t.Run("named profile", func(t *testing.T) {
		mockService := &MockAdminService{}
		mockIndex := &MockIndexInspector{}
		applied := domain.Settings{
			ConfidenceThreshold: 0.55,
			MinFaceSize:         80,
			MaxFaceSize:         1000,
			DetectionConfidence: 0.7,
		}
		mockService.On("ApplyProfile", mock.Anything, "fast").Return(applied, nil)

		handler := NewAdminHandler(mockService, mockIndex, testLogger())
		app := newTestApp()
		app.Put("/recognition/settings", handler.UpdateSettings)

		req := newJSONRequest(t, "PUT", "/recognition/settings", map[string]any{"profile": "fast"})

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		respBody, _ := io.ReadAll(resp.Body)
		var envelope struct {
			Settings domain.Settings `json:"settings"`
		}
		require.NoError(t, json.Unmarshal(respBody, &envelope))
		assert.Equal(t, applied, envelope.Settings)

		mockService.AssertNotCalled(t, "ApplySettings", mock.Anything, mock.Anything)
	})

	t.Run("partial thresholds overlay the current settings", func(t *testing.T) {
		mockService := &MockAdminService{}
		mockIndex := &MockIndexInspector{}
		merged := domain.Settings{
			ConfidenceThreshold: 0.3,
			MinFaceSize:         80,
			MaxFaceSize:         1000,
			DetectionConfidence: 0.8,
		}
		mockService.On("Settings").Return(defaultSettings)
		mockService.On("ApplySettings", mock.Anything, merged).Return(merged, nil)

		handler := NewAdminHandler(mockService, mockIndex, testLogger())
		app := newTestApp()
		app.Put("/recognition/settings", handler.UpdateSettings)

		req := newJSONRequest(t, "PUT", "/recognition/settings", map[string]any{
			"confidence_threshold": 0.3,
		})

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		mockService.AssertExpectations(t)
	})

	t.Run("unknown profile", func(t *testing.T) {
		mockService := &MockAdminService{}
		mockIndex := &MockIndexInspector{}
		mockService.On("ApplyProfile", mock.Anything, "paranoid").
			Return(domain.Settings{}, domain.ErrValidationFailed)

		handler := NewAdminHandler(mockService, mockIndex, testLogger())
		app := newTestApp()
		app.Put("/recognition/settings", handler.UpdateSettings)

		req := newJSONRequest(t, "PUT", "/recognition/settings", map[string]any{"profile": "paranoid"})

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.StatusCode)
	})

	t.Run("invalid threshold combination", func(t *testing.T) {
		mockService := &MockAdminService{}
		mockIndex := &MockIndexInspector{}
		mockService.On("Settings").Return(defaultSettings)
		mockService.On("ApplySettings", mock.Anything, mock.Anything).
			Return(domain.Settings{}, domain.ErrValidationFailed)

		handler := NewAdminHandler(mockService, mockIndex, testLogger())
		app := newTestApp()
		app.Put("/recognition/settings", handler.UpdateSettings)

		req := newJSONRequest(t, "PUT", "/recognition/settings", map[string]any{
			"confidence_threshold": 1.7,
		})

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.StatusCode)
	})
}

func TestAdminHandler_Logs(t *testing.T) {
	t.Run("returns recent rows", func(t *testing.T) {
		mockService := &MockAdminService{}
		mockIndex := &MockIndexInspector{}
		userID := int64(42)
		mockService.On("RecentLogs", mock.Anything, 50).Return([]domain.RecognitionLog{
			{ID: 2, UserID: &userID, ExternalID: "user-123", Matched: true, Backend: domain.BackendHNSW, ProcessingMs: 92},
			{ID: 1, Matched: false, Backend: domain.BackendHNSW, ProcessingMs: 101},
		}, nil)

		handler := NewAdminHandler(mockService, mockIndex, testLogger())
		app := newTestApp()
		app.Get("/recognition/logs", handler.Logs)

		req := newJSONRequest(t, "GET", "/recognition/logs", nil)

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		respBody, _ := io.ReadAll(resp.Body)
		var envelope struct {
			Logs  []domain.RecognitionLog `json:"logs"`
			Count int                     `json:"count"`
		}
		require.NoError(t, json.Unmarshal(respBody, &envelope))
		assert.Equal(t, 2, envelope.Count)
		assert.True(t, envelope.Logs[0].Matched)

		mockService.AssertExpectations(t)
	})

	t.Run("limit is forwarded", func(t *testing.T) {
		mockService := &MockAdminService{}
		mockIndex := &MockIndexInspector{}
		mockService.On("RecentLogs", mock.Anything, 5).Return([]domain.RecognitionLog{}, nil)

		handler := NewAdminHandler(mockService, mockIndex, testLogger())
		app := newTestApp()
		app.Get("/recognition/logs", handler.Logs)

		req := newJSONRequest(t, "GET", "/recognition/logs?limit=5", nil)

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		mockService.AssertExpectations(t)
	})

	t.Run("empty trail serializes as an array", func(t *testing.T) {
		mockService := &MockAdminService{}
		mockIndex := &MockIndexInspector{}
		mockService.On("RecentLogs", mock.Anything, 50).Return(nil, nil)

		handler := NewAdminHandler(mockService, mockIndex, testLogger())
		app := newTestApp()
		app.Get("/recognition/logs", handler.Logs)

		req := newJSONRequest(t, "GET", "/recognition/logs", nil)

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		respBody, _ := io.ReadAll(resp.Body)
		assert.True(t, strings.Contains(string(respBody), `"logs":[]`))
	})
}
