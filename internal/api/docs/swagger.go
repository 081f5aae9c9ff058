package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// UserData is the enrolled user summary returned by registration endpoints
type UserData struct {
	ID               int64   `json:"id" example:"42"`
	ExternalID       string  `json:"external_id" example:"user-123"`
	DisplayName      string  `json:"display_name,omitempty" example:"Alice Ferraz"`
	ClientRef        string  `json:"client_ref,omitempty" example:"crm-77412"`
	Confidence       float64 `json:"confidence" example:"0.97"`
	Active           bool    `json:"active" example:"true"`
	RecognitionCount int64   `json:"recognition_count" example:"0"`
	CreatedAt        string  `json:"created_at" example:"2025-06-01T12:00:00Z"`
	UpdatedAt        string  `json:"updated_at" example:"2025-06-01T12:00:00Z"`
}

// BoxData is the detected face bounding box in source-image pixels
type BoxData struct {
	X int `json:"x" example:"120"`
	Y int `json:"y" example:"80"`
	W int `json:"w" example:"240"`
	H int `json:"h" example:"240"`
}

// RegisterData is the response for register and update
type RegisterData struct {
	User         UserData `json:"user"`
	Confidence   float64  `json:"confidence" example:"0.97"`
	Box          BoxData  `json:"box"`
	ProcessingMs int64    `json:"processing_ms" example:"184"`
}

// MatchData identifies the matched user
type MatchData struct {
	UserID      int64   `json:"user_id" example:"42"`
	ExternalID  string  `json:"external_id" example:"user-123"`
	DisplayName string  `json:"display_name,omitempty" example:"Alice Ferraz"`
	ClientRef   string  `json:"client_ref,omitempty" example:"crm-77412"`
	Distance    float64 `json:"distance" example:"0.31"`
	Similarity  int     `json:"similarity" example:"87"`
}

// RecognizeData is the response for a successful identification
type RecognizeData struct {
	Match        MatchData `json:"match"`
	Confidence   float64   `json:"confidence,omitempty" example:"0.87"`
	Backend      string    `json:"backend" example:"hnsw"`
	ProcessingMs int64     `json:"processing_ms" example:"92"`
	CacheHit     bool      `json:"cache_hit,omitempty" example:"false"`
}

// BatchItemResultData pairs an item id with its identification outcome
type BatchItemResultData struct {
	ItemID string        `json:"item_id" example:"img-1"`
	Result RecognizeData `json:"result"`
}

// BatchItemErrorData reports one failed batch item
type BatchItemErrorData struct {
	ItemID       string `json:"item_id" example:"img-2"`
	Code         string `json:"code" example:"NO_FACE_DETECTED"`
	Message      string `json:"message" example:"No face detected in the image"`
	ProcessingMs int64  `json:"processing_ms" example:"45"`
}

// BatchJobData is the full state of a batch job
type BatchJobData struct {
	ID           string                `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Status       string                `json:"status" example:"completed"`
	Total        int                   `json:"total" example:"3"`
	Processed    int                   `json:"processed" example:"3"`
	Progress     int                   `json:"progress" example:"100"`
	Results      []BatchItemResultData `json:"results"`
	Errors       []BatchItemErrorData  `json:"errors,omitempty"`
	GlobalError  string                `json:"global_error,omitempty"`
	CreatedAt    string                `json:"created_at" example:"2025-06-01T12:00:00Z"`
	StartedAt    string                `json:"started_at,omitempty" example:"2025-06-01T12:00:01Z"`
	CompletedAt  string                `json:"completed_at,omitempty" example:"2025-06-01T12:00:04Z"`
	ProcessingMs int64                 `json:"processing_ms" example:"2841"`
}

// BatchJobSummaryData is the list view of a batch job
type BatchJobSummaryData struct {
	ID          string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Status      string `json:"status" example:"processing"`
	Total       int    `json:"total" example:"10"`
	Processed   int    `json:"processed" example:"4"`
	Progress    int    `json:"progress" example:"40"`
	CreatedAt   string `json:"created_at" example:"2025-06-01T12:00:00Z"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// BatchListData wraps the job summaries
type BatchListData struct {
	Jobs  []BatchJobSummaryData `json:"jobs"`
	Count int                   `json:"count" example:"2"`
}

// RebuildAcceptedData acknowledges an index rebuild
type RebuildAcceptedData struct {
	Status string `json:"status" example:"rebuilding"`
}

// IndexStatsData is the vector index snapshot
type IndexStatsData struct {
	Size          int    `json:"size" example:"15230"`
	Capacity      uint64 `json:"capacity" example:"1100000"`
	Tombstones    int    `json:"tombstones" example:"12"`
	NextLabel     uint64 `json:"nextLabel" example:"15242"`
	LastRebuildAt string `json:"lastRebuildAt" example:"2025-06-01T04:00:00Z"`
	M             int    `json:"m" example:"16"`
	EfSearch      int    `json:"efSearch" example:"100"`
	MemoryBytes   uint64 `json:"memoryBytes" example:"9850880"`
	Initialized   bool   `json:"initialized" example:"true"`
	Dirty         bool   `json:"dirty" example:"false"`
}

// SettingsData holds the active recognition thresholds
type SettingsData struct {
	ConfidenceThreshold float64 `json:"confidence_threshold" example:"0.42"`
	MinFaceSize         int     `json:"min_face_size" example:"80"`
	MaxFaceSize         int     `json:"max_face_size" example:"1000"`
	DetectionConfidence float64 `json:"detection_confidence" example:"0.8"`
}

// ProfileData is a named threshold preset
type ProfileData struct {
	Name                string  `json:"name" example:"balanced"`
	ConfidenceThreshold float64 `json:"confidence_threshold" example:"0.42"`
	DetectionConfidence float64 `json:"detection_confidence" example:"0.8"`
}

// SettingsViewData is the response for GET settings
type SettingsViewData struct {
	Settings SettingsData  `json:"settings"`
	Profiles []ProfileData `json:"profiles"`
}

// SettingsAppliedData is the response for PUT settings
type SettingsAppliedData struct {
	Settings SettingsData `json:"settings"`
}

// ServiceStatsData is the rolling recognition counters view
type ServiceStatsData struct {
	TotalRecognitions int64        `json:"total_recognitions" example:"10452"`
	SuccessfulMatches int64        `json:"successful_matches" example:"9817"`
	SuccessRate       float64      `json:"success_rate" example:"93.92"`
	AvgProcessingMs   float64      `json:"avg_processing_ms" example:"84.3"`
	IndexSize         int          `json:"index_size" example:"15230"`
	Settings          SettingsData `json:"settings"`
}

// LogData is one recognition audit row
type LogData struct {
	ID           int64   `json:"id" example:"981"`
	UserID       int64   `json:"user_id,omitempty" example:"42"`
	ExternalID   string  `json:"external_id,omitempty" example:"user-123"`
	Matched      bool    `json:"matched" example:"true"`
	Distance     float64 `json:"distance,omitempty" example:"0.31"`
	Similarity   int     `json:"similarity,omitempty" example:"87"`
	Backend      string  `json:"backend" example:"hnsw"`
	ProcessingMs int64   `json:"processing_ms" example:"92"`
	CreatedAt    string  `json:"created_at" example:"2025-06-01T12:00:00Z"`
}

// LogsData wraps the recent audit rows
type LogsData struct {
	Logs  []LogData `json:"logs"`
	Count int       `json:"count" example:"50"`
}

// HealthData is the liveness response
type HealthData struct {
	Status  string `json:"status" example:"ok"`
	Version string `json:"version,omitempty" example:"0.1.0"`
}

// ComponentData is one probe of the detailed health report
type ComponentData struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty"`
}

// CacheData reports the active cache tier
type CacheData struct {
	Status string `json:"status" example:"ok"`
	Mode   string `json:"mode" example:"redis"`
	Error  string `json:"error,omitempty"`
}

// ProviderData reports vision backend readiness
type ProviderData struct {
	Status         string `json:"status" example:"ok"`
	Name           string `json:"name" example:"deepface"`
	Backend        string `json:"backend,omitempty" example:"tensorflow-gpu"`
	Ready          bool   `json:"ready" example:"true"`
	GPUActive      bool   `json:"gpu_active" example:"true"`
	GPUMemoryUsed  uint64 `json:"gpu_memory_used,omitempty" example:"2147483648"`
	GPUMemoryTotal uint64 `json:"gpu_memory_total,omitempty" example:"8589934592"`
	Error          string `json:"error,omitempty"`
}

// DetailedHealthData aggregates the component probes
type DetailedHealthData struct {
	Status   string         `json:"status" example:"ok"`
	Database ComponentData  `json:"database"`
	Cache    CacheData      `json:"cache"`
	Index    IndexStatsData `json:"index"`
	Provider ProviderData   `json:"provider"`
}

// ErrorBody is the code and message pair inside every error response
type ErrorBody struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

// ErrorResponse is the standard error envelope
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Visage Face Recognition API",
		Version:     "v1.0.0",
		Description: "Face identification service: enrolls users from facial images and identifies them against the enrolled population via an ANN descriptor index",
		Host:        "localhost:8080",
		Path:        "/",
	})

	endpoints := []*endpoint.EndPoint{
		// Recognition endpoints

		// POST /recognition/register - Register User
		endpoint.New(
			endpoint.POST,
			"/recognition/register",
			endpoint.WithTags("Recognition"),
			endpoint.WithSummary("Register a new user"),
			endpoint.WithDescription("Enrolls a new user from a base64-encoded facial image. Body: {external_id, display_name?, client_ref?, image}. The external_id must not already be enrolled."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(RegisterData{}, "201", "User registered successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Error: ErrorBody{Code: "INVALID_IMAGE", Message: "Invalid image format or dimensions"}}, "400", "Bad Request"),
				response.New(ErrorResponse{Error: ErrorBody{Code: "NO_FACE_DETECTED", Message: "No face detected in the image"}}, "400", "Bad Request"),
				response.New(ErrorResponse{Error: ErrorBody{Code: "USER_EXISTS", Message: "User already registered for this external_id"}}, "409", "Conflict"),
				response.New(ErrorResponse{Error: ErrorBody{Code: "VALIDATION_FAILED", Message: "Request validation failed"}}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Error: ErrorBody{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}}, "500", "Internal Server Error"),
			}),
		),

		// POST /recognition/recognize - Identify User
		endpoint.New(
			endpoint.POST,
			"/recognition/recognize",
			endpoint.WithTags("Recognition"),
			endpoint.WithSummary("Identify a face against the enrolled population"),
			endpoint.WithDescription("Performs 1:N identification of the face in a base64-encoded image. Body: {image}. Returns the best match above the confidence threshold."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(RecognizeData{}, "200", "Match found"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Error: ErrorBody{Code: "INVALID_IMAGE", Message: "Invalid image format or dimensions"}}, "400", "Bad Request"),
				response.New(ErrorResponse{Error: ErrorBody{Code: "NO_FACE_DETECTED", Message: "No face detected in the image"}}, "400", "Bad Request"),
				response.New(ErrorResponse{Error: ErrorBody{Code: "NO_MATCH", Message: "No matching user found"}}, "404", "Not Found"),
				response.New(ErrorResponse{Error: ErrorBody{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}}, "500", "Internal Server Error"),
			}),
		),

		// PUT /recognition/update - Update Descriptor
		endpoint.New(
			endpoint.PUT,
			"/recognition/update",
			endpoint.WithTags("Recognition"),
			endpoint.WithSummary("Replace a user's reference descriptor"),
			endpoint.WithDescription("Re-enrolls an existing user from a new base64-encoded image. Body: {external_id, image}."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(RegisterData{}, "200", "Descriptor updated successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Error: ErrorBody{Code: "INVALID_IMAGE", Message: "Invalid image format or dimensions"}}, "400", "Bad Request"),
				response.New(ErrorResponse{Error: ErrorBody{Code: "USER_NOT_FOUND", Message: "User not found"}}, "404", "Not Found"),
				response.New(ErrorResponse{Error: ErrorBody{Code: "VALIDATION_FAILED", Message: "Request validation failed"}}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Error: ErrorBody{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}}, "500", "Internal Server Error"),
			}),
		),

		// Batch endpoints

		// POST /recognition/batch - Submit Batch Job
		endpoint.New(
			endpoint.POST,
			"/recognition/batch",
			endpoint.WithTags("Batch"),
			endpoint.WithSummary("Submit a batch identification job"),
			endpoint.WithDescription("Accepts up to 50 base64-encoded images and identifies them asynchronously. Body: {images: [{id?, image}]}. Results are recorded in completion order; correlate by item id."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(BatchJobData{}, "202", "Job accepted"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Error: ErrorBody{Code: "BATCH_EMPTY", Message: "Batch must contain at least one image"}}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Error: ErrorBody{Code: "BATCH_TOO_LARGE", Message: "Batch exceeds the maximum number of images"}}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Error: ErrorBody{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}}, "500", "Internal Server Error"),
			}),
		),

		// GET /recognition/batch - List Batch Jobs
		endpoint.New(
			endpoint.GET,
			"/recognition/batch",
			endpoint.WithTags("Batch"),
			endpoint.WithSummary("List batch jobs"),
			endpoint.WithDescription("Returns job summaries, newest first"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.IntParam("limit", parameter.Query, parameter.WithDescription("Maximum number of jobs to return (default: all)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(BatchListData{}, "200", "Jobs listed successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Error: ErrorBody{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}}, "500", "Internal Server Error"),
			}),
		),

		// GET /recognition/batch/{jobId} - Get Batch Job
		endpoint.New(
			endpoint.GET,
			"/recognition/batch/{jobId}",
			endpoint.WithTags("Batch"),
			endpoint.WithSummary("Get a batch job"),
			endpoint.WithDescription("Returns full job state including results and per-item errors collected so far"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("jobId", parameter.Path, parameter.WithDescription("Job identifier (UUID)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(BatchJobData{}, "200", "Job retrieved successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Error: ErrorBody{Code: "JOB_NOT_FOUND", Message: "Batch job not found"}}, "404", "Not Found"),
				response.New(ErrorResponse{Error: ErrorBody{Code: "VALIDATION_FAILED", Message: "Request validation failed"}}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Error: ErrorBody{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}}, "500", "Internal Server Error"),
			}),
		),

		// Index endpoints

		// POST /recognition/index/rebuild - Rebuild Index
		endpoint.New(
			endpoint.POST,
			"/recognition/index/rebuild",
			endpoint.WithTags("Index"),
			endpoint.WithSummary("Rebuild the vector index from the store"),
			endpoint.WithDescription("Starts an asynchronous rebuild of the ANN index from the active user population. Progress is visible through logs and the stats endpoint."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(RebuildAcceptedData{}, "202", "Rebuild started"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Error: ErrorBody{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}}, "500", "Internal Server Error"),
			}),
		),

		// GET /recognition/index/stats - Index Stats
		endpoint.New(
			endpoint.GET,
			"/recognition/index/stats",
			endpoint.WithTags("Index"),
			endpoint.WithSummary("Get vector index statistics"),
			endpoint.WithDescription("Returns a point-in-time snapshot of index size, capacity, tombstones and tuning parameters"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(IndexStatsData{}, "200", "Stats retrieved successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Error: ErrorBody{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}}, "500", "Internal Server Error"),
			}),
		),

		// Operations endpoints

		// GET /recognition/stats - Service Stats
		endpoint.New(
			endpoint.GET,
			"/recognition/stats",
			endpoint.WithTags("Operations"),
			endpoint.WithSummary("Get recognition statistics"),
			endpoint.WithDescription("Returns rolling recognition counters, average latency and the active settings"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ServiceStatsData{}, "200", "Stats retrieved successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Error: ErrorBody{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}}, "500", "Internal Server Error"),
			}),
		),

		// GET /recognition/settings - View Settings
		endpoint.New(
			endpoint.GET,
			"/recognition/settings",
			endpoint.WithTags("Operations"),
			endpoint.WithSummary("Get active settings"),
			endpoint.WithDescription("Returns the active recognition thresholds and the available named profiles"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SettingsViewData{}, "200", "Settings retrieved successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Error: ErrorBody{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}}, "500", "Internal Server Error"),
			}),
		),

		// PUT /recognition/settings - Update Settings
		endpoint.New(
			endpoint.PUT,
			"/recognition/settings",
			endpoint.WithTags("Operations"),
			endpoint.WithSummary("Hot-apply settings"),
			endpoint.WithDescription("Applies a named profile ({profile: high_security|balanced|fast|permissive}) or individual thresholds ({confidence_threshold?, min_face_size?, max_face_size?, detection_confidence?}). Takes effect without restart."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SettingsAppliedData{}, "200", "Settings applied successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Error: ErrorBody{Code: "VALIDATION_FAILED", Message: "Request validation failed"}}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Error: ErrorBody{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}}, "500", "Internal Server Error"),
			}),
		),

		// GET /recognition/logs - Recognition Logs
		endpoint.New(
			endpoint.GET,
			"/recognition/logs",
			endpoint.WithTags("Operations"),
			endpoint.WithSummary("Get recent recognition logs"),
			endpoint.WithDescription("Returns the most recent recognition audit rows"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.IntParam("limit", parameter.Query, parameter.WithDescription("Maximum number of rows to return (default: 50)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(LogsData{}, "200", "Logs retrieved successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Error: ErrorBody{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}}, "500", "Internal Server Error"),
			}),
		),

		// Health endpoints

		// GET /health - Liveness
		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Liveness check"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthData{}, "200", "Service is alive"),
			}),
		),

		// GET /health/detailed - Detailed Health
		endpoint.New(
			endpoint.GET,
			"/health/detailed",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Detailed health report"),
			endpoint.WithDescription("Probes the database, cache tier, vector index and vision provider"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(DetailedHealthData{}, "200", "All components healthy"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(DetailedHealthData{Status: "degraded"}, "503", "One or more components degraded"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
