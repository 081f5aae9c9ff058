package deepface

// RepresentRequest for POST /represent
type RepresentRequest struct {
	Img              string `json:"img"`              // base64 encoded image
	ModelName        string `json:"model_name"`       // "Facenet", "Facenet512", etc
	DetectorBackend  string `json:"detector_backend"` // "retinaface", "ssd", etc
	EnforceDetection bool   `json:"enforce_detection"`
	Align            bool   `json:"align"`
}

// RepresentResponse from POST /represent
type RepresentResponse struct {
	Results []RepresentResult `json:"results"`
}

type RepresentResult struct {
	Embedding      []float64  `json:"embedding"`
	FacialArea     FacialArea `json:"facial_area"`
	FaceConfidence float64    `json:"face_confidence"`
}

type FacialArea struct {
	X        int   `json:"x"`
	Y        int   `json:"y"`
	W        int   `json:"w"`
	H        int   `json:"h"`
	LeftEye  []int `json:"left_eye"`
	RightEye []int `json:"right_eye"`
}

// StatusResponse from GET /status
type StatusResponse struct {
	Ready bool      `json:"ready"`
	GPU   GPUStatus `json:"gpu"`
}

type GPUStatus struct {
	Active      bool   `json:"active"`
	MemoryUsed  uint64 `json:"memory_used"`
	MemoryTotal uint64 `json:"memory_total"`
}
