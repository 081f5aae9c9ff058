package deepface

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable     = errors.New("deepface service unavailable")
	ErrInvalidResponse = errors.New("invalid response from deepface")
	ErrModelNotReady   = errors.New("deepface model not ready")
)

// APIError is a non-2xx response from the DeepFace API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("deepface returned status %d: %s", e.StatusCode, e.Body)
}
