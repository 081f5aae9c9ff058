package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrUserNotFound = &AppError{
		Code:       "USER_NOT_FOUND",
		Message:    "User not found",
		StatusCode: 404,
	}

	ErrUserExists = &AppError{
		Code:       "USER_EXISTS",
		Message:    "User already registered for this external_id",
		StatusCode: 409,
	}

	ErrNoMatch = &AppError{
		Code:       "NO_MATCH",
		Message:    "No matching user found",
		StatusCode: 404,
	}

	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or dimensions",
		StatusCode: 400,
	}

	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face detected in the image",
		StatusCode: 400,
	}

	ErrFaceTooSmall = &AppError{
		Code:       "FACE_TOO_SMALL",
		Message:    "Detected face is too small for reliable recognition",
		StatusCode: 400,
	}

	ErrFaceTooLarge = &AppError{
		Code:       "FACE_TOO_LARGE",
		Message:    "Detected face exceeds the accepted size range",
		StatusCode: 400,
	}

	ErrLowQuality = &AppError{
		Code:       "LOW_QUALITY",
		Message:    "Detection confidence too low for reliable recognition",
		StatusCode: 400,
	}

	ErrIndexFull = &AppError{
		Code:       "INDEX_FULL",
		Message:    "Vector index reached its configured capacity",
		StatusCode: 507,
	}

	ErrIndexNotInitialized = &AppError{
		Code:       "INDEX_NOT_INITIALIZED",
		Message:    "Vector index is not initialized",
		StatusCode: 503,
	}

	ErrTimeout = &AppError{
		Code:       "TIMEOUT",
		Message:    "Operation timed out",
		StatusCode: 504,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}

	ErrJobNotFound = &AppError{
		Code:       "JOB_NOT_FOUND",
		Message:    "Batch job not found",
		StatusCode: 404,
	}

	ErrBatchTooLarge = &AppError{
		Code:       "BATCH_TOO_LARGE",
		Message:    "Batch exceeds the maximum number of images",
		StatusCode: 422,
	}

	ErrBatchEmpty = &AppError{
		Code:       "BATCH_EMPTY",
		Message:    "Batch must contain at least one image",
		StatusCode: 422,
	}
)
