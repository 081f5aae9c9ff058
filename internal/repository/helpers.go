package repository

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/visage-id/visage/internal/domain"
)

// isUniqueViolation checks if the error is a unique constraint violation
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "23505") ||
		strings.Contains(errMsg, "unique") ||
		strings.Contains(errMsg, "duplicate key")
}

// encodeDescriptor serializes a descriptor for the JSONB column.
func encodeDescriptor(descriptor []float32) ([]byte, error) {
	if len(descriptor) != domain.DescriptorDim {
		return nil, fmt.Errorf("descriptor must have %d elements, got %d", domain.DescriptorDim, len(descriptor))
	}
	return json.Marshal(descriptor)
}

// decodeDescriptor parses the JSONB column back into a descriptor. Rows
// written by this service always carry exactly DescriptorDim floats.
func decodeDescriptor(raw []byte) ([]float32, error) {
	var descriptor []float32
	if err := json.Unmarshal(raw, &descriptor); err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}
	if len(descriptor) != domain.DescriptorDim {
		return nil, fmt.Errorf("descriptor must have %d elements, got %d", domain.DescriptorDim, len(descriptor))
	}
	return descriptor, nil
}
