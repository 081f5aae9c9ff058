package recognizer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/visage-id/visage/internal/domain"
	"github.com/visage-id/visage/internal/metrics"
	"github.com/visage-id/visage/internal/vision"
)

// Enroll registers a new identity from a single face image. The descriptor
// store is written first; the index upsert is best-effort and reconciled by
// rebuild when it fails.
func (r *Recognizer) Enroll(ctx context.Context, image []byte, req EnrollRequest) (*domain.EnrollResult, error) {
	start := time.Now()
	status := metrics.StatusError
	defer func() {
		r.metrics.ObserveRegistration(status, time.Since(start))
	}()

	detection, err := r.detect(ctx, image, vision.ModeRegister)
	if err != nil {
		return nil, err
	}

	if err := validateDetection(detection, r.Settings()); err != nil {
		return nil, err
	}

	confidence := enrollConfidence(detection)
	user := &domain.User{
		ExternalID:  req.ExternalID,
		DisplayName: req.DisplayName,
		ClientRef:   req.ClientRef,
		Descriptor:  detection.Descriptor,
		Confidence:  confidence,
		Active:      true,
	}

	if err := r.users.Create(ctx, user); err != nil {
		return nil, err
	}

	r.SyncIndex(user.ID, detection.Descriptor, user.Meta(), SyncAdd)

	status = metrics.StatusSuccess
	r.logger.Info("user enrolled",
		"user_id", user.ID,
		"external_id", user.ExternalID,
		"confidence", confidence)

	return &domain.EnrollResult{
		User:         user,
		Confidence:   confidence,
		Box:          detection.Box,
		ProcessingMs: time.Since(start).Milliseconds(),
	}, nil
}

// Update re-enrolls the descriptor of an existing identity.
func (r *Recognizer) Update(ctx context.Context, image []byte, externalID string) (*domain.EnrollResult, error) {
	start := time.Now()
	status := metrics.StatusError
	defer func() {
		r.metrics.ObserveRegistration(status, time.Since(start))
	}()

	user, err := r.users.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	detection, err := r.detect(ctx, image, vision.ModePrecise)
	if err != nil {
		return nil, err
	}

	if err := validateDetection(detection, r.Settings()); err != nil {
		return nil, err
	}

	confidence := enrollConfidence(detection)
	if err := r.users.UpdateDescriptor(ctx, user.ID, detection.Descriptor, confidence); err != nil {
		return nil, err
	}
	user.Descriptor = detection.Descriptor
	user.Confidence = confidence

	r.SyncIndex(user.ID, detection.Descriptor, user.Meta(), SyncUpdate)

	status = metrics.StatusSuccess
	r.logger.Info("user descriptor updated",
		"user_id", user.ID,
		"external_id", user.ExternalID,
		"confidence", confidence)

	return &domain.EnrollResult{
		User:         user,
		Confidence:   confidence,
		Box:          detection.Box,
		ProcessingMs: time.Since(start).Milliseconds(),
	}, nil
}

// validateDetection enforces the face-size and detection-quality gates
// applied to enrollments.
func validateDetection(det *vision.Detection, s domain.Settings) error {
	if det.Box.W < s.MinFaceSize || det.Box.H < s.MinFaceSize {
		return domain.ErrFaceTooSmall.WithError(
			fmt.Errorf("face %dx%d px, minimum %d", det.Box.W, det.Box.H, s.MinFaceSize))
	}
	if det.Box.W > s.MaxFaceSize || det.Box.H > s.MaxFaceSize {
		return domain.ErrFaceTooLarge.WithError(
			fmt.Errorf("face %dx%d px, maximum %d", det.Box.W, det.Box.H, s.MaxFaceSize))
	}
	if det.DetectionScore < s.DetectionConfidence {
		return domain.ErrLowQuality.WithError(
			fmt.Errorf("detection score %.2f below required %.2f", det.DetectionScore, s.DetectionConfidence))
	}
	return nil
}

// enrollConfidence derives the stored confidence from the detection score,
// discounted when the detector produced no landmarks.
func enrollConfidence(det *vision.Detection) float64 {
	factor := 0.7
	if det.HasLandmarks {
		factor = 0.9
	}
	return math.Round(det.DetectionScore*factor*100) / 100
}
