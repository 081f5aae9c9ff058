package metrics

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/visage-id/visage/internal/domain"
)

var (
	uuidSegment    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	numericSegment = regexp.MustCompile(`^[0-9]+$`)
	opaqueSegment  = regexp.MustCompile(`^[a-zA-Z0-9]{6,20}$`)
)

// Middleware records request count and latency per normalized route.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = errorStatus(err)
		}

		route := NormalizeRoute(c.Path())
		code := strconv.Itoa(status)
		elapsed := time.Since(start)

		m.httpRequests.WithLabelValues(c.Method(), route, code).Inc()
		m.httpDuration.WithLabelValues(c.Method(), route, code).Observe(elapsed.Seconds())

		return err
	}
}

// errorStatus mirrors the error handler's mapping so errored requests are
// recorded with the code the client will actually see.
func errorStatus(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	return fiber.StatusInternalServerError
}

// NormalizeRoute collapses variable path segments to keep metric
// cardinality bounded: numeric segments become :id, UUIDs :uuid and
// alphanumeric identifiers of length 6 to 20 :ci. Identifier segments must
// contain a digit so static route words keep their name.
func NormalizeRoute(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		switch {
		case uuidSegment.MatchString(segment):
			segments[i] = ":uuid"
		case numericSegment.MatchString(segment):
			segments[i] = ":id"
		case opaqueSegment.MatchString(segment) && strings.ContainsAny(segment, "0123456789"):
			segments[i] = ":ci"
		}
	}
	return strings.Join(segments, "/")
}
