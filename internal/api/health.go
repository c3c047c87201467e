package api

import (
	"context"
	"net/http"
	"time"
)

// BucketChecker verifies the blob store is reachable.
type BucketChecker interface {
	HeadBucket(ctx context.Context) error
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

type HealthHandler struct {
	bucket    BucketChecker
	version   string
	startTime time.Time
}

func NewHealthHandler(bucket BucketChecker, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{bucket: bucket, version: version, startTime: startTime}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if h.bucket != nil {
		if err := h.bucket.HeadBucket(r.Context()); err != nil {
			checks["bucket"] = "error"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["bucket"] = "ok"
		}
	} else {
		checks["bucket"] = "not_configured"
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	})
}
