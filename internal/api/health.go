package api

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Prober reports whether a local tool can be run.
type Prober interface {
	Available() bool
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Words         int               `json:"words"`
	Transcriber   string            `json:"transcriber,omitempty"`
}

// HealthDeps are the dependencies the health endpoint inspects. Nil
// fields are reported as not_configured.
type HealthDeps struct {
	Words       WordSource
	Transcoder  Prober
	Store       HealthChecker
	Transcriber string // provider/model label
}

type HealthHandler struct {
	deps      HealthDeps
	version   string
	startTime time.Time
}

func NewHealthHandler(deps HealthDeps, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		deps:      deps,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	unhealthy := func() {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}
	degraded := func() {
		if status == "healthy" {
			status = "degraded"
		}
	}

	// Store check
	if h.deps.Store != nil {
		if err := h.deps.Store.HealthCheck(r.Context()); err != nil {
			checks["store"] = "error"
			unhealthy()
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "not_configured"
	}

	// Word list check
	words := 0
	if h.deps.Words != nil {
		words = h.deps.Words.Len()
	}
	if words == 0 {
		checks["words"] = "empty"
		unhealthy()
	} else {
		checks["words"] = "ok"
	}

	// Transcoder check: canonical WAV uploads still work without it
	if h.deps.Transcoder != nil {
		if h.deps.Transcoder.Available() {
			checks["transcoder"] = "ok"
		} else {
			checks["transcoder"] = "missing"
			degraded()
		}
	} else {
		checks["transcoder"] = "not_configured"
		degraded()
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
		Words:         words,
		Transcriber:   h.deps.Transcriber,
	})
}
