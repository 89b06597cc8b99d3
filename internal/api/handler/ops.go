// Package handler provides HTTP handlers for the hexfog API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hexfog/hexfog/internal/api/models"
	"github.com/hexfog/hexfog/internal/api/response"
	"github.com/hexfog/hexfog/internal/provider/resilience"
)

// Pinger checks a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	database  Pinger
	registry  *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler. database and registry may be nil.
func NewOpsHandler(version, buildTime string, database Pinger, registry *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		database:  database,
		registry:  registry,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.database.Ping(ctx); err != nil {
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"database": err.Error()}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
	}

	if h.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		sub := models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
		if err := h.database.Ping(ctx); err != nil {
			detail := err.Error()
			sub.Status = models.HealthStatusFail
			sub.Detail = &detail
			status.Status = models.HealthStatusFail
		}
		status.Subsystems = append(status.Subsystems, sub)
	}

	if h.registry != nil {
		for _, health := range h.registry.Snapshot() {
			status.Providers = append(status.Providers, providerStatus(health))
		}

		switch h.registry.Status() {
		case resilience.StatusDown:
			status.Status = models.HealthStatusFail
		case resilience.StatusDegraded:
			if status.Status == models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func providerStatus(h resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            h.Name,
		Status:              models.HealthStatusOK,
		Circuit:             h.CircuitState.String(),
		Requests:            h.Counts.Requests,
		ConsecutiveFailures: h.Counts.ConsecutiveFailures,
	}
	switch h.Status() {
	case resilience.StatusDown:
		ps.Status = models.HealthStatusFail
	case resilience.StatusDegraded:
		ps.Status = models.HealthStatusDegraded
	}
	if !h.LastSuccessAt.IsZero() {
		t := models.Timestamp(h.LastSuccessAt)
		ps.LastSuccessAt = &t
	}
	if !h.LastFailureAt.IsZero() {
		t := models.Timestamp(h.LastFailureAt)
		ps.LastFailureAt = &t
	}
	if h.LastError != "" {
		msg := h.LastError
		ps.Message = &msg
	}
	return ps
}
