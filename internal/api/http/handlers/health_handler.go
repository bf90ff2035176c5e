package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/grievance-service/internal/persistence"
)

const readinessProbeTimeout = 2 * time.Second

type dependencyProbe struct {
	name string
	ping func(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	startedAt   time.Time
	probes      []dependencyProbe
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		startedAt:   time.Now(),
		probes: []dependencyProbe{
			{name: "postgres", ping: postgres.Ping},
			{name: "redis", ping: redis.Ping},
		},
	}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "alive",
		"service":        h.serviceName,
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// Ready reports readiness by pinging every registered dependency.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessProbeTimeout)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true
	for _, probe := range h.probes {
		if err := probe.ping(ctx); err != nil {
			depStatus[probe.name] = err.Error()
			ready = false
			continue
		}
		depStatus[probe.name] = "ok"
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}
