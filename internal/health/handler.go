package health

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
)

// Checker defines the interface for checking dependency health.
type Checker interface {
	Ping(ctx context.Context) error
}

// RedisChecker adapts redis.Client to Checker interface.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Dependency is a named checker.
type Dependency struct {
	Name    string
	Checker Checker
}

// Handler handles health check operations.
type Handler struct {
	deps    []Dependency
	timeout time.Duration
}

// NewHandler creates a health handler over the given dependencies.
func NewHandler(deps ...Dependency) *Handler {
	return &Handler{deps: deps, timeout: 2 * time.Second}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
}

// Check pings every dependency. A failing dependency degrades the status
// but does not fail the request.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = "ok"
	resp.Body.Checks = make(map[string]string, len(h.deps))

	for _, dep := range h.deps {
		pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := dep.Checker.Ping(pingCtx)

		cancel()

		if err != nil {
			resp.Body.Checks[dep.Name] = "unhealthy"
			resp.Body.Status = "degraded"

			continue
		}

		resp.Body.Checks[dep.Name] = "healthy"
	}

	return resp, nil
}

// Path is two segments deep so it never shadows a redirect slug.
const Path = "/_/health"

// RegisterRoutes registers health check routes.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Get(api, Path, h.Check)
}
