package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/go-redirector/internal/redirect"
	"go.uber.org/zap"
)

// RedirectHandler serves redirects and cache invalidation.
type RedirectHandler struct {
	service *redirect.Service
	logger  *zap.Logger
}

// NewRedirectHandler creates a new redirect handler.
func NewRedirectHandler(service *redirect.Service, logger *zap.Logger) *RedirectHandler {
	return &RedirectHandler{
		service: service,
		logger:  logger,
	}
}

// RedirectRoot resolves a request without a path segment.
func (h *RedirectHandler) RedirectRoot(ctx context.Context, _ *struct{}) (*RedirectResponse, error) {
	return h.redirect(ctx, "")
}

// Redirect resolves a request for a slug.
func (h *RedirectHandler) Redirect(ctx context.Context, req *RedirectRequest) (*RedirectResponse, error) {
	return h.redirect(ctx, req.Slug)
}

func (h *RedirectHandler) redirect(ctx context.Context, slug string) (*RedirectResponse, error) {
	meta := RequestMetaFromContext(ctx)

	outcome, err := h.service.Resolve(ctx, meta.Host, slug)
	if err != nil {
		h.logger.Error("failed to resolve redirect",
			zap.String("requestId", meta.RequestID),
			zap.String("domain", meta.Host),
			zap.String("slug", slug),
			zap.Error(err),
		)

		switch {
		case errors.Is(err, redirect.ErrStoreUnavailable):
			return nil, huma.Error503ServiceUnavailable("redirect store unavailable")
		case errors.Is(err, redirect.ErrNoDestination):
			return nil, huma.Error500InternalServerError("no destination configured")
		default:
			return nil, huma.Error500InternalServerError("failed to resolve redirect")
		}
	}

	if outcome.Noteworthy {
		h.logger.Warn("redirect not configured",
			zap.String("requestId", meta.RequestID),
			zap.String("remoteAddr", meta.ClientIP),
			zap.String("userAgent", meta.UserAgent),
			zap.String("domain", meta.Host),
			zap.String("slug", slug),
			zap.String("source", string(outcome.Source)),
			zap.String("destination", outcome.Destination),
		)
	}

	return &RedirectResponse{
		Status:   http.StatusFound,
		Location: outcome.Destination,
	}, nil
}

// InvalidateRoot purges the domain-level cache entry.
func (h *RedirectHandler) InvalidateRoot(ctx context.Context, _ *struct{}) (*InvalidateResponse, error) {
	return h.invalidate(ctx, "")
}

// Invalidate purges the cache entry for a slug under the request host.
func (h *RedirectHandler) Invalidate(ctx context.Context, req *InvalidateRequest) (*InvalidateResponse, error) {
	return h.invalidate(ctx, req.Slug)
}

func (h *RedirectHandler) invalidate(ctx context.Context, slug string) (*InvalidateResponse, error) {
	meta := RequestMetaFromContext(ctx)

	key, purged, err := h.service.InvalidateCache(ctx, meta.Host, slug)
	if err != nil {
		h.logger.Error("failed to purge cache key",
			zap.String("requestId", meta.RequestID),
			zap.String("key", key),
			zap.Error(err),
		)

		return nil, huma.Error503ServiceUnavailable("cache unavailable")
	}

	resp := &InvalidateResponse{}
	resp.Body.Key = key
	resp.Body.Purged = purged

	return resp, nil
}
