package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterRoutes registers the redirect and invalidation routes.
func RegisterRoutes(api huma.API, h *RedirectHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "redirect-root",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Redirect the domain root",
		Description: "Redirects to the default link of the group owning the request host.",
		Tags:        []string{"Redirects"},
	}, h.RedirectRoot)

	huma.Register(api, huma.Operation{
		OperationID: "redirect",
		Method:      http.MethodGet,
		Path:        "/{slug}",
		Summary:     "Redirect a slug",
		Description: "Redirects to the link configured for the slug, falling back to group and system defaults.",
		Tags:        []string{"Redirects"},
	}, h.Redirect)

	huma.Register(api, huma.Operation{
		OperationID: "invalidate-root",
		Method:      http.MethodDelete,
		Path:        "/",
		Summary:     "Purge the domain cache entry",
		Tags:        []string{"Cache"},
	}, h.InvalidateRoot)

	huma.Register(api, huma.Operation{
		OperationID: "invalidate",
		Method:      http.MethodDelete,
		Path:        "/{slug}",
		Summary:     "Purge a slug cache entry",
		Tags:        []string{"Cache"},
	}, h.Invalidate)
}

// APIConfig returns the huma configuration for the redirect API. Every
// single segment path is a slug, so huma's docs, OpenAPI and schema routes
// are not served.
func APIConfig() huma.Config {
	config := huma.DefaultConfig("Redirector", "1.0.0")
	config.DocsPath = ""
	config.OpenAPIPath = ""
	config.SchemasPath = ""
	// The default hooks add $schema links pointing at the schemas route.
	config.CreateHooks = nil

	return config
}
