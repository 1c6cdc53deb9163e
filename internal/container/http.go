package container

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jaevor/go-nanoid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do"
	"github.com/serroba/go-redirector/internal/handlers"
	"github.com/serroba/go-redirector/internal/health"
	"github.com/serroba/go-redirector/internal/middleware"
	"github.com/serroba/go-redirector/internal/redirect"
	"go.uber.org/zap"
)

const (
	requestIDLength = 21
	// metricsPath sits next to the health route, outside the slug namespace.
	metricsPath = "/_/metrics"
)

func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*chi.Mux, error) {
		router := chi.NewMux()
		router.Handle(metricsPath, promhttp.Handler())

		return router, nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		router := do.MustInvoke[*chi.Mux](i)
		logger := do.MustInvoke[*zap.Logger](i)
		service := do.MustInvoke[*redirect.Service](i)

		newID, err := nanoid.Standard(requestIDLength)
		if err != nil {
			return nil, err
		}

		api := humachi.New(router, handlers.APIConfig())
		api.UseMiddleware(middleware.RequestMeta(api, newID))

		handlers.RegisterRoutes(api, handlers.NewRedirectHandler(service, logger))

		deps := []health.Dependency{
			{Name: "database", Checker: do.MustInvoke[RecordStore](i)},
		}

		if opts.RedisAddr != "" {
			conn := do.MustInvoke[*redisConn](i)
			deps = append(deps, health.Dependency{Name: "redis", Checker: health.NewRedisChecker(conn.Client)})
		}

		health.RegisterRoutes(api, health.NewHandler(deps...))

		return api, nil
	})
}
