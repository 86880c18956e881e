package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/coffee-shop/app"
	"github.com/upb/coffee-shop/auth"
	"github.com/upb/coffee-shop/internal/observability"
	"github.com/upb/coffee-shop/middleware"
	"github.com/upb/coffee-shop/utils"
)

const requestTimeout = 30 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger, deps.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Config.CORS.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPut, http.MethodPost,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	if deps.Config.Observability.MetricsEnabled && deps.Registry != nil {
		r.Handle("/metrics", observability.Handler(deps.Registry))
	}

	drinks := deps.DrinkHandler
	guard := deps.AuthGuard

	// Public menu
	r.Get("/drinks", drinks.HandleListDrinks)

	// Barista and manager routes
	r.With(guard.RequirePermission(auth.PermissionGetDrinksDetail)).Get("/drinks-detail", drinks.HandleListDrinkDetails)
	r.Method(http.MethodPost, "/drinks", guard.Require(auth.PermissionPostDrinks, drinks.HandleCreateDrink))
	r.Method(http.MethodPatch, "/drinks/{id}", guard.Require(auth.PermissionPatchDrinks, drinks.HandleUpdateDrink))
	r.Method(http.MethodDelete, "/drinks/{id}", guard.Require(auth.PermissionDeleteDrinks, drinks.HandleDeleteDrink))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteMethodNotAllowed(w)
	})

	return r
}
