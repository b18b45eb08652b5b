package main

import (
	"net/http"

	"storefront/internal/handler"
	"storefront/internal/middleware"
	"storefront/internal/ratelimit"
	"storefront/internal/response"
	"storefront/internal/security"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routes struct {
	tokens   *security.TokenService
	auth     *handler.AuthHandler
	cart     *handler.CartHandler
	wishlist *handler.WishlistHandler
	limiter  *middleware.RateLimiter
	ready    http.HandlerFunc
	origins  []string
	openapi  *middleware.OpenAPIValidatorConfig
}

func newRouter(rt routes) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.origins))
	r.Use(middleware.Metrics())

	r.Get("/health", handler.Health)
	r.Get("/health/ready", rt.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, response.CodeNotFound, "Not found")
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.OpenAPIValidator(rt.openapi))

		authed := middleware.Auth(rt.tokens)
		limit := rt.limiter.Middleware

		r.With(limit(ratelimit.ClassAuth)).Post("/auth/register", rt.auth.Register)
		r.With(limit(ratelimit.ClassAuth)).Post("/auth/login", rt.auth.Login)
		r.Post("/auth/logout", rt.auth.Logout)
		r.With(limit(ratelimit.ClassFetch), authed).Get("/auth/me", rt.auth.Me)

		r.With(limit(ratelimit.ClassFetch), authed).Get("/cart", rt.cart.Get)
		r.With(limit(ratelimit.ClassCart), authed).Put("/cart", rt.cart.Replace)
		r.With(limit(ratelimit.ClassCart), authed).Delete("/cart", rt.cart.Clear)

		r.With(limit(ratelimit.ClassFetch), authed).Get("/wishlist", rt.wishlist.Get)
		r.With(limit(ratelimit.ClassWishlist), authed).Post("/wishlist", rt.wishlist.Write)
		r.With(limit(ratelimit.ClassWishlist), authed).Delete("/wishlist", rt.wishlist.Remove)
	})

	return r
}
