// Package httpapi exposes the book review operations over HTTP with gin.
package httpapi

import (
	"net/http"

	"github.com/bookstore/services/reviews/internal/metrics"
	"github.com/bookstore/services/reviews/internal/ratelimit"
	"github.com/bookstore/services/reviews/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Books   *service.BookService
	Reviews *service.ReviewService
	Users   *service.UserService

	// AuthLimiter throttles signup and login per client address; nil
	// disables throttling.
	AuthLimiter *ratelimit.KeyedLimiter

	// Metrics and Gatherer are optional.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	DB        Pinger
	Publisher HealthReporter

	CORSAllowedOrigins []string
	Log                *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(d.Log), RequestID(), SecureHeaders(), AccessLog(d.Log))
	if d.Metrics != nil {
		r.Use(Instrument(d.Metrics))
	}

	health := NewHealthHandler(d.DB, d.Publisher)
	r.GET("/health", health.Live)
	r.GET("/healthz", health.Ready)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	requireUser := RequireUser(d.Users, d.Log)
	api := r.Group("/api")

	auth := NewAuthHandler(d.Users, d.Log)
	authGroup := api.Group("/auth")
	{
		credentials := authGroup.Group("")
		if d.AuthLimiter != nil {
			credentials.Use(RateLimit(d.AuthLimiter, d.Log))
		}
		credentials.POST("/signup", auth.Signup)
		credentials.POST("/login", auth.Login)
		authGroup.GET("/me", requireUser, auth.Me)
	}

	books := NewBookHandler(d.Books, d.Log)
	reviews := NewReviewHandler(d.Reviews, d.Log)
	bookGroup := api.Group("/books")
	{
		bookGroup.GET("", books.List)
		bookGroup.GET("/search", books.Search)
		bookGroup.GET("/:id", books.Get)
		bookGroup.POST("", requireUser, books.Create)
		bookGroup.PUT("/:id", requireUser, books.Update)
		bookGroup.DELETE("/:id", requireUser, books.Delete)
		bookGroup.POST("/:id/reviews", requireUser, reviews.Add)
	}

	reviewGroup := api.Group("/reviews", requireUser)
	{
		reviewGroup.PUT("/:id", reviews.Update)
		reviewGroup.DELETE("/:id", reviews.Delete)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{Success: false, Message: "Not Found - " + c.Request.URL.Path})
	})

	return r
}

// NewHandler returns the router wrapped with CORS handling.
func NewHandler(d Deps) http.Handler {
	origins := d.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(NewRouter(d))
}
