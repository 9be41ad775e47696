package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Domenick1991/trainbooking/internal/auth"
	"github.com/Domenick1991/trainbooking/internal/logger"
	"github.com/Domenick1991/trainbooking/internal/service/booking"
	"github.com/Domenick1991/trainbooking/internal/service/trains"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Bookings    booking.BookingUseCase
	Trains      trains.TrainUseCase
	Log         *logger.Logger
	JWTSecret   string
	AdminAPIKey string
	Checks      map[string]HealthCheck
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(cfg.Log))

	r.GET("/health", health(cfg.Checks))

	NewTrainHandler(cfg.Trains, cfg.Log).Register(r.Group("/trains"), auth.AdminKey(cfg.AdminAPIKey))
	NewBookingHandler(cfg.Bookings, cfg.Log).Register(r.Group("/bookings", auth.JWTAuth(cfg.JWTSecret)))

	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.LogAPI(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func health(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}
		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "dependencies": deps, "time": time.Now().UTC().Format(time.RFC3339)})
	}
}
