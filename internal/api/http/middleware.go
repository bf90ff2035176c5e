package http

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/auth"
	"github.com/civicdesk/grievance-service/internal/config"
	"github.com/civicdesk/grievance-service/internal/observability"
	apperrors "github.com/civicdesk/grievance-service/pkg/util"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
	app.Use(observability.RequestLogger(logger, metrics))
}

// MetricsHandler serves the prometheus registry in scrape format.
func MetricsHandler(metrics *observability.Metrics) fiber.Handler {
	if metrics.Registry() == nil {
		return nil
	}
	return adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				var fiberErr *fiber.Error
				if errors.As(err, &fiberErr) {
					err = apperrors.NewDomainError(apperrors.CodeForStatus(fiberErr.Code), fiberErr.Message, fiberErr.Code, nil)
				}
				domainErr := apperrors.ToDomainError(err)
				if metrics != nil {
					metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
				}
				response := fiber.Map{"error": fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}}
				if len(domainErr.Details) > 0 {
					response["error"].(fiber.Map)["details"] = domainErr.Details
				}
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.Error(domainErr))
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(response)
				err = nil
			}
		}()
		return c.Next()
	}
}

// ComplaintRateLimiter caps how many complaints one citizen can file per
// window. Fixed-window counters live in Redis keyed by user; a Redis outage
// fails open so filing never depends on the cache being up.
func ComplaintRateLimiter(client *redis.Client, cfg config.RateLimitConfig, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.Enabled || client == nil {
			return c.Next()
		}
		user := auth.UserFromContext(c)
		if user == nil {
			return c.Next()
		}

		ctx := c.UserContext()
		key := fmt.Sprintf("grievance:ratelimit:complaints:%s", user.ID)
		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			return c.Next()
		}
		if count == 1 {
			if err := client.Expire(ctx, key, cfg.Window()).Err(); err != nil {
				logger.Warn("rate limiter expire failed", zap.Error(err))
			}
		}
		if count > int64(cfg.MaxComplaints) {
			return apperrors.NewRateLimited("too many complaints filed, try again later", map[string]any{
				"limit":          cfg.MaxComplaints,
				"window_minutes": cfg.WindowMinutes,
			})
		}
		return c.Next()
	}
}
