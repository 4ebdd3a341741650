package middleware

import (
	"math"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"api-gateway-go/internal/model"
)

// RateLimiter returns a per-client-IP token bucket limiter. Rejected requests
// get a 429 with the gateway error envelope. The burst is rps rounded up and
// at least one.
func RateLimiter(rps float64) echo.MiddlewareFunc {
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:  rate.Limit(rps),
		Burst: max(1, int(math.Ceil(rps))),
	})
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, _ error) error {
			return c.JSON(http.StatusForbidden, model.ErrorEnvelope{Error: "unable to identify client"})
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.JSON(http.StatusTooManyRequests, model.ErrorEnvelope{Error: "rate limit exceeded"})
		},
	})
}
