package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vultisig/multisigner/internal/address"
	"github.com/vultisig/multisigner/internal/types"
)

const identityKey = "identity"

func (s *Server) statsdMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		duration := time.Since(start).Milliseconds()

		// Send metrics to statsd
		_ = s.sdClient.Incr("http.requests", []string{"path:" + c.Path()}, 1)
		_ = s.sdClient.Timing("http.response_time", time.Duration(duration)*time.Millisecond, []string{"path:" + c.Path()}, 1)
		_ = s.sdClient.Incr("http.status."+fmt.Sprint(c.Response().Status), []string{"path:" + c.Path(), "method:" + c.Request().Method}, 1)

		return err
	}
}

// AuthMiddleware validates the bearer token and stores its subject as the
// caller identity.
func (s *Server) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenStr, ok := bearerToken(c.Request())
		if !ok {
			return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Code: types.CodeUnauthorized, Error: "missing bearer token"})
		}

		claims, err := s.authService.ValidateToken(tokenStr)
		if err != nil {
			s.logger.Warnf("fail to validate token, err: %v", err)
			return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Code: types.CodeUnauthorized, Error: "invalid token"})
		}
		c.Set(identityKey, claims.Subject)
		return next(c)
	}
}

// AdminMiddleware must run after AuthMiddleware; it rejects callers whose
// identity is not a configured admin.
func (s *Server) AdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity := identityFrom(c)
		if _, ok := s.admins[identity]; !ok {
			s.logger.WithField("identity", identity).Warn("admin route called by non-admin")
			return c.JSON(http.StatusForbidden, types.ErrorResponse{Code: types.CodeUnauthorized, Error: "admin privileges required"})
		}
		return next(c)
	}
}

// addressMiddleware rejects malformed multi-sig addresses before any lookup.
func (s *Server) addressMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if addr := c.Param("address"); !address.IsValid(addr) {
			return s.badRequest(c, "%q is not a valid multi-sig address", addr)
		}
		return next(c)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

func identityFrom(c echo.Context) string {
	identity, _ := c.Get(identityKey).(string)
	return identity
}
