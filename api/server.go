package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisigner/service"
)

type Server struct {
	port        int64
	coordinator *service.Coordinator
	authService *service.AuthService
	admins      map[string]struct{}
	sdClient    statsd.ClientInterface
	logger      *logrus.Logger
	echo        *echo.Echo
}

// NewServer returns a new server. Only the identities in admins may call the
// /admin routes.
func NewServer(port int64,
	coordinator *service.Coordinator,
	authService *service.AuthService,
	admins []string,
	sdClient statsd.ClientInterface,
	logger *logrus.Logger) *Server {
	if sdClient == nil {
		sdClient = &statsd.NoOpClient{}
	}
	adminSet := make(map[string]struct{}, len(admins))
	for _, admin := range admins {
		adminSet[admin] = struct{}{}
	}
	s := &Server{
		port:        port,
		coordinator: coordinator,
		authService: authService,
		admins:      adminSet,
		sdClient:    sdClient,
		logger:      logger,
	}
	s.echo = s.router()
	return s
}

func (s *Server) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = newRequestValidator()
	e.Logger.SetLevel(log.INFO)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("2M")) // set maximum allowed size for a request body to 2M
	e.Use(s.statsdMiddleware)
	e.Use(middleware.CORS())
	limiterStore := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{Rate: 5, Burst: 30, ExpiresIn: 5 * time.Minute},
	)
	e.Use(middleware.RateLimiter(limiterStore))

	e.GET("/ping", s.Ping)
	e.POST("/auth/refresh", s.RefreshToken)

	msGroup := e.Group("/multisig")
	msGroup.POST("", s.CreateMultiSig)
	msGroup.GET("/:address", s.GetMultiSigInfo, s.addressMiddleware)
	msGroup.GET("/:address/history", s.GetTransactionHistory, s.addressMiddleware)
	msGroup.POST("/:address/proposals", s.ProposeTransaction, s.addressMiddleware, s.AuthMiddleware)

	proposalGroup := e.Group("/proposal")
	proposalGroup.GET("/:id", s.GetProposal)
	proposalGroup.GET("/:id/archive", s.GetExecutionArchive)
	proposalGroup.POST("/:id/sign", s.SignProposal, s.AuthMiddleware)
	proposalGroup.POST("/:id/execute", s.ExecuteProposal, s.AuthMiddleware)

	signerGroup := e.Group("/signer", s.AuthMiddleware)
	signerGroup.GET("/pending", s.GetPendingProposals)

	adminGroup := e.Group("/admin", s.AuthMiddleware, s.AdminMiddleware)
	adminGroup.POST("/cleanup", s.CleanupExpiredProposals)

	return e
}

func (s *Server) StartServer() error {
	s.logger.Infof("Starting API server on port %d", s.port)
	err := s.echo.Start(fmt.Sprintf(":%d", s.port))
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "Multisigner is running")
}
