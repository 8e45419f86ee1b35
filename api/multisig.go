package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vultisig/multisigner/internal/types"
)

func (s *Server) CreateMultiSig(c echo.Context) error {
	var req types.MultiSigCreateRequest
	if err := c.Bind(&req); err != nil {
		return s.badRequest(c, "fail to parse request, err: %v", err)
	}
	if req.TimeoutSeconds == 0 {
		req.TimeoutSeconds = int64(s.coordinator.DefaultTimeout() / time.Second)
	}

	address, err := s.coordinator.CreateMultiSig(c.Request().Context(), req)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, types.MultiSigCreateResponse{Address: address})
}

func (s *Server) GetMultiSigInfo(c echo.Context) error {
	info, err := s.coordinator.GetMultiSigInfo(c.Request().Context(), c.Param("address"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) GetTransactionHistory(c echo.Context) error {
	proposals, err := s.coordinator.GetTransactionHistory(c.Request().Context(), c.Param("address"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, proposals)
}

func (s *Server) ProposeTransaction(c echo.Context) error {
	var req types.ProposalCreateRequest
	if err := c.Bind(&req); err != nil {
		return s.badRequest(c, "fail to parse request, err: %v", err)
	}

	id, err := s.coordinator.ProposeTransaction(c.Request().Context(), c.Param("address"), req.Payload, identityFrom(c))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, types.ProposalCreateResponse{ProposalID: id})
}

func (s *Server) RefreshToken(c echo.Context) error {
	tokenStr, ok := bearerToken(c.Request())
	if !ok {
		return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Code: types.CodeUnauthorized, Error: "missing bearer token"})
	}
	token, err := s.authService.RefreshToken(tokenStr)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Code: types.CodeUnauthorized, Error: "invalid token"})
	}
	return c.JSON(http.StatusOK, types.TokenResponse{Token: token})
}
