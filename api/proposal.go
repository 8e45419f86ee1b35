package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisigner/internal/sigutil"
	"github.com/vultisig/multisigner/internal/types"
)

func (s *Server) GetProposal(c echo.Context) error {
	p, err := s.coordinator.GetProposal(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	canonical, err := p.Payload.CanonicalBytes()
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, types.ProposalResponse{
		Proposal:         p,
		CanonicalPayload: hexutil.Encode(canonical),
	})
}

// SignProposal accepts a signature computed by the caller over the canonical
// payload returned by GetProposal. The caller signs as the token subject.
func (s *Server) SignProposal(c echo.Context) error {
	var req types.ProposalSignRequest
	if err := c.Bind(&req); err != nil {
		return s.badRequest(c, "fail to parse request, err: %v", err)
	}
	if err := c.Validate(&req); err != nil {
		return s.badRequest(c, "invalid request, err: %v", err)
	}
	signature, err := sigutil.DecodeHex(req.Signature)
	if err != nil {
		return s.badRequest(c, "signature is not valid hex: %v", err)
	}
	publicKey, err := sigutil.DecodeHex(req.PublicKey)
	if err != nil {
		return s.badRequest(c, "public_key is not valid hex: %v", err)
	}

	signer := identityFrom(c)
	result, err := s.coordinator.SignProposal(c.Request().Context(), c.Param("id"), signer, sigutil.Presigned(signature, publicKey))
	if err != nil {
		return s.errorResponse(c, err)
	}

	resp := types.SignResponse{
		Proposal:        result.Proposal,
		ExecutionTxHash: result.TxHash,
	}
	if result.ExecutionError != nil {
		s.logger.WithFields(logrus.Fields{
			"proposal_id": c.Param("id"),
			"signer":      signer,
		}).WithError(result.ExecutionError).Warn("signature accepted but execution failed")
		resp.ExecutionError = result.ExecutionError.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) ExecuteProposal(c echo.Context) error {
	txHash, err := s.coordinator.ExecuteProposal(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, types.ExecuteResponse{TxHash: txHash})
}

func (s *Server) GetPendingProposals(c echo.Context) error {
	proposals, err := s.coordinator.GetPendingProposals(c.Request().Context(), identityFrom(c))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, proposals)
}

func (s *Server) GetExecutionArchive(c echo.Context) error {
	archive, err := s.coordinator.GetExecutionArchive(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, archive)
}

func (s *Server) CleanupExpiredProposals(c echo.Context) error {
	count, err := s.coordinator.CleanupExpiredProposals(c.Request().Context())
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, types.CleanupResponse{Expired: count})
}
