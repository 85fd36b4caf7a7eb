package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"exchange-core/internal/admission"
	"exchange-core/internal/bets"
	"exchange-core/internal/userclient"
)

func (s *Server) createOrder(c *gin.Context) {
	var req admission.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
		return
	}

	order, err := s.Admission.Admit(c.Request.Context(), req, c.GetString(tokenKey))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (s *Server) getAllOrders(c *gin.Context) {
	// The order list endpoint is administrator-only; the role lives in the
	// Account & Position Service, so the check goes through the profile.
	orders, err := s.Admission.AdminOrders(c.Request.Context(), c.GetString(tokenKey))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) getMyOrders(c *gin.Context) {
	orders, err := s.Admission.UserOrders(c.Request.Context(), c.GetString(tokenKey))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) approveOrder(c *gin.Context) {
	if err := s.Admission.Approve(c.Request.Context(), c.GetString(tokenKey), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

func (s *Server) rejectOrder(c *gin.Context) {
	if err := s.Admission.Reject(c.Request.Context(), c.GetString(tokenKey), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (s *Server) getOptions(c *gin.Context) {
	options, err := s.Bets.Options(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, options)
}

func (s *Server) placeBet(c *gin.Context) {
	var req bets.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
		return
	}

	bet, err := s.Bets.Place(c.Request.Context(), c.GetString(tokenKey), c.Param("id"), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bet)
}

func (s *Server) getMyBets(c *gin.Context) {
	myBets, err := s.Bets.MyBets(c.Request.Context(), c.GetString(tokenKey))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, myBets)
}

func (s *Server) rejectBet(c *gin.Context) {
	if err := s.Bets.Reject(c.Request.Context(), c.GetString(tokenKey), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// writeError maps service errors onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, admission.ErrInvalidRequest), errors.Is(err, bets.ErrInvalidDate):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
	case errors.Is(err, admission.ErrNotAdministrator), errors.Is(err, bets.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": err.Error()})
	case errors.Is(err, admission.ErrOrderNotFound), errors.Is(err, bets.ErrBetNotFound),
		errors.Is(err, bets.ErrOptionNotFound), errors.Is(err, userclient.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "message": err.Error()})
	case errors.Is(err, userclient.ErrUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "account service unavailable", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "message": err.Error()})
	}
}
