package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	donordomain "github.com/xim/effekt-backend/internal/donor/domain"
)

// RegisterDonor finds or creates a donor by email. Re-registering an email
// returns the existing donor.
func (s *Server) RegisterDonor(c *gin.Context) {
	var req donordomain.RegisterDonorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	id, err := s.donorSvc.Ensure(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"donor_id": id})
}

func (s *Server) GetDonor(c *gin.Context) {
	raw, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || raw <= 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "donor id must be a positive integer"))
		return
	}

	donor, err := s.donorSvc.GetByID(c.Request.Context(), snowflake.ID(raw))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, donor)
}

func (s *Server) SearchDonors(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		AbortWithError(c, newValidationError("q", "required", "search query is required"))
		return
	}

	donors, err := s.donorSvc.Search(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"donors": donors})
}
